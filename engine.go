package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Engine runs registration, login, refresh, logout and access token
// validation. It holds no locks; its only mutable state is atomic metrics.
//
// Engine methods are safe for concurrent use after Builder.Build.
type Engine struct {
	config    Config
	users     UserStore
	tokens    RefreshTokenStore
	hasher    *password.Pool
	dummyHash string
	issuer    *jwt.Issuer
	limiter   *rate.Limiter
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Close drains the audit dispatcher. Stores and Redis clients are owned by
// the caller and are not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
// The same count is exported as MetricAuditDropped when metrics are enabled.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Rotation reports the configured refresh rotation mode.
func (e *Engine) Rotation() RotationMode {
	return e.config.Refresh.Rotation
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate verifies an access token and returns the authenticated identity.
//
// Failures are ErrTokenExpired for a token past exp plus leeway and
// ErrTokenInvalid for everything else. Validate never touches a store.
func (e *Engine) Validate(ctx context.Context, token string) (Identity, error) {
	if e == nil || e.issuer == nil {
		return Identity{}, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.issuer.Verify(token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwt.ErrExpired) {
			return Identity{}, ErrTokenExpired
		}
		e.logger.DebugContext(ctx, "access token rejected", slog.String("reason", err.Error()))
		return Identity{}, ErrTokenInvalid
	}

	e.metricInc(MetricValidateSuccess)
	return Authenticated(claims.UserID(), claims.Username), nil
}

// storeContext bounds a single store call.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Store.OperationTimeout)
}

// storeFailure records a backend failure and wraps it in ErrStoreUnavailable.
func (e *Engine) storeFailure(ctx context.Context, op string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.logger.ErrorContext(ctx, "store operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
