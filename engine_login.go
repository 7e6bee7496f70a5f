package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/store"
)

// Login verifies username and password and issues a token pair.
//
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials and
// both spend one argon2 verification. When the failed-login limiter is
// configured and the budget is used up, Login returns a
// *LoginRateLimitedError without checking the password.
func (e *Engine) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if e == nil || e.hasher == nil || e.issuer == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	if err := e.checkLoginLimit(ctx, username); err != nil {
		return TokenPair{}, err
	}

	if password == "" {
		return TokenPair{}, e.loginFailed(ctx, username, "", "empty_password")
	}

	sctx, cancel := e.storeContext(ctx)
	user, err := e.users.UserByUsername(sctx, username)
	cancel()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			err = e.storeFailure(ctx, "user by username", err)
			e.emitAudit(ctx, internalaudit.EventLogin, false, "", username, err, nil)
			return TokenPair{}, err
		}
		if _, verr := e.hasher.Verify(ctx, password, e.dummyHash); verr != nil {
			return TokenPair{}, fmt.Errorf("login: %w", verr)
		}
		return TokenPair{}, e.loginFailed(ctx, username, "", "user_not_found")
	}

	ok, err := e.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return TokenPair{}, e.loginFailed(ctx, username, user.ID, "password_mismatch")
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(user.PasswordHash) {
		e.upgradeHash(ctx, user, password)
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, username); err != nil {
			e.logger.WarnContext(ctx, "login limiter reset failed", slog.Any("error", err))
		}
	}

	pair, err := e.issuePair(ctx, user.ID, user.Username)
	if err != nil {
		e.emitAudit(ctx, internalaudit.EventLogin, false, user.ID, username, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, internalaudit.EventLogin, true, user.ID, username, nil, nil)

	return pair, nil
}

// checkLoginLimit consults the limiter. A Redis failure lets the login
// through and is logged.
func (e *Engine) checkLoginLimit(ctx context.Context, username string) error {
	if e.limiter == nil {
		return nil
	}

	err := e.limiter.CheckLogin(ctx, username, ClientIPFromContext(ctx))
	if err == nil {
		return nil
	}

	var limitErr *rate.LimitError
	if errors.As(err, &limitErr) {
		e.metricInc(MetricLoginRateLimited)
		limited := &LoginRateLimitedError{RetryAfter: limitErr.RetryAfter}
		e.emitAudit(ctx, internalaudit.EventLogin, false, "", username, limited, nil)
		return limited
	}

	e.logger.WarnContext(ctx, "login limiter unavailable, allowing attempt", slog.Any("error", err))
	return nil
}

func (e *Engine) loginFailed(ctx context.Context, username, userID, reason string) error {
	if e.limiter != nil {
		if err := e.limiter.RecordFailure(ctx, username, ClientIPFromContext(ctx)); err != nil {
			e.logger.WarnContext(ctx, "login limiter record failed", slog.Any("error", err))
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, internalaudit.EventLogin, false, userID, username, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrInvalidCredentials
}

// upgradeHash re-hashes password with the current parameters. It is best
// effort and never fails the login.
func (e *Engine) upgradeHash(ctx context.Context, user store.User, password string) {
	upgraded, err := e.hasher.Hash(ctx, password)
	if err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade generation failed", slog.Any("error", err))
		return
	}

	sctx, cancel := e.storeContext(ctx)
	err = e.users.UpdatePasswordHash(sctx, user.ID, upgraded)
	cancel()
	if err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade update failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}

	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, internalaudit.EventRehash, true, user.ID, user.Username, nil, nil)
}
