package authcore

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/store"
)

// Refresh exchanges a refresh token for a new access token.
//
// In RotationRotating mode the presented token is consumed and the returned
// pair carries its replacement; a second redemption of the same token fails
// with ErrRefreshInvalid. In RotationStatic mode the token is left in place
// and echoed back. Expired tokens fail with ErrRefreshExpired.
func (e *Engine) Refresh(ctx context.Context, token string) (TokenPair, error) {
	if e == nil || e.issuer == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	if !refresh.WellFormed(token) {
		return TokenPair{}, e.refreshFailed(ctx, ErrRefreshInvalid, "malformed")
	}
	key := refresh.Digest(token)

	var (
		owner store.Owner
		next  = token
		err   error
	)

	switch e.config.Refresh.Rotation {
	case RotationStatic:
		sctx, cancel := e.storeContext(ctx)
		owner, err = e.tokens.Redeem(sctx, key)
		cancel()
	default:
		next, err = refresh.NewToken()
		if err != nil {
			return TokenPair{}, e.refreshFailed(ctx, err, "next_token_generation")
		}
		sctx, cancel := e.storeContext(ctx)
		owner, err = e.tokens.Rotate(sctx, key, store.Replacement{
			Key:       refresh.Digest(next),
			ExpiresAt: e.now().Add(e.config.Refresh.TTL),
		})
		cancel()
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			e.metricInc(MetricRefreshRejected)
			return TokenPair{}, e.refreshFailed(ctx, ErrRefreshInvalid, "not_found")
		case errors.Is(err, store.ErrExpired):
			e.metricInc(MetricRefreshExpired)
			return TokenPair{}, e.refreshFailed(ctx, ErrRefreshExpired, "expired")
		default:
			return TokenPair{}, e.refreshFailed(ctx, e.storeFailure(ctx, "redeem refresh token", err), "store")
		}
	}

	access, err := e.issuer.Issue(owner.UserID, owner.Username, e.config.JWT.AccessTTL)
	if err != nil {
		return TokenPair{}, e.refreshFailed(ctx, fmt.Errorf("issue access token: %w", err), "issue_access_failed")
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, internalaudit.EventRefresh, true, owner.UserID, owner.Username, nil, func() map[string]string {
		return map[string]string{
			"rotation": e.config.Refresh.Rotation.String(),
		}
	})

	return TokenPair{
		AccessToken:  access,
		RefreshToken: next,
		UserID:       owner.UserID,
		Username:     owner.Username,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    e.config.JWT.AccessTTL,
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, err error, reason string) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, internalaudit.EventRefresh, false, "", "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

// Logout revokes one refresh token. Revoking an unknown or already rotated
// token succeeds. Access tokens stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if !refresh.WellFormed(token) {
		return ErrRefreshInvalid
	}

	sctx, cancel := e.storeContext(ctx)
	err := e.tokens.Revoke(sctx, refresh.Digest(token))
	cancel()
	if err != nil {
		err = e.storeFailure(ctx, "revoke refresh token", err)
		e.emitAudit(ctx, internalaudit.EventLogout, false, "", "", err, nil)
		return err
	}

	caller := IdentityFromContext(ctx)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, internalaudit.EventLogout, true, caller.ID(), caller.Username(), nil, nil)
	return nil
}

// LogoutAll revokes every refresh token owned by userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	sctx, cancel := e.storeContext(ctx)
	err := e.tokens.RevokeUser(sctx, userID)
	cancel()
	if err != nil {
		err = e.storeFailure(ctx, "revoke user refresh tokens", err)
		e.emitAudit(ctx, internalaudit.EventLogoutAll, false, userID, "", err, nil)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, internalaudit.EventLogoutAll, true, userID, "", nil, nil)
	return nil
}

// PurgeExpired deletes expired refresh tokens when the backend keeps them
// until swept. Backends that expire rows on their own report zero.
func (e *Engine) PurgeExpired(ctx context.Context) (int64, error) {
	if e == nil || e.tokens == nil {
		return 0, ErrEngineNotReady
	}

	purger, ok := e.tokens.(store.Purger)
	if !ok {
		return 0, nil
	}

	sctx, cancel := e.storeContext(ctx)
	n, err := purger.PurgeExpired(sctx)
	cancel()
	if err != nil {
		return 0, e.storeFailure(ctx, "purge expired refresh tokens", err)
	}

	if n > 0 && e.metrics != nil {
		e.metrics.Add(MetricRefreshPurged, uint64(n))
	}
	return n, nil
}

// issuePair mints an access token and persists a fresh refresh token.
func (e *Engine) issuePair(ctx context.Context, userID, username string) (TokenPair, error) {
	access, err := e.issuer.Issue(userID, username, e.config.JWT.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	token, err := refresh.NewToken()
	if err != nil {
		return TokenPair{}, err
	}

	sctx, cancel := e.storeContext(ctx)
	err = e.tokens.Persist(sctx, store.Owner{UserID: userID, Username: username}, refresh.Digest(token), e.now().Add(e.config.Refresh.TTL))
	cancel()
	if err != nil {
		return TokenPair{}, e.storeFailure(ctx, "persist refresh token", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: token,
		UserID:       userID,
		Username:     username,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    e.config.JWT.AccessTTL,
	}, nil
}
