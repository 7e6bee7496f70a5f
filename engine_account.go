package authcore

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

// Register hashes password and inserts a new user with a random UUID.
//
// A taken username yields an error matching both ErrAccountExists and
// store.ErrUniqueViolation. Password policy is not enforced here.
func (e *Engine) Register(ctx context.Context, username, password string) (User, error) {
	if e == nil || e.hasher == nil {
		return User{}, ErrEngineNotReady
	}

	hash, err := e.hasher.Hash(ctx, password)
	if err != nil {
		e.emitAudit(ctx, internalaudit.EventRegister, false, "", username, err, nil)
		return User{}, fmt.Errorf("register: %w", err)
	}

	user := store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    e.now().UTC(),
	}

	sctx, cancel := e.storeContext(ctx)
	err = e.users.CreateUser(sctx, user)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, internalaudit.EventRegister, false, "", username, ErrAccountExists, nil)
			return User{}, fmt.Errorf("%w: %w", ErrAccountExists, err)
		}
		err = e.storeFailure(ctx, "create user", err)
		e.emitAudit(ctx, internalaudit.EventRegister, false, "", username, err, nil)
		return User{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, internalaudit.EventRegister, true, user.ID, username, nil, nil)

	user.PasswordHash = ""
	return user, nil
}
