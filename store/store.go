package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no row matches the lookup key.
	ErrNotFound = errors.New("store: not found")
	// ErrExpired is returned when a refresh token row exists but expires_at <= now.
	ErrExpired = errors.New("store: expired")
	// ErrUniqueViolation is the classification target of *ConstraintError.
	ErrUniqueViolation = errors.New("store: unique constraint violated")
)

// ConstraintError is the structured "constraint violated" signal returned by
// backends when a write collides with a uniqueness constraint. Callers must
// use errors.As / errors.Is instead of inspecting driver error text.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return "store: unique constraint violated"
	}
	return fmt.Sprintf("store: unique constraint %q violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is reports ErrUniqueViolation as a match so callers can use either errors.Is
// or errors.As.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrUniqueViolation
}

// User is the slice of the external users table the auth core reads and writes.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Owner identifies the user a refresh token belongs to.
type Owner struct {
	UserID   string
	Username string
}

// Replacement is the token row inserted by a rotating redemption.
type Replacement struct {
	Key       string
	ExpiresAt time.Time
}

// UserStore is the boundary of the external users table.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	UserByUsername(ctx context.Context, username string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// RefreshTokenStore persists refresh tokens by key. Keys are token digests;
// raw tokens never reach a backend.
type RefreshTokenStore interface {
	// Persist inserts a new live row without touching other rows of the owner.
	Persist(ctx context.Context, owner Owner, key string, expiresAt time.Time) error
	// Redeem returns the owner and leaves the row in place.
	Redeem(ctx context.Context, key string) (Owner, error)
	// Rotate atomically deletes the row for key and inserts next for the same
	// owner. Among concurrent callers for one key at most one succeeds.
	Rotate(ctx context.Context, key string, next Replacement) (Owner, error)
	// Revoke deletes one row. Unknown keys are not an error.
	Revoke(ctx context.Context, key string) error
	// RevokeUser deletes every row owned by userID.
	RevokeUser(ctx context.Context, userID string) error
}

// Purger is implemented by backends that keep expired rows until swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
