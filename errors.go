package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/password"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Register when the username is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrMissingCredential is returned when a request carries no bearer token
	// or uses a different authorization scheme.
	ErrMissingCredential = errors.New("missing or malformed credential")
	// ErrTokenInvalid covers malformed access tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for an access token past exp plus leeway.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshInvalid is returned for an unknown, revoked or already rotated
	// refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned for a refresh token past its expiry.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrStoreUnavailable wraps every backend failure, including a store
	// operation that ran past its deadline.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrLoginRateLimited is the errors.Is target of *LoginRateLimitedError.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned by methods called on a nil or partially
	// built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrHashingFailed is returned when password hashing fails internally.
	ErrHashingFailed = password.ErrHashingFailed
)

// LoginRateLimitedError carries the time until the failed-login window for
// the username or client IP resets.
type LoginRateLimitedError struct {
	RetryAfter time.Duration
}

func (e *LoginRateLimitedError) Error() string {
	return fmt.Sprintf("login rate limited, retry after %s", e.RetryAfter)
}

// Is reports ErrLoginRateLimited as a match.
func (e *LoginRateLimitedError) Is(target error) bool {
	return target == ErrLoginRateLimited
}
