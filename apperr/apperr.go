package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store"
)

// Kind is the failure class. It decides the status code and how much of the
// failure the caller sees.
type Kind int

const (
	KindInternal Kind = iota
	KindDatabase
	KindConflict
	KindAuth
	KindNotFound
	KindForbidden
	KindBadRequest
	KindRateLimited
)

// String returns the lower-case kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	switch k {
	case KindDatabase:
		return http.StatusInternalServerError
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Generic messages for kinds whose cause stays server side.
const (
	MessageDatabase    = "Database operation failed"
	MessageInternal    = "Internal server error"
	MessageConflict    = "Record already exists"
	MessageRateLimited = "Too many requests"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps a field name to its violations. Set only for validation.
	Fields map[string][]string
	// RetryAfter is set for KindRateLimited.
	RetryAfter time.Duration
	// Err is the cause. It is logged, never rendered.
	Err error
}

// Error formats the kind and message, followed by the cause when set.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Database hides err behind a generic message; Write logs the cause.
func Database(err error) *Error {
	return &Error{Kind: KindDatabase, Message: MessageDatabase, Err: err}
}

// Conflict reports a uniqueness violation. An empty reason selects the
// generic message.
func Conflict(reason string, err error) *Error {
	if reason == "" {
		reason = MessageConflict
	}
	return &Error{Kind: KindConflict, Message: reason, Err: err}
}

// Auth is a 401 with reason as the message.
func Auth(reason string) *Error {
	return &Error{Kind: KindAuth, Message: reason}
}

// NotFound renders as "<resource> not found".
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Forbidden is a 403 with reason as the message.
func Forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Message: reason}
}

// BadRequest is a 400 without field errors.
func BadRequest(reason string) *Error {
	return &Error{Kind: KindBadRequest, Message: reason}
}

// Validation aggregates field violations into one BadRequest.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindBadRequest, Message: "Validation failed", Fields: fields}
}

// RateLimited is a 429. A positive retryAfter becomes the Retry-After header.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: MessageRateLimited, RetryAfter: retryAfter}
}

// Internal is a 500 for failures with no better kind.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: MessageInternal, Err: err}
}

// Classify maps err to an *Error. An *Error anywhere in the chain is returned
// as is; unknown errors become Internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var limited *authcore.LoginRateLimitedError
	if errors.As(err, &limited) {
		return RateLimited(limited.RetryAfter)
	}

	switch {
	case errors.Is(err, authcore.ErrAccountExists):
		return Conflict("Username already exists", err)
	case errors.Is(err, store.ErrUniqueViolation):
		return Conflict(MessageConflict, err)
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return Auth("Invalid username or password")
	case errors.Is(err, authcore.ErrMissingCredential):
		return Auth("Missing or malformed authorization header")
	case errors.Is(err, authcore.ErrTokenExpired):
		return Auth("Token expired")
	case errors.Is(err, authcore.ErrTokenInvalid):
		return Auth("Invalid token")
	case errors.Is(err, authcore.ErrRefreshExpired):
		return Auth("Refresh token expired")
	case errors.Is(err, authcore.ErrRefreshInvalid):
		return Auth("Invalid refresh token")
	case errors.Is(err, authcore.ErrLoginRateLimited):
		return RateLimited(0)
	case errors.Is(err, authcore.ErrStoreUnavailable):
		return Database(err)
	case errors.Is(err, store.ErrNotFound):
		return NotFound("Record")
	case errors.Is(err, context.DeadlineExceeded):
		return Database(err)
	default:
		return Internal(err)
	}
}
