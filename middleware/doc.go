// Package middleware adapts the authcore Engine and the apperr taxonomy to
// net/http.
//
// # Gates
//
//   - [Require]: rejects requests without a valid bearer access token.
//   - [Optional]: never rejects; handlers see Anonymous when the credential
//     is missing, malformed or expired.
//
// Both gates store the resulting [authcore.Identity] in the request context
// before the next handler runs. Handlers read it with
// authcore.IdentityFromContext.
//
// # Supporting middleware
//
//   - [ClientIP]: records the peer address for login throttling and audit.
//   - [NewLoggingMiddleware]: one structured log line per request.
//   - [NewRecoveryMiddleware]: turns panics into an Internal response.
//   - [RateLimiter]: per-IP token buckets for the credential endpoints.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly (delegates to Engine.Validate).
//   - Touch a store.
//   - Decide authorization beyond pass or reject.
package middleware
