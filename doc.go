// Package authcore is the authentication and session-lifecycle core: argon2id
// credential hashing, short-lived HS256 access tokens, opaque refresh tokens
// stored by digest, and the identity carried through request contexts.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// [Identity] and the sentinel errors. Persistence lives behind the
// store contracts ([UserStore], [RefreshTokenStore]); the login limiter,
// audit dispatch and counters live under internal/.
//
// # Refresh rotation
//
// [RotationRotating] is the default. Redeeming a refresh token deletes it and
// persists a replacement in one atomic store operation, so a captured token
// replays at most once. [RotationStatic] keeps the token redeemable until it
// expires and exists as the simpler baseline.
//
// # What this package must NOT do
//
//   - Read configuration from the environment. The signing secret arrives in
//     [Config] and there is no fallback key.
//   - Hold a lock across a store call. Every store call runs under
//     Config.Store.OperationTimeout.
//   - Import httpapi, middleware or apperr (no import cycles).
//
// # Performance contract
//
// Validate is the hot path. It verifies the token signature in memory and
// never calls a store. Login spends one argon2 verification through a bounded
// pool whether or not the username exists.
package authcore
