// Package jwt issues and verifies short-lived HS256 access tokens.
//
// Claims carry the user identifier in "sub", the username, and the standard
// exp/iat/iss/aud registered claims. [Issuer.Verify] pins the algorithm to
// HS256, so "alg":"none" and asymmetric algorithms fail with
// [ErrSignatureInvalid]. Expiry honours a bounded clock-skew leeway.
//
// # What this package must NOT do
//
//   - Read the signing secret from the environment. The secret arrives once
//     through [Config] and there is no fallback key.
//   - Touch refresh tokens or any store.
package jwt
