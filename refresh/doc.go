// Package refresh generates opaque refresh tokens and derives their storage keys.
//
// # Token format
//
// 32 bytes from crypto/rand, unpadded base64url. Tokens embed no claims; the
// store row is the only source of the owner and expiry. Tokens are never
// stored in plaintext: the store retains only [Digest].
//
// # Architecture boundaries
//
// Rotation policy and reuse handling live in the Engine and the store backends.
//
// # What this package must NOT do
//
//   - Access Redis, SQL, or any I/O besides the entropy source.
//   - Import authcore, jwt, or store.
package refresh
