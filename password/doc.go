// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and digest use unpadded standard base64. Verify also accepts padded
// segments written by older releases.
//
// [Argon2.Verify] returns a plain bool: a malformed stored hash and a wrong
// password are indistinguishable to the caller. [Argon2.NeedsUpgrade] lets the
// engine re-hash on the next successful login after parameters are raised.
//
// # Scheduling
//
// [Pool] gates every hash and verify behind a weighted semaphore sized from
// GOMAXPROCS so argon2's CPU and memory cost stays bounded under load.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy (length, reuse). That belongs to the HTTP layer.
//   - Log plaintext passwords or hash parameters at runtime.
package password
