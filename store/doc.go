// Package store defines the persistence contract of the auth core: the users
// boundary and the refresh token store, plus the error signals every backend
// must return.
//
// # Error signals
//
//   - [ErrNotFound]: no row for the key or username.
//   - [ErrExpired]: the refresh row exists but is past expires_at.
//   - [*ConstraintError]: a uniqueness constraint rejected a write. It matches
//     [ErrUniqueViolation] under errors.Is.
//
// Any other error is a backend failure and is treated as a database failure by
// the caller.
//
// # Backends
//
//   - store/postgres: database/sql over pgx, goose migrations.
//   - store/redisstore: refresh tokens in Redis, rotation via a Lua script.
//   - store/memory: mutex-guarded maps for tests and local runs.
//
// # What this package must NOT do
//
//   - Hash, generate, or decode tokens.
//   - Import authcore or any backend.
package store
