// Package internal holds the private building blocks of authcore.
//
// # Sub-packages
//
//   - audit: asynchronous event dispatch and sinks
//   - config: koanf-backed service configuration for cmd/authd
//   - logger: slog construction and attribute redaction
//   - metrics: lock-free counters and the validate latency histogram
//   - rate: Redis-backed failed-login limiter
//   - security: security posture report
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API except through
//     aliases declared in the root package.
package internal
