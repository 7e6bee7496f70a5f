// Package rate implements the Redis-backed brute-force limiter for login.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Only failed
// attempts are counted. Key prefixes, after the configured namespace:
//   - al:  login failures per username
//   - ali: login failures per client IP
//
// # What this package must NOT do
//
//   - Decide what happens when Redis is down. The engine owns that policy.
//   - Be imported outside the authcore module.
package rate
