// Package apperr classifies every failure into a small set of kinds and
// renders them as HTTP responses.
//
// # Response body
//
//	{"status":"error","message":"...","errors":{"field":["..."]}}
//
// errors appears only for field validation failures.
//
// # Classification
//
// [Classify] maps authcore sentinels and store signals to kinds. Uniqueness
// violations are recognised through *store.ConstraintError, never by reading
// driver error text. Database and Internal failures are logged with their
// cause and answered with a generic message.
//
// # What this package must NOT do
//
//   - Leak causes, SQL or token material into response bodies.
//   - Decide authentication outcomes. It only renders them.
package apperr
