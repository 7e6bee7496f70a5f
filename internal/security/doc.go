// Package security summarizes the security-relevant settings of a built
// engine. The root package exposes the result as Engine.SecurityReport.
//
// # What this package must NOT do
//
//   - Perform I/O or read configuration sources.
package security
