// Package logger builds the process-wide *slog.Logger.
//
// Output is JSON by default. Attributes whose key looks like a credential
// (password, secret, token, authorization, bearer, credential) are replaced
// with a fixed placeholder before they reach the handler, at any group depth.
//
// # What this package must NOT do
//
//   - Hold a global logger. Callers pass the returned *slog.Logger explicitly.
//   - Decide what gets logged. Redaction is a last line of defence only.
package logger
