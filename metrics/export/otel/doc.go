// Package otel exports authcore engine metrics as OpenTelemetry observable
// instruments.
//
// Counters are grouped per operation and split by attribute:
//
//	authcore.register          outcome=success|duplicate
//	authcore.login             outcome=success|invalid_credentials|rate_limited
//	authcore.refresh           outcome=success|rejected|expired|error, rotation
//	authcore.validate          outcome=success|rejected
//	authcore.logout            scope=single|all, rotation
//	authcore.refresh.purged    rotation
//
// The validate latency histogram is a cumulative gauge with an le attribute
// plus a count, reported only when latency histograms are enabled.
//
// # What this package must NOT do
//
//   - Create or own a MeterProvider.
//   - Mutate engine state.
package otel
