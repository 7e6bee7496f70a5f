// Package prometheus exports authcore engine metrics through
// client_golang.
//
// [Collector] turns each scrape into one engine snapshot: counters become
// authcore_*_total series and validate latency becomes the
// authcore_validate_latency_seconds histogram. [NewRegistry] bundles it with
// the runtime collectors and [Handler] serves the result.
//
// # What this package must NOT do
//
//   - Register in the global default registry.
//   - Mutate engine state.
package prometheus
