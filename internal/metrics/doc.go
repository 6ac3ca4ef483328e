// Package metrics provides Prometheus instrumentation for the clip
// compiler service.
//
// All metrics are prefixed with "clip_compiler_" to avoid naming
// collisions with other applications. Metrics are registered with the
// default Prometheus registry via promauto; expose them by mounting
// promhttp.Handler() on the metrics endpoint.
//
// Categories:
//   - HTTP: request counts, durations, in-flight gauge
//   - Jobs: compilation jobs by terminal state, active gauge, stage durations
//   - Transcode: subprocess invocations by kind and status, durations
//   - Upload: bytes received by path (chunked/whole), chunk counters,
//     active chunk sessions
//   - Database: query counts and durations for the job history store
//   - Filesystem: retried operation counters for cleanup paths
//   - Runtime: memory limit and usage gauges, build info
//
// The package also provides a Collector that periodically refreshes
// gauges sourced from the database and the Go runtime.
package metrics
