// Package registry provides the concurrency-safe store of live
// compilation job state.
//
// It is the single source of truth polled by HTTP clients and mutated
// by the orchestrator. Each job has exactly one writer (the
// orchestrator run that owns it); the only mutation any other caller
// may perform is cancellation, which is idempotent and observed by the
// orchestrator at stage boundaries through the job's cancel channel.
//
// Progress is monotonic: an update carrying a lower percent than the
// stored value is clamped up, so pollers never watch the bar move
// backwards. The explicit exceptions are the terminal transitions,
// which freeze percent at 100 (complete) or 0 (error).
//
// Terminal entries are retained for a configurable window so late
// pollers still observe the final state once, then purged. A history
// sink, when configured, receives every terminal job for durable
// storage before the entry disappears.
package registry
