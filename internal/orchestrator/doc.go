// Package orchestrator runs compilation jobs end to end. Each job gets
// its own goroutine and a per-job temp directory; within a job clips
// are processed strictly sequentially, while cross-job parallelism is
// bounded by a semaphore sized from the machine's core count.
//
// The orchestrator is the registry's only writer for a running job.
// Cancellation is checked at clip and stage boundaries, and the active
// subprocess is force-killed as soon as the cancellation channel
// closes. All cleanup of temp clips, the concat manifest, and the
// uploaded sources happens in one terminal-transition handler
// regardless of outcome.
package orchestrator
