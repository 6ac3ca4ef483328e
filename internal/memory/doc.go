// Package memory configures the Go runtime memory limit for
// containerized deployments.
//
// The service shares its container memory budget with ffmpeg
// subprocesses, which allocate outside the Go heap. ConfigureFromEnv
// sets GOMEMLIMIT to a fraction of the container limit (default 60%)
// so the Go runtime leaves real headroom for the transcoder instead of
// letting the heap grow until the kernel OOM-kills the whole container
// mid-encode.
//
// Environment variables:
//   - GOMEMLIMIT: standard Go variable, takes precedence when set
//   - MEMORY_LIMIT: container memory limit in bytes (Downward API)
//   - MEMORY_RATIO: fraction of the limit to give the Go heap
package memory
