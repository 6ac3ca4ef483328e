// Package handlers provides HTTP request handlers for the compilation API.
//
// It includes handlers for:
//   - Job submission (multipart upload + clip list)
//   - Chunked upload sessions (init, chunk, complete)
//   - Progress polling and cancellation
//   - Artifact download with timeout-protected streaming
//   - Health checks, version, and application stats
package handlers
