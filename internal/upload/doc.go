// Package upload implements the upload assembler: it receives source
// media bytes, whole or chunked, and turns them into durable files a
// compilation job can consume.
//
// Chunked transfers run through a session: a client declares the file
// name and chunk count, sends chunks in any order (duplicates are
// accepted idempotently to tolerate retries), and finalizes once all
// indices have arrived. Finalization concatenates the chunks in index
// order into a single upload file and verifies nothing is missing; a
// session can never finalize with gaps.
//
// A direct single-shot path exists for deployments without chunking
// and as the client's fallback after repeated chunk failures. Size
// ceilings differ per path: the chunked ceiling is lower because chunk
// staging temporarily doubles disk usage.
//
// Abandoned sessions are swept after a TTL so client crashes do not
// leak staged chunks.
package upload
