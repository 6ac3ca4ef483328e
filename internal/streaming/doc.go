// Package streaming provides timeout-protected writing of finished
// compilation artifacts to HTTP responses.
//
// Browsers downloading a multi-hundred-megabyte output can stall for
// long periods; an unprotected io.Copy would pin the file handle and
// the goroutine indefinitely. The TimeoutWriter bounds individual
// writes and overall idle time, and reports client disconnects as a
// distinct error so handlers can treat them as non-failures.
package streaming
