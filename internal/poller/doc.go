// Package poller is the client side of the compilation service. It
// uploads source files (chunked, with a whole-file fallback), submits
// jobs, and tracks job progress until a terminal state.
//
// Progress tracking buckets the server's free-text stage labels into a
// fixed set of phases and rescales the raw percent into each phase's
// display range. The percentage handed to the caller never moves
// backwards, even when the classification briefly lags the server's
// actual phase.
package poller
