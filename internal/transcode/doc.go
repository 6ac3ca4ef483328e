// Package transcode drives external ffmpeg subprocesses, one per unit
// of work. A unit is either a single clip trim/encode or the final
// stream-copy concatenation. Each invocation runs under a watchdog
// timeout, reports per-unit progress parsed from ffmpeg's machine
// readable progress stream, and can be force-killed with a bounded
// grace period.
//
// All clip encodes use one fixed normalization flag set (resolution,
// frame rate, pixel format, codecs) so independently produced clips
// are byte-compatible for stream-copy concatenation.
package transcode
