// Package main provides clipctl, a command-line client for the clip
// compiler service.
//
// clipctl uploads source files (chunked, falling back to inline
// attachment when chunking fails), submits compilation jobs, tracks
// their progress, and cancels them.
//
// Usage:
//
//	clipctl submit -clips "0:2:3,1:1:3" video-a.mp4 video-b.mp4
//	clipctl track <jobId>
//	clipctl cancel <jobId>
//
// Each clip is source:start:duration, with the source number referring
// to the position of the file on the command line. Timeline order
// follows the order clips are listed.
//
// The server address comes from -server or the CLIP_SERVER environment
// variable (default http://localhost:8080).
package main
