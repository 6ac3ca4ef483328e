// Package filesystem provides filesystem helpers with retry logic for
// the cleanup paths of the clip compiler.
//
// Every job deletes its uploaded sources, temporary clip files, and
// concat manifest exactly once regardless of outcome. On network
// filesystems those deletions can fail transiently (stale handles,
// short-lived locks held by a just-killed subprocess), so the removal
// helpers retry with bounded backoff before reporting failure.
package filesystem
