// Package database provides SQLite-backed durable records for the
// service: a job history table holding one row per terminal job, and
// an upload audit trail. The in-memory registry purges terminal jobs
// after the retention window; the history rows here are what survives
// for the stats endpoint.
package database
