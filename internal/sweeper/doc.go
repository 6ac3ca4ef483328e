// Package sweeper runs periodic background cleanup: abandoned chunked
// upload sessions past their TTL, and finished output artifacts older
// than the configured retention age. Job temp directories are cleaned
// by the job's own terminal transition, not here.
package sweeper
