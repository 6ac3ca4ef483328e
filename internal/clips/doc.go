// Package clips defines the clip cut model and validation rules for
// compilation jobs.
//
// A clip is a trim of one uploaded source file (start offset plus
// duration) placed at a timeline position. Validation is a pure
// function over the clip list and the uploaded file set: clips
// referencing missing sources are dropped, durations exceeding the
// remaining source duration are clamped, clips shorter than the
// minimum floor are dropped, and the survivors are stable-sorted into
// timeline order. An empty result is not an error here; the
// orchestrator decides that an empty timeline is fatal for the job.
package clips
