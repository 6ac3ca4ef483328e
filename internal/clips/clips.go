package clips

import (
	"os"
	"sort"

	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
)

// MinDuration is the shortest clip worth encoding, in seconds. Clips
// that clamp below this are dropped silently rather than failing the
// whole job.
const MinDuration = 0.1

// Clip is one trim of an uploaded source file placed on the timeline.
// Immutable once a job starts; supplied wholesale at job creation.
type Clip struct {
	SourceIndex int     `json:"sourceIndex"`
	Start       float64 `json:"startTime"`
	Duration    float64 `json:"duration"`
	Position    int     `json:"position"`
}

// SourceFile is an uploaded media file available to a job. Duration is
// the probed length in seconds; zero means the probe failed and
// clamping is skipped for clips of that source.
type SourceFile struct {
	Path         string
	OriginalName string
	Size         int64
	Duration     float64
}

// Validate filters and orders a job's clip list against its uploaded
// file set. It drops clips whose source index has no corresponding
// file or whose file is missing from disk, clamps durations to the
// available source duration, drops clips below the minimum floor, and
// stable-sorts the remainder by timeline position (ties keep their
// original relative order).
//
// Returns an empty slice, not an error, when nothing survives.
func Validate(list []Clip, sources []SourceFile) []Clip {
	valid := make([]Clip, 0, len(list))

	for _, c := range list {
		if c.SourceIndex < 0 || c.SourceIndex >= len(sources) {
			logging.Warn("Dropping clip at position %d: source index %d out of range", c.Position, c.SourceIndex)
			metrics.JobClipsDropped.Inc()
			continue
		}

		src := sources[c.SourceIndex]
		if _, err := os.Stat(src.Path); err != nil {
			logging.Warn("Dropping clip at position %d: source file %s unavailable: %v", c.Position, src.Path, err)
			metrics.JobClipsDropped.Inc()
			continue
		}

		if c.Start < 0 {
			c.Start = 0
		}

		// Clamp to the remaining source duration instead of rejecting
		if src.Duration > 0 {
			if c.Start >= src.Duration {
				logging.Warn("Dropping clip at position %d: start %.2fs beyond source end %.2fs", c.Position, c.Start, src.Duration)
				metrics.JobClipsDropped.Inc()
				continue
			}
			if remaining := src.Duration - c.Start; c.Duration > remaining {
				logging.Debug("Clamping clip at position %d: %.2fs requested, %.2fs available", c.Position, c.Duration, remaining)
				c.Duration = remaining
			}
		}

		if c.Duration < MinDuration {
			logging.Debug("Dropping clip at position %d: duration %.3fs below floor", c.Position, c.Duration)
			metrics.JobClipsDropped.Inc()
			continue
		}

		valid = append(valid, c)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Position < valid[j].Position
	})

	return valid
}
