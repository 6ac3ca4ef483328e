package poller

import "strings"

// Phase is a client-side bucket for the server's free-text stage labels.
type Phase string

const (
	PhaseUpload       Phase = "upload"
	PhaseValidation   Phase = "validation"
	PhaseProcessing   Phase = "processing"
	PhaseCompilation  Phase = "compilation"
	PhaseFinalization Phase = "finalization"
)

// Range is the slice of the displayed progress bar reserved for one phase.
type Range struct {
	Start float64
	End   float64
}

// StageRanges assigns each phase its display sub-range. The boundaries
// are presentation policy, not a derived formula.
type StageRanges map[Phase]Range

func DefaultStageRanges() StageRanges {
	return StageRanges{
		PhaseUpload:       {Start: 0, End: 20},
		PhaseValidation:   {Start: 20, End: 30},
		PhaseProcessing:   {Start: 30, End: 70},
		PhaseCompilation:  {Start: 70, End: 90},
		PhaseFinalization: {Start: 90, End: 100},
	}
}

// classifyStage buckets a stage label by case-insensitive substring
// match. Labels that match nothing degrade to processing so the
// progress bar keeps moving instead of breaking on unexpected text.
func classifyStage(stage string) Phase {
	s := strings.ToLower(stage)
	switch {
	case strings.Contains(s, "upload"):
		return PhaseUpload
	case strings.Contains(s, "validat"):
		return PhaseValidation
	case strings.Contains(s, "compil") || strings.Contains(s, "concat"):
		return PhaseCompilation
	case strings.Contains(s, "final"):
		return PhaseFinalization
	default:
		return PhaseProcessing
	}
}

// rescale maps a raw server percent (0..100) into the range.
func (r Range) rescale(raw float64) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return r.Start + raw/100*(r.End-r.Start)
}
