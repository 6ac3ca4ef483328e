package workers

import (
	"os"
	"runtime"
	"strconv"
)

// DefaultTranscodeCap bounds concurrent transcoding jobs regardless of
// how many cores the machine has. The transcoder is multi-threaded
// internally, so stacking more jobs past this point oversubscribes CPU.
const DefaultTranscodeCap = 3

// ForTranscode returns the number of compilation jobs that may run
// transcoder subprocesses concurrently: available cores minus one
// (reserved for request handling), capped at DefaultTranscodeCap,
// never below one.
//
// The COMPILE_WORKERS environment variable overrides the calculation;
// the override is an operator escape hatch and is not capped.
func ForTranscode() int {
	if override := os.Getenv("COMPILE_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}

	budget := runtime.GOMAXPROCS(0) - 1
	if budget < 1 {
		budget = 1
	}
	if budget > DefaultTranscodeCap {
		budget = DefaultTranscodeCap
	}
	return budget
}
