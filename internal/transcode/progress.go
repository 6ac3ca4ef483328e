package transcode

import (
	"strconv"
	"strings"
)

// parseProgressLine splits one line of ffmpeg's -progress pipe:1
// stream into its key and value. The stream is strictly key=value,
// one pair per line.
func parseProgressLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	idx := strings.IndexByte(line, '=')
	if idx <= 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

// progressSeconds extracts the elapsed output time in seconds from a
// progress key/value pair. ffmpeg reports both out_time_ms (an integer
// count of microseconds, despite the name) and out_time (a clock
// string); either is accepted.
func progressSeconds(key, value string) (float64, bool) {
	switch key {
	case "out_time_ms", "out_time_us":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return float64(us) / 1e6, true
	case "out_time":
		sec := clockToSeconds(value)
		if sec < 0 {
			return 0, false
		}
		return sec, true
	}
	return 0, false
}

// clockToSeconds converts ffmpeg's HH:MM:SS.micro clock format to
// seconds. Returns -1 on malformed input.
func clockToSeconds(clock string) float64 {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return -1
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return -1
	}

	return hours*3600 + minutes*60 + seconds
}

// unitPercent maps elapsed output seconds onto a 0-100 percentage of
// the expected unit duration, clamped at both ends.
func unitPercent(elapsed, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	percent := elapsed / expected * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
