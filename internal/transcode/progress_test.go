package transcode

import (
	"strings"
	"testing"
)

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line     string
		key      string
		value    string
		expected bool
	}{
		{"out_time_ms=1500000", "out_time_ms", "1500000", true},
		{"out_time=00:00:01.500000", "out_time", "00:00:01.500000", true},
		{"progress=continue", "progress", "continue", true},
		{"progress=end", "progress", "end", true},
		{"  speed=2.5x  ", "speed", "2.5x", true},
		{"", "", "", false},
		{"no equals sign", "", "", false},
		{"=leading equals", "", "", false},
	}

	for _, tt := range tests {
		key, value, ok := parseProgressLine(tt.line)
		if ok != tt.expected {
			t.Errorf("parseProgressLine(%q) ok = %v, expected %v", tt.line, ok, tt.expected)
			continue
		}
		if ok && (key != tt.key || value != tt.value) {
			t.Errorf("parseProgressLine(%q) = (%q, %q), expected (%q, %q)", tt.line, key, value, tt.key, tt.value)
		}
	}
}

func TestProgressSeconds(t *testing.T) {
	tests := []struct {
		key      string
		value    string
		seconds  float64
		expected bool
	}{
		{"out_time_ms", "1500000", 1.5, true},
		{"out_time_us", "2000000", 2.0, true},
		{"out_time_ms", "0", 0, true},
		{"out_time_ms", "-500", 0, false},
		{"out_time_ms", "garbage", 0, false},
		{"out_time", "00:01:30.500000", 90.5, true},
		{"out_time", "01:00:00.000000", 3600, true},
		{"out_time", "bad", 0, false},
		{"frame", "42", 0, false},
		{"speed", "2.5x", 0, false},
	}

	for _, tt := range tests {
		seconds, ok := progressSeconds(tt.key, tt.value)
		if ok != tt.expected {
			t.Errorf("progressSeconds(%q, %q) ok = %v, expected %v", tt.key, tt.value, ok, tt.expected)
			continue
		}
		if ok && seconds != tt.seconds {
			t.Errorf("progressSeconds(%q, %q) = %v, expected %v", tt.key, tt.value, seconds, tt.seconds)
		}
	}
}

func TestUnitPercent(t *testing.T) {
	tests := []struct {
		elapsed  float64
		expected float64
		duration float64
	}{
		{elapsed: 1.5, duration: 3.0, expected: 50},
		{elapsed: 0, duration: 3.0, expected: 0},
		{elapsed: 4.0, duration: 3.0, expected: 100}, // clamped
		{elapsed: -1, duration: 3.0, expected: 0},
		{elapsed: 1, duration: 0, expected: 0}, // unknown duration
	}

	for _, tt := range tests {
		if got := unitPercent(tt.elapsed, tt.duration); got != tt.expected {
			t.Errorf("unitPercent(%v, %v) = %v, expected %v", tt.elapsed, tt.duration, got, tt.expected)
		}
	}
}

func TestClipInvocationFlags(t *testing.T) {
	inv := ClipInvocation("/in/source.mp4", 2.0, 3.5, "/out/clip_000.mp4")

	if inv.Kind != KindClip {
		t.Errorf("Expected kind %q, got %q", KindClip, inv.Kind)
	}
	if inv.Duration != 3.5 {
		t.Errorf("Expected duration 3.5, got %v", inv.Duration)
	}
	if inv.Timeout != DefaultClipTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultClipTimeout, inv.Timeout)
	}

	joined := strings.Join(inv.Args, " ")
	for _, want := range []string{
		"-ss 2.000",
		"-t 3.500",
		"-r 30",
		"-pix_fmt yuv420p",
		"-c:v libx264",
		"-c:a aac",
		"-progress pipe:1",
		"/out/clip_000.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Clip args missing %q: %s", want, joined)
		}
	}
}

func TestConcatInvocationStreamCopies(t *testing.T) {
	inv := ConcatInvocation("/tmp/job/manifest.txt", "/out/final.mp4", 6.0)

	if inv.Kind != KindConcat {
		t.Errorf("Expected kind %q, got %q", KindConcat, inv.Kind)
	}
	if inv.Timeout != DefaultConcatTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultConcatTimeout, inv.Timeout)
	}

	joined := strings.Join(inv.Args, " ")
	if !strings.Contains(joined, "-f concat") {
		t.Errorf("Concat args missing concat demuxer: %s", joined)
	}
	if !strings.Contains(joined, "-c copy") {
		t.Errorf("Concat args missing stream copy: %s", joined)
	}
	if strings.Contains(joined, "libx264") {
		t.Errorf("Concat must not re-encode: %s", joined)
	}
}

func TestEscapeManifestPath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"/tmp/plain.mp4", "/tmp/plain.mp4"},
		{"/tmp/it's here.mp4", `/tmp/it'\''s here.mp4`},
	}

	for _, tt := range tests {
		if got := escapeManifestPath(tt.in); got != tt.expected {
			t.Errorf("escapeManifestPath(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}
