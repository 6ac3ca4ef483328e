package memory

import (
	"runtime/debug"
	"testing"
)

// resetMemLimit restores the runtime memory limit after a test mutates it.
func resetMemLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvUnset(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured=false with no environment")
	}
	if result.Source != "none" {
		t.Errorf("Expected Source=none, got %q", result.Source)
	}
}

func TestConfigureFromEnvContainerLimit(t *testing.T) {
	resetMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Fatal("Expected Configured=true")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Expected Source=MEMORY_LIMIT, got %q", result.Source)
	}
	if result.ContainerLimit != 1073741824 {
		t.Errorf("Expected ContainerLimit=1GiB, got %d", result.ContainerLimit)
	}

	ratio := float64(DefaultMemoryRatio)
	expected := int64(1073741824 * ratio)
	if result.GoMemLimit != expected {
		t.Errorf("Expected GoMemLimit=%d, got %d", expected, result.GoMemLimit)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	resetMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()

	if result.Ratio != 0.5 {
		t.Errorf("Expected Ratio=0.5, got %f", result.Ratio)
	}
	if result.GoMemLimit != 500000000 {
		t.Errorf("Expected GoMemLimit=500000000, got %d", result.GoMemLimit)
	}
}

func TestConfigureFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		limit string
		ratio string
	}{
		{"Garbage limit", "not-a-number", ""},
		{"Negative limit", "-100", ""},
		{"Zero limit", "0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()
			if result.Configured {
				t.Errorf("Expected Configured=false for limit=%q", tt.limit)
			}
		})
	}
}

func TestConfigureFromEnvOutOfRangeRatioUsesDefault(t *testing.T) {
	resetMemLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "1.5")

	result := ConfigureFromEnv()

	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Expected default ratio %.2f, got %f", DefaultMemoryRatio, result.Ratio)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, expected %q", tt.bytes, got, tt.expected)
		}
	}
}
