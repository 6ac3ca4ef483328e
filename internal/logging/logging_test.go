package logging

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		level    string
		expected LogLevel
	}{
		{
			name:     "Debug via LOG_LEVEL",
			level:    "debug",
			expected: LevelDebug,
		},
		{
			name:     "Info via LOG_LEVEL",
			level:    "info",
			expected: LevelInfo,
		},
		{
			name:     "Warn via LOG_LEVEL",
			level:    "warn",
			expected: LevelWarn,
		},
		{
			name:     "Warning alias",
			level:    "warning",
			expected: LevelWarn,
		},
		{
			name:     "Error via LOG_LEVEL",
			level:    "error",
			expected: LevelError,
		},
		{
			name:     "Case insensitive",
			level:    "DEBUG",
			expected: LevelDebug,
		},
		{
			name:     "Empty defaults to info",
			expected: LevelInfo,
		},
		{
			name:     "Garbage defaults to info",
			level:    "loud",
			expected: LevelInfo,
		},
		{
			name:     "DEBUG env wins over LOG_LEVEL",
			debug:    "true",
			level:    "error",
			expected: LevelDebug,
		},
		{
			name:     "DEBUG=1 enables debug",
			debug:    "1",
			expected: LevelDebug,
		},
		{
			name:     "DEBUG=false is ignored",
			debug:    "false",
			level:    "warn",
			expected: LevelWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevel(tt.debug, tt.level)
			if got != tt.expected {
				t.Errorf("parseLevel(%q, %q) = %v, expected %v", tt.debug, tt.level, got, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, expected %q", tt.level, got, tt.expected)
		}
	}
}

func TestLogFunctionsDoNotPanic(t *testing.T) {
	Debug("debug %s", "message")
	Info("info %s", "message")
	Warn("warn %s", "message")
	Error("error %s", "message")
	Printf("printf %s", "message")
}
