package startup

import (
	"os"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT64", "1048576")
	if got := getEnvInt64("TEST_INT64", 42); got != 1048576 {
		t.Errorf("Expected 1048576, got %d", got)
	}

	t.Setenv("TEST_INT64_BAD", "not a number")
	if got := getEnvInt64("TEST_INT64_BAD", 42); got != 42 {
		t.Errorf("Expected default 42 for invalid value, got %d", got)
	}

	os.Unsetenv("TEST_INT64_UNSET")
	if got := getEnvInt64("TEST_INT64_UNSET", 42); got != 42 {
		t.Errorf("Expected default 42 for unset variable, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("Expected 90s, got %s", got)
	}

	t.Setenv("TEST_DURATION_BAD", "ninety seconds")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("Expected default 1m for invalid value, got %s", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("UPLOAD_DIR", dir+"/uploads")
	t.Setenv("WORK_DIR", dir+"/work")
	t.Setenv("OUTPUT_DIR", dir+"/output")
	t.Setenv("DATABASE_DIR", dir+"/database")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", config.Port)
	}
	if config.JobRetention != 5*time.Minute {
		t.Errorf("Expected default retention 5m, got %s", config.JobRetention)
	}
	if config.MaxConcurrentJobs != 0 {
		t.Errorf("Expected default concurrency 0 (core-based), got %d", config.MaxConcurrentJobs)
	}
	if config.DatabasePath == "" {
		t.Error("Expected derived database path to be set")
	}
	if config.StagingDir == "" {
		t.Error("Expected derived staging dir to be set")
	}

	// All four directories must now exist
	for _, path := range []string{config.UploadDir, config.WorkDir, config.OutputDir, config.DatabaseDir} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected directory %s created: %v", path, err)
		}
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "GET",
		Path:   "/progress/{jobId}",
		Name:   "Progress",
	}

	if route.Method != "GET" {
		t.Errorf("Expected Method=GET, got %s", route.Method)
	}
	if route.Path != "/progress/{jobId}" {
		t.Errorf("Expected Path=/progress/{jobId}, got %s", route.Path)
	}
}
