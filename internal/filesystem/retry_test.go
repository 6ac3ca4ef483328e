package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("Expected InitialBackoff=50ms, got %v", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("Expected MaxBackoff=500ms, got %v", config.MaxBackoff)
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"EBUSY", syscall.EBUSY, true},
		{"ETXTBSY", syscall.ETXTBSY, true},
		{"ENOENT", syscall.ENOENT, false},
		{"wrapped ESTALE", &os.PathError{Op: "remove", Path: "/x", Err: syscall.ESTALE}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientError(tt.err); got != tt.expected {
				t.Errorf("isTransientError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRemoveWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim.mp4")

	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := RemoveWithRetry(path, fastRetryConfig()); err != nil {
		t.Errorf("RemoveWithRetry failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}
}

func TestRemoveWithRetryMissingFile(t *testing.T) {
	// Cleanup runs on every terminal path, so deleting an already
	// deleted file must not report an error.
	err := RemoveWithRetry(filepath.Join(t.TempDir(), "never-existed.mp4"), fastRetryConfig())
	if err != nil {
		t.Errorf("RemoveWithRetry on missing file = %v, expected nil", err)
	}
}

func TestRemoveAllWithRetry(t *testing.T) {
	dir := t.TempDir()
	jobDir := filepath.Join(dir, "job-123")

	if err := os.MkdirAll(filepath.Join(jobDir, "nested"), 0o755); err != nil {
		t.Fatalf("Failed to create test dirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "clip_0.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := RemoveAllWithRetry(jobDir, fastRetryConfig()); err != nil {
		t.Errorf("RemoveAllWithRetry failed: %v", err)
	}

	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Error("Expected directory tree to be removed")
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.mp4")

	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Expected size=4, got %d", info.Size())
	}

	if _, err := StatWithRetry(filepath.Join(dir, "absent"), fastRetryConfig()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry("stat", "/x", fastRetryConfig(), func() error {
		calls++
		return errors.New("permanent")
	})

	if err == nil {
		t.Error("Expected error to propagate")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for permanent error, got %d", calls)
	}
}

func TestWithRetryRetriesTransient(t *testing.T) {
	calls := 0
	err := withRetry("remove", "/x", fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.EBUSY
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}
