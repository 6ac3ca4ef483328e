package sweeper

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSessions struct {
	calls   int
	removed int
}

func (f *fakeSessions) Sweep() int {
	f.calls++
	return f.removed
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("Failed to age %s: %v", name, err)
	}
	return path
}

func TestSweepRemovesExpiredArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.mp4", 48*time.Hour)
	fresh := writeAged(t, dir, "fresh.mp4", time.Minute)

	s := New(nil, dir, 24*time.Hour, time.Minute)
	s.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected expired artifact removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected fresh artifact kept, got %v", err)
	}
}

func TestSweepSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	when := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(sub, when, when); err != nil {
		t.Fatalf("Failed to age subdir: %v", err)
	}

	s := New(nil, dir, 24*time.Hour, time.Minute)
	s.Sweep()

	if _, err := os.Stat(sub); err != nil {
		t.Errorf("Expected directory untouched, got %v", err)
	}
}

func TestSweepDisabledByZeroMaxAge(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.mp4", 48*time.Hour)

	s := New(nil, dir, 0, time.Minute)
	s.Sweep()

	if _, err := os.Stat(old); err != nil {
		t.Errorf("Expected artifact kept when cleanup disabled, got %v", err)
	}
}

func TestSweepCallsSessionSweeper(t *testing.T) {
	sessions := &fakeSessions{removed: 2}
	s := New(sessions, "", 0, time.Minute)

	s.Sweep()
	s.Sweep()

	if sessions.calls != 2 {
		t.Errorf("Expected 2 session sweeps, got %d", sessions.calls)
	}
	if s.LastSweepTime().IsZero() {
		t.Error("Expected last sweep time recorded")
	}
}

func TestStartStop(t *testing.T) {
	sessions := &fakeSessions{}
	s := New(sessions, "", 0, 10*time.Millisecond)

	s.Start()
	time.Sleep(35 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent

	if sessions.calls == 0 {
		t.Error("Expected periodic sweeps to run")
	}
}
