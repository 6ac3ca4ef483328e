package sweeper

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"clip-compiler/internal/filesystem"
	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
)

// DefaultInterval is how often a sweep runs.
const DefaultInterval = 5 * time.Minute

// SessionSweeper expires abandoned upload sessions and reports how many
// were removed.
type SessionSweeper interface {
	Sweep() int
}

// Sweeper periodically expires upload sessions and deletes old output
// artifacts.
type Sweeper struct {
	sessions  SessionSweeper
	outputDir string
	maxAge    time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu            sync.Mutex
	lastSweepTime time.Time
}

// New creates a sweeper. maxAge <= 0 disables artifact cleanup;
// sessions may be nil to disable session expiry.
func New(sessions SessionSweeper, outputDir string, maxAge, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		sessions:  sessions,
		outputDir: outputDir,
		maxAge:    maxAge,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the sweep loop in the background.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop ends the sweep loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// LastSweepTime reports when a sweep last finished.
func (s *Sweeper) LastSweepTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSweepTime
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopChan:
			return
		}
	}
}

// Sweep runs one cleanup pass.
func (s *Sweeper) Sweep() {
	if s.sessions != nil {
		if removed := s.sessions.Sweep(); removed > 0 {
			logging.Info("Expired %d abandoned upload sessions", removed)
		}
	}
	if s.maxAge > 0 && s.outputDir != "" {
		if removed := s.sweepOutputs(); removed > 0 {
			logging.Info("Removed %d expired output artifacts", removed)
		}
	}

	s.mu.Lock()
	s.lastSweepTime = time.Now()
	s.mu.Unlock()
}

// sweepOutputs deletes finished artifacts older than maxAge. Clients
// are expected to download promptly; the output directory is not an
// archive.
func (s *Sweeper) sweepOutputs() int {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		logging.Warn("Output sweep failed to read %s: %v", s.outputDir, err)
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.outputDir, entry.Name())
		if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
			logging.Warn("Failed to remove expired artifact %s: %v", path, err)
			continue
		}
		metrics.CleanupFilesRemoved.WithLabelValues("output").Inc()
		removed++
	}
	return removed
}
