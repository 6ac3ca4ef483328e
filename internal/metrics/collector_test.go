package metrics

import (
	"testing"
	"time"
)

type fakeStatsProvider struct {
	stats Stats
	calls int
}

func (f *fakeStatsProvider) GetStats() Stats {
	f.calls++
	return f.stats
}

func TestNewCollector(t *testing.T) {
	provider := &fakeStatsProvider{}
	c := NewCollector(provider, time.Minute)

	if c == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if c.interval != time.Minute {
		t.Errorf("Expected interval=1m, got %v", c.interval)
	}
}

func TestCollectorCollect(t *testing.T) {
	provider := &fakeStatsProvider{
		stats: Stats{OpenSessions: 3},
	}

	c := NewCollector(provider, time.Minute)
	c.collect()

	if provider.calls != 1 {
		t.Errorf("Expected 1 GetStats call, got %d", provider.calls)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Minute)

	// Must not panic when no provider is configured
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &fakeStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)

	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	if provider.calls < 1 {
		t.Errorf("Expected at least 1 GetStats call, got %d", provider.calls)
	}
}

func TestInitializeMetrics(t *testing.T) {
	// Pre-population must not panic and must be idempotent
	InitializeMetrics()
	InitializeMetrics()
}
