package metrics

import (
	"runtime"
	"runtime/debug"
	"time"

	"clip-compiler/internal/logging"
)

// StatsProvider supplies the gauge values the collector refreshes.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds gauge values the collector owns. Job activity gauges are
// maintained by the orchestrator itself and are not set here.
type Stats struct {
	OpenSessions int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			logging.Debug("Metrics collector stopped")
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()
		UploadSessionsActive.Set(float64(stats.OpenSessions))
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.Alloc))

	if limit := debug.SetMemoryLimit(-1); limit > 0 {
		GoMemLimit.Set(float64(limit))
	}
}
