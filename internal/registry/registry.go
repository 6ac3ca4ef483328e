package registry

import (
	"sync"
	"time"

	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
)

// Result is a job's terminal outcome. The zero value means the job is
// still running.
type Result string

const (
	ResultNone      Result = ""
	ResultComplete  Result = "complete"
	ResultError     Result = "error"
	ResultCancelled Result = "cancelled"
)

// DefaultRetention is how long a terminal job entry stays visible to
// pollers before it is purged.
const DefaultRetention = 5 * time.Minute

// JobState is the poller-visible snapshot of one job.
type JobState struct {
	ID         string
	Percent    float64
	Stage      string
	Result     Result
	OutputName string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Terminal reports whether the job has reached its final state.
func (s JobState) Terminal() bool {
	return s.Result != ResultNone
}

// HistorySink receives terminal jobs for durable storage before the
// registry purges them. Implementations must be safe for concurrent use.
type HistorySink interface {
	RecordJob(state JobState) error
}

type entry struct {
	state      JobState
	cancelled  bool
	cancelChan chan struct{}
}

// Registry is the in-memory job store. Safe for concurrent readers and
// the per-job single writer.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*entry
	retention time.Duration
	history   HistorySink
}

// New creates a registry. A zero retention uses DefaultRetention.
// The history sink may be nil.
func New(retention time.Duration, history HistorySink) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		jobs:      make(map[string]*entry),
		retention: retention,
		history:   history,
	}
}

// Create registers a new running job.
func (r *Registry) Create(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.jobs[id] = &entry{
		state: JobState{
			ID:        id,
			Stage:     "Preparing",
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancelChan: make(chan struct{}),
	}
}

// Update sets a running job's percent and stage label. Percent never
// decreases; a lower value is clamped to the stored one. Updates to
// unknown or terminal jobs are ignored.
func (r *Registry) Update(id string, percent float64, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.state.Terminal() {
		return
	}

	if percent > 100 {
		percent = 100
	}
	if percent > e.state.Percent {
		e.state.Percent = percent
	}
	if stage != "" {
		e.state.Stage = stage
	}
	e.state.UpdatedAt = time.Now()
}

// Complete transitions a job to its complete terminal state with the
// downloadable output name. No-op if the job is already terminal.
func (r *Registry) Complete(id, outputName string) {
	r.terminal(id, func(e *entry) {
		e.state.Result = ResultComplete
		e.state.Percent = 100
		e.state.Stage = "Complete"
		e.state.OutputName = outputName
	})
}

// Fail transitions a job to its error terminal state. Percent freezes
// at zero so clients reset the bar alongside the error label.
func (r *Registry) Fail(id, message string) {
	r.terminal(id, func(e *entry) {
		e.state.Result = ResultError
		e.state.Percent = 0
		e.state.Stage = "Error: " + message
		e.state.Error = message
	})
}

// FinishCancelled transitions a job to its cancelled terminal state.
// Called by the orchestrator once in-flight work has been torn down.
func (r *Registry) FinishCancelled(id string) {
	r.terminal(id, func(e *entry) {
		e.state.Result = ResultCancelled
		e.state.Stage = "Cancelled"
	})
}

// terminal applies fn exactly once: a job that already reached a
// terminal state is never transitioned again.
func (r *Registry) terminal(id string, fn func(*entry)) {
	r.mu.Lock()

	e, ok := r.jobs[id]
	if !ok || e.state.Terminal() {
		r.mu.Unlock()
		return
	}

	fn(e)
	e.state.UpdatedAt = time.Now()
	state := e.state
	r.mu.Unlock()

	metrics.JobsTotal.WithLabelValues(string(state.Result)).Inc()
	metrics.JobDuration.WithLabelValues(string(state.Result)).Observe(state.UpdatedAt.Sub(state.CreatedAt).Seconds())

	if r.history != nil {
		if err := r.history.RecordJob(state); err != nil {
			logging.Warn("Failed to record job %s in history: %v", id, err)
		}
	}

	// Keep the terminal state visible to late pollers, then purge
	time.AfterFunc(r.retention, func() {
		r.Delete(id)
	})
}

// MarkCancelled flags a job for cancellation and closes its cancel
// channel. Idempotent, and deliberately successful for unknown or
// already-finished jobs.
func (r *Registry) MarkCancelled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.cancelled || e.state.Terminal() {
		return
	}

	e.cancelled = true
	close(e.cancelChan)
	logging.Info("Job %s marked for cancellation", id)
}

// Cancelled reports whether a job has been flagged for cancellation.
func (r *Registry) Cancelled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	return ok && e.cancelled
}

// CancelChan returns a channel closed when the job is marked cancelled,
// letting the orchestrator force-kill the active subprocess without
// waiting for the next stage boundary. Returns a never-closed channel
// for unknown jobs.
func (r *Registry) CancelChan(id string) <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.jobs[id]; ok {
		return e.cancelChan
	}
	return make(chan struct{})
}

// Get returns a snapshot of the job's state.
func (r *Registry) Get(id string) (JobState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok {
		return JobState{}, false
	}
	return e.state, true
}

// Delete removes a job entry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// ActiveCount returns the number of non-terminal jobs.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.jobs {
		if !e.state.Terminal() {
			count++
		}
	}
	return count
}
