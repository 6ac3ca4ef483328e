package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"clip-compiler/internal/clips"
	"clip-compiler/internal/metrics"
	"clip-compiler/internal/registry"
	"clip-compiler/internal/transcode"
)

// fakeDriver scripts transcode outcomes without spawning subprocesses.
type fakeDriver struct {
	mu          sync.Mutex
	started     []transcode.Invocation
	probes      map[string]float64
	failKind    string // invocations of this kind fail
	blocking    bool   // handles finish only when killed
	writeOutput bool   // write bytes to each invocation's destination
}

func (d *fakeDriver) Probe(_ context.Context, path string) (float64, error) {
	if duration, ok := d.probes[path]; ok {
		return duration, nil
	}
	return 10, nil
}

func (d *fakeDriver) Start(_ context.Context, inv transcode.Invocation) (transcode.Handle, error) {
	d.mu.Lock()
	d.started = append(d.started, inv)
	failing := d.failKind == inv.Kind
	d.mu.Unlock()

	if d.writeOutput {
		dest := inv.Args[len(inv.Args)-1]
		if err := os.WriteFile(dest, []byte("partial encode"), 0o644); err != nil {
			return nil, err
		}
	}

	h := &fakeHandle{
		progress: make(chan float64, 4),
		done:     make(chan struct{}),
		killed:   make(chan struct{}),
	}

	if d.blocking {
		go func() {
			h.progress <- 10
			<-h.killed
			h.err = transcode.ErrKilled
			close(h.progress)
			close(h.done)
		}()
		return h, nil
	}

	go func() {
		h.progress <- 50
		h.progress <- 100
		if failing {
			h.err = transcode.ErrTimeout
		}
		close(h.progress)
		close(h.done)
	}()
	return h, nil
}

func (d *fakeDriver) invocations() []transcode.Invocation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]transcode.Invocation, len(d.started))
	copy(out, d.started)
	return out
}

type fakeHandle struct {
	progress chan float64
	done     chan struct{}
	killed   chan struct{}
	killOnce sync.Once
	err      error
}

func (h *fakeHandle) Progress() <-chan float64 { return h.progress }

func (h *fakeHandle) Kill() {
	h.killOnce.Do(func() { close(h.killed) })
}

func (h *fakeHandle) Wait() error {
	<-h.done
	return h.err
}

func testSetup(t *testing.T, driver transcode.Driver) (*Orchestrator, *registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(time.Minute, nil)
	o := New(reg, driver, Config{
		WorkDir:       filepath.Join(dir, "work"),
		OutputDir:     filepath.Join(dir, "out"),
		MaxConcurrent: 2,
	})
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	return o, reg, dir
}

func writeSource(t *testing.T, dir, name string) clips.SourceFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake media"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return clips.SourceFile{Path: path, OriginalName: name, Size: 10}
}

func waitTerminal(t *testing.T, reg *registry.Registry, jobID string) registry.JobState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if state, ok := reg.Get(jobID); ok && state.Terminal() {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Job %s never reached a terminal state", jobID)
	return registry.JobState{}
}

func TestSingleClipJobCompletes(t *testing.T) {
	driver := &fakeDriver{}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 2, Duration: 3, Position: 0}},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultComplete {
		t.Fatalf("Expected complete, got %q (%s)", state.Result, state.Stage)
	}
	if state.Percent != 100 {
		t.Errorf("Expected percent 100, got %v", state.Percent)
	}
	if state.OutputName != "compilation_job1.mp4" {
		t.Errorf("Unexpected output name %q", state.OutputName)
	}

	invs := driver.invocations()
	if len(invs) != 1 {
		t.Fatalf("Expected 1 invocation, got %d", len(invs))
	}
	if invs[0].Kind != transcode.KindClip {
		t.Errorf("Expected clip invocation, got %q", invs[0].Kind)
	}

	// The uploaded source is deleted on completion
	if _, err := os.Stat(src.Path); !os.IsNotExist(err) {
		t.Errorf("Expected source file removed, stat err = %v", err)
	}
}

func TestZeroValidClipsFailsWithoutTranscoding(t *testing.T) {
	driver := &fakeDriver{}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 7, Start: 0, Duration: 3}}, // no such source
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultError {
		t.Fatalf("Expected error, got %q", state.Result)
	}
	if state.Percent != 0 {
		t.Errorf("Expected percent reset to 0, got %v", state.Percent)
	}
	if !strings.HasPrefix(state.Stage, "Error:") {
		t.Errorf("Expected Error stage prefix, got %q", state.Stage)
	}
	if n := len(driver.invocations()); n != 0 {
		t.Errorf("Expected no transcoder invocations, got %d", n)
	}
}

func TestMultiClipJobRunsSequenceThenConcat(t *testing.T) {
	driver := &fakeDriver{probes: map[string]float64{}}
	o, reg, dir := testSetup(t, driver)

	a := writeSource(t, dir, "a.mp4")
	b := writeSource(t, dir, "b.mp4")
	driver.probes[a.Path] = 10
	driver.probes[b.Path] = 8

	o.Submit(Request{
		JobID: "job1",
		Clips: []clips.Clip{
			{SourceIndex: 0, Start: 2, Duration: 3, Position: 0},
			{SourceIndex: 1, Start: 1, Duration: 3, Position: 1},
		},
		Sources: []clips.SourceFile{a, b},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultComplete {
		t.Fatalf("Expected complete, got %q (%s)", state.Result, state.Stage)
	}

	invs := driver.invocations()
	if len(invs) != 3 {
		t.Fatalf("Expected 2 clip + 1 concat invocations, got %d", len(invs))
	}
	if invs[0].Kind != transcode.KindClip || invs[1].Kind != transcode.KindClip {
		t.Errorf("Expected first two invocations to be clips, got %q %q", invs[0].Kind, invs[1].Kind)
	}
	if invs[2].Kind != transcode.KindConcat {
		t.Errorf("Expected final invocation to be concat, got %q", invs[2].Kind)
	}
	if invs[2].Duration != 6 {
		t.Errorf("Expected concat duration 6, got %v", invs[2].Duration)
	}

	// Temp namespace is cleaned up on completion
	if _, err := os.Stat(filepath.Join(dir, "work", "job1")); !os.IsNotExist(err) {
		t.Errorf("Expected temp dir removed, stat err = %v", err)
	}
}

func TestDurationClampedToSource(t *testing.T) {
	driver := &fakeDriver{probes: map[string]float64{}}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "short.mp4")
	driver.probes[src.Path] = 3 // 3s source

	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 5}},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultComplete {
		t.Fatalf("Expected complete, got %q (%s)", state.Result, state.Stage)
	}

	invs := driver.invocations()
	if len(invs) != 1 {
		t.Fatalf("Expected 1 invocation, got %d", len(invs))
	}
	if invs[0].Duration != 3 {
		t.Errorf("Expected clamped duration 3, got %v", invs[0].Duration)
	}
}

func TestCancelMidSequenceStopsRemainingClips(t *testing.T) {
	driver := &fakeDriver{blocking: true}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	var clipList []clips.Clip
	for i := 0; i < 5; i++ {
		clipList = append(clipList, clips.Clip{SourceIndex: 0, Start: 0, Duration: 1, Position: i})
	}

	o.Submit(Request{JobID: "job1", Clips: clipList, Sources: []clips.SourceFile{src}})

	// Wait for the first clip invocation to start, then cancel
	deadline := time.Now().Add(5 * time.Second)
	for len(driver.invocations()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("First invocation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	reg.MarkCancelled("job1")

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultCancelled {
		t.Fatalf("Expected cancelled, got %q (%s)", state.Result, state.Stage)
	}
	if state.Stage != "Cancelled" {
		t.Errorf("Expected Cancelled stage, got %q", state.Stage)
	}

	if n := len(driver.invocations()); n != 1 {
		t.Errorf("Expected exactly 1 invocation before cancellation, got %d", n)
	}

	// Cleanup still runs on the cancel path
	if _, err := os.Stat(filepath.Join(dir, "work", "job1")); !os.IsNotExist(err) {
		t.Errorf("Expected temp dir removed, stat err = %v", err)
	}
	if _, err := os.Stat(src.Path); !os.IsNotExist(err) {
		t.Errorf("Expected source removed, stat err = %v", err)
	}
}

func TestSubprocessFailureMovesJobToError(t *testing.T) {
	driver := &fakeDriver{failKind: transcode.KindClip}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 2}},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultError {
		t.Fatalf("Expected error, got %q", state.Result)
	}
	if !strings.Contains(state.Stage, "timed out") {
		t.Errorf("Expected timeout detail in stage, got %q", state.Stage)
	}
}

func TestPercentMonotonicAcrossJob(t *testing.T) {
	driver := &fakeDriver{}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID: "job1",
		Clips: []clips.Clip{
			{SourceIndex: 0, Start: 0, Duration: 2, Position: 0},
			{SourceIndex: 0, Start: 2, Duration: 2, Position: 1},
		},
		Sources: []clips.SourceFile{src},
	})

	last := -1.0
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, ok := reg.Get("job1")
		if !ok {
			t.Fatal("Job vanished before terminal state")
		}
		if state.Percent < last {
			t.Fatalf("Percent regressed from %v to %v (%s)", last, state.Percent, state.Stage)
		}
		last = state.Percent
		if state.Terminal() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Job never reached a terminal state")
}

func TestFailedJobRemovesPartialOutput(t *testing.T) {
	driver := &fakeDriver{failKind: transcode.KindClip, writeOutput: true}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 2}},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultError {
		t.Fatalf("Expected error, got %q (%s)", state.Result, state.Stage)
	}

	// The truncated artifact must not be left downloadable
	artifact := filepath.Join(dir, "out", "compilation_job1.mp4")
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("Expected partial output removed, stat err = %v", err)
	}
}

func TestCancelledJobRemovesPartialOutput(t *testing.T) {
	driver := &fakeDriver{blocking: true, writeOutput: true}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 2}},
		Sources: []clips.SourceFile{src},
	})

	deadline := time.Now().Add(5 * time.Second)
	for len(driver.invocations()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Invocation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	reg.MarkCancelled("job1")

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultCancelled {
		t.Fatalf("Expected cancelled, got %q (%s)", state.Result, state.Stage)
	}

	artifact := filepath.Join(dir, "out", "compilation_job1.mp4")
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("Expected partial output removed, stat err = %v", err)
	}
}

func TestCompletedJobKeepsOutput(t *testing.T) {
	driver := &fakeDriver{writeOutput: true}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 2}},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultComplete {
		t.Fatalf("Expected complete, got %q (%s)", state.Result, state.Stage)
	}

	artifact := filepath.Join(dir, "out", "compilation_job1.mp4")
	if _, err := os.Stat(artifact); err != nil {
		t.Errorf("Expected output kept on success, stat err = %v", err)
	}
}

func TestDroppedClipsCountedOnce(t *testing.T) {
	driver := &fakeDriver{}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	before := testutil.ToFloat64(metrics.JobClipsDropped)

	o.Submit(Request{
		JobID: "job1",
		Clips: []clips.Clip{
			{SourceIndex: 0, Start: 0, Duration: 2, Position: 0},
			{SourceIndex: 9, Start: 0, Duration: 2, Position: 1}, // no such source
		},
		Sources: []clips.SourceFile{src},
	})

	state := waitTerminal(t, reg, "job1")
	if state.Result != registry.ResultComplete {
		t.Fatalf("Expected complete, got %q (%s)", state.Result, state.Stage)
	}

	if delta := testutil.ToFloat64(metrics.JobClipsDropped) - before; delta != 1 {
		t.Errorf("Expected dropped-clip counter to rise by 1, got %v", delta)
	}
}

func TestShutdownKillsActiveJobs(t *testing.T) {
	driver := &fakeDriver{blocking: true}
	o, reg, dir := testSetup(t, driver)

	src := writeSource(t, dir, "a.mp4")
	o.Submit(Request{
		JobID:   "job1",
		Clips:   []clips.Clip{{SourceIndex: 0, Start: 0, Duration: 2}},
		Sources: []clips.SourceFile{src},
	})

	deadline := time.Now().Add(5 * time.Second)
	for len(driver.invocations()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Invocation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	state, ok := reg.Get("job1")
	if !ok || !state.Terminal() {
		t.Fatalf("Expected terminal state after shutdown, got %+v (found %v)", state, ok)
	}
}
