package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"clip-compiler/internal/clips"
	"clip-compiler/internal/filesystem"
	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
	"clip-compiler/internal/registry"
	"clip-compiler/internal/transcode"
)

// StageWindows maps each pipeline stage onto its slice of the overall
// job percentage. The boundaries are presentation policy, not derived
// values.
type StageWindows struct {
	SingleStart float64
	SingleEnd   float64
	MultiStart  float64
	MultiEnd    float64
	ConcatStart float64
	ConcatEnd   float64
}

// DefaultStageWindows returns the standard percent windows: a lone
// clip encodes across 25-95, a multi-clip sequence across 20-85, and
// the concatenation across 85-95.
func DefaultStageWindows() StageWindows {
	return StageWindows{
		SingleStart: 25, SingleEnd: 95,
		MultiStart: 20, MultiEnd: 85,
		ConcatStart: 85, ConcatEnd: 95,
	}
}

// Config tunes the orchestrator.
type Config struct {
	WorkDir       string // per-job temp dirs live under here
	OutputDir     string // finished artifacts
	MaxConcurrent int    // cross-job parallelism budget
	Windows       StageWindows
}

// Request is one compilation job. Sources are uploaded files the job
// now owns; the orchestrator deletes them on every outcome.
type Request struct {
	JobID   string
	Clips   []clips.Clip
	Sources []clips.SourceFile
}

// jobCancelled marks a terminal outcome caused by cancellation rather
// than failure.
var jobCancelled = errors.New("job cancelled")

// Orchestrator sequences compilation jobs.
type Orchestrator struct {
	registry *registry.Registry
	driver   transcode.Driver
	config   Config

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	handles map[string]transcode.Handle
}

// New creates an orchestrator writing into reg and driving transcodes
// through driver.
func New(reg *registry.Registry, driver transcode.Driver, config Config) *Orchestrator {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	zero := StageWindows{}
	if config.Windows == zero {
		config.Windows = DefaultStageWindows()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry: reg,
		driver:   driver,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, config.MaxConcurrent),
		handles:  make(map[string]transcode.Handle),
	}
}

// Submit registers the job and starts processing it in the background.
func (o *Orchestrator) Submit(req Request) {
	o.registry.Create(req.JobID)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(req)
	}()
}

// Shutdown stops accepting work, kills every active subprocess, and
// waits for in-flight jobs to reach their terminal states or the
// context to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	o.mu.Lock()
	for id, h := range o.handles {
		logging.Info("Shutdown: killing active transcode for job %s", id)
		h.Kill()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with jobs still active: %w", ctx.Err())
	}
}

// run takes the job through the semaphore, the pipeline, and exactly
// one terminal transition with its cleanup.
func (o *Orchestrator) run(req Request) {
	tempDir := filepath.Join(o.config.WorkDir, req.JobID)

	metrics.JobsQueued.Inc()
	select {
	case o.sem <- struct{}{}:
		metrics.JobsQueued.Dec()
	case <-o.registry.CancelChan(req.JobID):
		metrics.JobsQueued.Dec()
		o.finish(req, tempDir, "", jobCancelled)
		return
	case <-o.ctx.Done():
		metrics.JobsQueued.Dec()
		o.finish(req, tempDir, "", jobCancelled)
		return
	}
	defer func() { <-o.sem }()

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	outputName, err := o.compile(req, tempDir)
	o.finish(req, tempDir, outputName, err)
}

// finish is the single terminal-transition handler: delete the job's
// temp namespace, its uploaded sources, and on any non-success outcome
// the partially-written final artifact, then apply the one terminal
// registry call the outcome demands.
func (o *Orchestrator) finish(req Request, tempDir, outputName string, err error) {
	retry := filesystem.DefaultRetryConfig()
	if removeErr := filesystem.RemoveAllWithRetry(tempDir, retry); removeErr != nil {
		logging.Warn("Job %s: failed to remove temp dir: %v", req.JobID, removeErr)
	} else {
		metrics.CleanupFilesRemoved.WithLabelValues("temp").Inc()
	}

	for _, src := range req.Sources {
		if removeErr := filesystem.RemoveWithRetry(src.Path, retry); removeErr != nil {
			logging.Warn("Job %s: failed to remove upload %s: %v", req.JobID, src.Path, removeErr)
			continue
		}
		metrics.CleanupFilesRemoved.WithLabelValues("upload").Inc()
	}

	// A killed, timed-out, or failed encode can leave a truncated file
	// at the final path; it must never stay downloadable
	if err != nil {
		artifact := filepath.Join(o.config.OutputDir, outputFileName(req.JobID))
		if _, statErr := os.Stat(artifact); statErr == nil {
			if removeErr := filesystem.RemoveWithRetry(artifact, retry); removeErr != nil {
				logging.Warn("Job %s: failed to remove partial output %s: %v", req.JobID, artifact, removeErr)
			} else {
				metrics.CleanupFilesRemoved.WithLabelValues("output").Inc()
			}
		}
	}

	switch {
	case err == nil:
		logging.Info("Job %s complete: %s", req.JobID, outputName)
		o.registry.Complete(req.JobID, outputName)
	case errors.Is(err, jobCancelled):
		logging.Info("Job %s cancelled", req.JobID)
		o.registry.FinishCancelled(req.JobID)
	default:
		logging.Error("Job %s failed: %v", req.JobID, err)
		o.registry.Fail(req.JobID, userMessage(err))
	}
}

// outputFileName is the final artifact name a job writes into OutputDir.
func outputFileName(jobID string) string {
	return "compilation_" + jobID + ".mp4"
}

// compile runs Preparing through Finalizing and returns the output
// file name. A jobCancelled return means a boundary check or a killed
// subprocess observed the cancellation.
func (o *Orchestrator) compile(req Request, tempDir string) (string, error) {
	o.registry.Update(req.JobID, 5, "Preparing")

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job temp dir: %w", err)
	}

	for i := range req.Sources {
		if req.Sources[i].Duration > 0 {
			continue
		}
		duration, err := o.driver.Probe(o.ctx, req.Sources[i].Path)
		if err != nil {
			// An unreadable source just loses duration clamping;
			// the encode itself will surface the real problem.
			logging.Warn("Job %s: probe failed for %s: %v", req.JobID, req.Sources[i].Path, err)
			continue
		}
		req.Sources[i].Duration = duration
	}

	if o.cancelled(req.JobID) {
		return "", jobCancelled
	}

	valid := clips.Validate(req.Clips, req.Sources)
	if len(valid) == 0 {
		return "", errors.New("no valid clips to process")
	}
	o.registry.Update(req.JobID, 15, fmt.Sprintf("Validating clips: %d of %d usable", len(valid), len(req.Clips)))

	outputName := outputFileName(req.JobID)
	outputPath := filepath.Join(o.config.OutputDir, outputName)

	var err error
	if len(valid) == 1 {
		err = o.singleClip(req.JobID, valid[0], req.Sources, outputPath)
	} else {
		err = o.multiClip(req.JobID, valid, req.Sources, tempDir, outputPath)
	}
	if err != nil {
		return "", err
	}

	o.registry.Update(req.JobID, o.config.Windows.ConcatEnd, "Finalizing output")
	return outputName, nil
}

// singleClip encodes the lone clip straight to the final output path.
func (o *Orchestrator) singleClip(jobID string, clip clips.Clip, sources []clips.SourceFile, outputPath string) error {
	src := sources[clip.SourceIndex]
	inv := transcode.ClipInvocation(src.Path, clip.Start, clip.Duration, outputPath)

	win := o.config.Windows
	if err := o.runUnit(jobID, inv, win.SingleStart, win.SingleEnd, "Processing clip 1 of 1"); err != nil {
		return err
	}
	metrics.JobClipsProcessed.Inc()
	return nil
}

// multiClip encodes each clip to a normalized temp file, then stream
// copies them together through the concat demuxer.
func (o *Orchestrator) multiClip(jobID string, valid []clips.Clip, sources []clips.SourceFile, tempDir, outputPath string) error {
	win := o.config.Windows
	span := (win.MultiEnd - win.MultiStart) / float64(len(valid))

	tempFiles := make([]string, 0, len(valid))
	var totalDuration float64
	for i, clip := range valid {
		if o.cancelled(jobID) {
			return jobCancelled
		}

		stage := fmt.Sprintf("Processing clip %d of %d", i+1, len(valid))
		tempPath := filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i))
		src := sources[clip.SourceIndex]

		lo := win.MultiStart + span*float64(i)
		inv := transcode.ClipInvocation(src.Path, clip.Start, clip.Duration, tempPath)
		if err := o.runUnit(jobID, inv, lo, lo+span, stage); err != nil {
			return err
		}

		tempFiles = append(tempFiles, tempPath)
		totalDuration += clip.Duration
		metrics.JobClipsProcessed.Inc()
	}

	if o.cancelled(jobID) {
		return jobCancelled
	}

	manifest := filepath.Join(tempDir, "manifest.txt")
	if err := transcode.WriteManifest(manifest, tempFiles); err != nil {
		return err
	}

	inv := transcode.ConcatInvocation(manifest, outputPath, totalDuration)
	return o.runUnit(jobID, inv, win.ConcatStart, win.ConcatEnd, "Compiling timeline")
}

// runUnit drives one subprocess invocation, mapping its per-unit
// progress into the [lo, hi] window and killing it the moment the
// job's cancel channel closes.
func (o *Orchestrator) runUnit(jobID string, inv transcode.Invocation, lo, hi float64, stage string) error {
	o.registry.Update(jobID, lo, stage)

	h, err := o.driver.Start(o.ctx, inv)
	if err != nil {
		return err
	}
	o.setHandle(jobID, h)
	defer o.clearHandle(jobID)

	cancel := o.registry.CancelChan(jobID)
	progress := h.Progress()
	for progress != nil {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			o.registry.Update(jobID, lo+(hi-lo)*p/100, stage)
		case <-cancel:
			h.Kill()
			cancel = nil // keep draining progress until the stream closes
		}
	}

	if err := h.Wait(); err != nil {
		if errors.Is(err, transcode.ErrKilled) {
			return jobCancelled
		}
		return err
	}

	o.registry.Update(jobID, hi, stage)
	return nil
}

func (o *Orchestrator) cancelled(jobID string) bool {
	if o.ctx.Err() != nil {
		return true
	}
	return o.registry.Cancelled(jobID)
}

func (o *Orchestrator) setHandle(jobID string, h transcode.Handle) {
	o.mu.Lock()
	o.handles[jobID] = h
	o.mu.Unlock()
}

func (o *Orchestrator) clearHandle(jobID string) {
	o.mu.Lock()
	delete(o.handles, jobID)
	o.mu.Unlock()
}

// userMessage turns an internal error into the stage-label detail a
// poller sees.
func userMessage(err error) string {
	if errors.Is(err, transcode.ErrTimeout) {
		return "processing timed out"
	}
	return err.Error()
}
