package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
)

// FFmpeg is the production Driver backed by the ffmpeg and ffprobe
// binaries.
type FFmpeg struct {
	Binary      string
	ProbeBinary string
	KillGrace   time.Duration
}

// NewFFmpeg creates a driver using the ffmpeg/ffprobe binaries on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		Binary:      "ffmpeg",
		ProbeBinary: "ffprobe",
		KillGrace:   DefaultKillGrace,
	}
}

// Probe returns the duration in seconds of a media file.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	started := time.Now()
	cmd := exec.CommandContext(ctx, f.ProbeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.TranscodeDuration.WithLabelValues("probe").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.TranscodeInvocationsTotal.WithLabelValues("probe", "error").Inc()
		return 0, fmt.Errorf("ffprobe failed for %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		metrics.TranscodeInvocationsTotal.WithLabelValues("probe", "error").Inc()
		return 0, fmt.Errorf("ffprobe returned no duration for %s: %w", path, err)
	}

	metrics.TranscodeInvocationsTotal.WithLabelValues("probe", "success").Inc()
	return duration, nil
}

// Start launches one invocation and returns its Handle. The context
// cancels the subprocess; cancellation through the context reports
// ErrKilled from Wait, the same as an explicit Kill.
func (f *FFmpeg) Start(ctx context.Context, inv Invocation) (Handle, error) {
	if inv.Timeout <= 0 {
		inv.Timeout = DefaultClipTimeout
	}
	grace := f.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	cmd := exec.Command(f.Binary, inv.Args...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", f.Binary, err)
	}

	h := &ffmpegHandle{
		cmd:      cmd,
		kind:     inv.Kind,
		duration: inv.Duration,
		timeout:  inv.Timeout,
		grace:    grace,
		stderr:   stderr,
		progress: make(chan float64, 16),
		killed:   make(chan struct{}),
		exited:   make(chan struct{}),
		started:  time.Now(),
	}

	metrics.TranscodeInProgress.Inc()

	h.watchdog = time.AfterFunc(inv.Timeout, func() {
		h.timedOut.Store(true)
		logging.Warn("Transcode %s invocation exceeded %s, killing pid %d", h.kind, h.timeout, cmd.Process.Pid)
		h.Kill()
	})

	go func() {
		select {
		case <-ctx.Done():
			h.Kill()
		case <-h.exited:
		}
	}()

	go h.run(stdout)

	return h, nil
}

type ffmpegHandle struct {
	cmd      *exec.Cmd
	kind     string
	duration float64
	timeout  time.Duration
	grace    time.Duration
	stderr   *tailBuffer
	progress chan float64
	watchdog *time.Timer
	started  time.Time

	killOnce sync.Once
	killed   chan struct{}
	wasKill  atomic.Bool
	timedOut atomic.Bool

	cmdErr error
	exited chan struct{}

	waitOnce sync.Once
	waitErr  error
}

func (h *ffmpegHandle) Progress() <-chan float64 {
	return h.progress
}

// run consumes the progress stream until the subprocess closes its
// stdout, then reaps it. Single goroutine: the pipe must be fully
// drained before Wait.
func (h *ffmpegHandle) run(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := parseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		if key == "progress" && value == "end" {
			h.emit(100)
			continue
		}
		if sec, ok := progressSeconds(key, value); ok {
			h.emit(unitPercent(sec, h.duration))
		}
	}
	close(h.progress)

	h.cmdErr = h.cmd.Wait()
	h.watchdog.Stop()
	close(h.exited)
}

// emit sends a progress sample without ever blocking the reader; a
// slow consumer just misses intermediate samples.
func (h *ffmpegHandle) emit(percent float64) {
	select {
	case h.progress <- percent:
	default:
	}
}

// Kill force-terminates the subprocess. Idempotent.
func (h *ffmpegHandle) Kill() {
	h.killOnce.Do(func() {
		h.wasKill.Store(true)
		close(h.killed)
		if h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil {
				logging.Warn("Failed to kill %s subprocess: %v", h.kind, err)
			}
		}
	})
}

// Wait blocks until the invocation is terminal. After a Kill it
// returns within the grace period even if the subprocess never exits.
func (h *ffmpegHandle) Wait() error {
	h.waitOnce.Do(func() {
		select {
		case <-h.exited:
		case <-h.killed:
			select {
			case <-h.exited:
			case <-time.After(h.grace):
				logging.Error("Transcode %s subprocess did not exit within %s of kill", h.kind, h.grace)
			}
		}

		metrics.TranscodeInProgress.Dec()
		metrics.TranscodeDuration.WithLabelValues(h.kind).Observe(time.Since(h.started).Seconds())

		status := "success"
		switch {
		case h.timedOut.Load():
			status = "timeout"
			h.waitErr = fmt.Errorf("%w after %s", ErrTimeout, h.timeout)
		case h.wasKill.Load():
			status = "killed"
			h.waitErr = ErrKilled
		case h.cmdErr != nil:
			status = "error"
			h.waitErr = fmt.Errorf("transcoder exited: %w: %s", h.cmdErr, h.stderr.Tail())
		}
		metrics.TranscodeInvocationsTotal.WithLabelValues(h.kind, status).Inc()
	})
	return h.waitErr
}

// tailBuffer keeps the last max bytes written to it. ffmpeg's stderr
// ends with the useful diagnostics, so only the tail matters for error
// messages.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
