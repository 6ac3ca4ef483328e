package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Unit kinds, used for metrics labels and timeout selection.
const (
	KindClip   = "clip"
	KindConcat = "concat"
)

// Watchdog and kill-grace defaults.
const (
	DefaultClipTimeout   = 3 * time.Minute
	DefaultConcatTimeout = 5 * time.Minute
	DefaultKillGrace     = 5 * time.Second
)

// Output normalization targets. Every clip in a job is encoded with
// these so the concatenation step can stream-copy instead of
// re-encoding.
const (
	TargetWidth     = 1280
	TargetHeight    = 720
	TargetFrameRate = 30
	TargetPixFmt    = "yuv420p"
)

// Sentinel errors for terminal invocation outcomes.
var (
	ErrKilled  = errors.New("transcode cancelled")
	ErrTimeout = errors.New("transcode timed out")
)

// Invocation describes one subprocess run.
type Invocation struct {
	Kind     string
	Args     []string
	Duration float64 // expected output duration in seconds, 0 if unknown
	Timeout  time.Duration
}

// Handle is one running invocation. Progress yields per-unit
// percentages (0-100) and is closed when the subprocess's output ends.
// Wait blocks until the invocation reaches its terminal state and
// returns nil on success. Kill force-terminates the subprocess; Wait
// is then guaranteed to return within the kill grace period.
type Handle interface {
	Progress() <-chan float64
	Wait() error
	Kill()
}

// Driver starts transcode invocations and probes source durations.
type Driver interface {
	Start(ctx context.Context, inv Invocation) (Handle, error)
	Probe(ctx context.Context, path string) (float64, error)
}

// ClipInvocation builds the invocation that trims one clip out of a
// source file and encodes it to dest with the fixed normalization
// flag set.
func ClipInvocation(source string, start, duration float64, dest string) Invocation {
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		TargetWidth, TargetHeight, TargetWidth, TargetHeight)

	return Invocation{
		Kind: KindClip,
		Args: []string{
			"-ss", formatSeconds(start),
			"-i", source,
			"-t", formatSeconds(duration),
			"-vf", scale,
			"-r", strconv.Itoa(TargetFrameRate),
			"-pix_fmt", TargetPixFmt,
			"-c:v", "libx264",
			"-preset", "fast",
			"-crf", "23",
			"-c:a", "aac",
			"-b:a", "128k",
			"-ar", "44100",
			"-ac", "2",
			"-progress", "pipe:1",
			"-nostats",
			"-y", dest,
		},
		Duration: duration,
		Timeout:  DefaultClipTimeout,
	}
}

// ConcatInvocation builds the invocation that joins already-normalized
// clips listed in a concat manifest into dest via stream copy.
func ConcatInvocation(manifest, dest string, totalDuration float64) Invocation {
	return Invocation{
		Kind: KindConcat,
		Args: []string{
			"-f", "concat",
			"-safe", "0",
			"-i", manifest,
			"-c", "copy",
			"-movflags", "+faststart",
			"-progress", "pipe:1",
			"-nostats",
			"-y", dest,
		},
		Duration: totalDuration,
		Timeout:  DefaultConcatTimeout,
	}
}

// WriteManifest writes a concat-demuxer manifest listing files in
// order. Paths are made absolute and single quotes are escaped the way
// the demuxer expects.
func WriteManifest(path string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve manifest entry %s: %w", f, err)
		}
		b.WriteString("file '")
		b.WriteString(escapeManifestPath(abs))
		b.WriteString("'\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat manifest: %w", err)
	}
	return nil
}

func escapeManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
