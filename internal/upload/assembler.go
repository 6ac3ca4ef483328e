package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clip-compiler/internal/filesystem"
	"clip-compiler/internal/logging"
	"clip-compiler/internal/metrics"
)

// Default size ceilings and session lifetime.
const (
	DefaultMaxChunkedSize = 2 << 30 // 2 GiB
	DefaultMaxWholeSize   = 4 << 30 // 4 GiB
	DefaultSessionTTL     = 30 * time.Minute
)

// Sentinel errors for upload operations.
var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrTooLarge        = errors.New("file exceeds maximum upload size")
	ErrBadChunkIndex   = errors.New("chunk index out of range")
	ErrFileNotFound    = errors.New("uploaded file not found")
)

// IncompleteError reports a finalize attempt with missing chunks.
type IncompleteError struct {
	FileID  string
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("upload session %s incomplete: missing chunks %v", e.FileID, e.Missing)
}

// ChunkResult describes the outcome of accepting one chunk.
type ChunkResult string

const (
	ChunkAccepted  ChunkResult = "accepted"
	ChunkDuplicate ChunkResult = "duplicate"
)

// UploadedFile is a finalized source file ready to be claimed by a job.
type UploadedFile struct {
	ID           string
	Path         string
	OriginalName string
	Size         int64
}

// Config tunes the assembler. Zero values use the defaults above.
type Config struct {
	MaxChunkedSize int64
	MaxWholeSize   int64
	SessionTTL     time.Duration
}

type session struct {
	fileID      string
	fileName    string
	totalChunks int
	dir         string
	received    map[int]int64 // chunk index -> size on disk
	createdAt   time.Time
}

func (s *session) bytesReceived() int64 {
	var total int64
	for _, size := range s.received {
		total += size
	}
	return total
}

// Assembler reassembles uploads into durable source files.
type Assembler struct {
	uploadDir  string
	stagingDir string
	config     Config

	mu       sync.Mutex
	sessions map[string]*session
	files    map[string]UploadedFile // finalized, not yet claimed by a job
}

// New creates an assembler rooted at uploadDir (durable files) and
// stagingDir (in-flight chunk sessions). Both directories are created
// if absent.
func New(uploadDir, stagingDir string, config Config) (*Assembler, error) {
	if config.MaxChunkedSize <= 0 {
		config.MaxChunkedSize = DefaultMaxChunkedSize
	}
	if config.MaxWholeSize <= 0 {
		config.MaxWholeSize = DefaultMaxWholeSize
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}

	for _, dir := range []string{uploadDir, stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
		}
	}

	return &Assembler{
		uploadDir:  uploadDir,
		stagingDir: stagingDir,
		config:     config,
		sessions:   make(map[string]*session),
		files:      make(map[string]UploadedFile),
	}, nil
}

// BeginSession opens a chunk session and returns its file id.
func (a *Assembler) BeginSession(fileName string, totalChunks int) (string, error) {
	if totalChunks < 1 {
		return "", fmt.Errorf("invalid chunk count %d", totalChunks)
	}

	fileID := uuid.NewString()
	dir := filepath.Join(a.stagingDir, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	a.mu.Lock()
	a.sessions[fileID] = &session{
		fileID:      fileID,
		fileName:    sanitizeName(fileName),
		totalChunks: totalChunks,
		dir:         dir,
		received:    make(map[int]int64),
		createdAt:   time.Now(),
	}
	open := len(a.sessions)
	a.mu.Unlock()

	metrics.UploadSessionsActive.Set(float64(open))
	logging.Debug("Chunk session %s opened: %s in %d chunks", fileID, fileName, totalChunks)
	return fileID, nil
}

// AcceptChunk stores one chunk. Duplicate indices are accepted
// idempotently: the new bytes overwrite the old ones and no error is
// returned, so client retries are harmless.
func (a *Assembler) AcceptChunk(fileID string, index int, r io.Reader) (ChunkResult, error) {
	a.mu.Lock()
	s, ok := a.sessions[fileID]
	if !ok {
		a.mu.Unlock()
		return "", ErrSessionNotFound
	}
	if index < 0 || index >= s.totalChunks {
		a.mu.Unlock()
		metrics.UploadChunksTotal.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: %d of %d", ErrBadChunkIndex, index, s.totalChunks)
	}
	prevSize, isDuplicate := s.received[index]
	budget := a.config.MaxChunkedSize - s.bytesReceived() + prevSize
	a.mu.Unlock()

	if budget <= 0 {
		metrics.UploadChunksTotal.WithLabelValues("rejected").Inc()
		return "", ErrTooLarge
	}

	path := chunkPath(s.dir, index)
	written, err := writeLimited(path, r, budget)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			metrics.UploadRejectedTotal.WithLabelValues("oversize").Inc()
			a.abortSession(fileID)
		}
		return "", err
	}

	a.mu.Lock()
	// The session may have been swept while the chunk was streaming in
	if _, ok := a.sessions[fileID]; !ok {
		a.mu.Unlock()
		os.Remove(path)
		return "", ErrSessionNotFound
	}
	s.received[index] = written
	a.mu.Unlock()

	result := ChunkAccepted
	if isDuplicate {
		result = ChunkDuplicate
	}
	metrics.UploadChunksTotal.WithLabelValues(string(result)).Inc()
	metrics.UploadBytesTotal.WithLabelValues("chunked").Add(float64(written))
	return result, nil
}

// Finalize assembles a completed session into a durable upload file.
// Returns an *IncompleteError listing the missing indices if any chunk
// has not arrived.
func (a *Assembler) Finalize(fileID string) (UploadedFile, error) {
	a.mu.Lock()
	s, ok := a.sessions[fileID]
	if !ok {
		a.mu.Unlock()
		return UploadedFile{}, ErrSessionNotFound
	}

	var missing []int
	for i := 0; i < s.totalChunks; i++ {
		if _, ok := s.received[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		a.mu.Unlock()
		metrics.UploadRejectedTotal.WithLabelValues("incomplete").Inc()
		return UploadedFile{}, &IncompleteError{FileID: fileID, Missing: missing}
	}

	// Claim the session so a concurrent finalize cannot assemble twice
	delete(a.sessions, fileID)
	open := len(a.sessions)
	a.mu.Unlock()

	metrics.UploadSessionsActive.Set(float64(open))

	file, err := a.assemble(s)
	if err != nil {
		a.removeSessionDir(s.dir)
		return UploadedFile{}, err
	}

	a.mu.Lock()
	a.files[file.ID] = file
	a.mu.Unlock()

	logging.Info("Upload %s finalized: %s (%d bytes from %d chunks)", fileID, file.OriginalName, file.Size, s.totalChunks)
	return file, nil
}

// assemble concatenates a session's chunks in index order.
func (a *Assembler) assemble(s *session) (UploadedFile, error) {
	indices := make([]int, 0, len(s.received))
	for i := range s.received {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	destPath := filepath.Join(a.uploadDir, s.fileID+"_"+s.fileName)
	dest, err := os.Create(destPath)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	var size int64
	for _, i := range indices {
		chunk, err := os.Open(chunkPath(s.dir, i))
		if err != nil {
			dest.Close()
			os.Remove(destPath)
			return UploadedFile{}, fmt.Errorf("failed to open chunk %d: %w", i, err)
		}
		n, err := io.Copy(dest, chunk)
		chunk.Close()
		if err != nil {
			dest.Close()
			os.Remove(destPath)
			return UploadedFile{}, fmt.Errorf("failed to assemble chunk %d: %w", i, err)
		}
		size += n
	}

	if err := dest.Close(); err != nil {
		os.Remove(destPath)
		return UploadedFile{}, fmt.Errorf("failed to close upload file: %w", err)
	}

	a.removeSessionDir(s.dir)

	return UploadedFile{
		ID:           s.fileID,
		Path:         destPath,
		OriginalName: s.fileName,
		Size:         size,
	}, nil
}

// AcceptWhole stores a single-shot upload. declaredSize, when known
// (Content-Length), rejects oversize files before any bytes are
// persisted; the copy itself is capped either way.
func (a *Assembler) AcceptWhole(fileName string, r io.Reader, declaredSize int64) (UploadedFile, error) {
	if declaredSize > a.config.MaxWholeSize {
		metrics.UploadRejectedTotal.WithLabelValues("oversize").Inc()
		return UploadedFile{}, ErrTooLarge
	}

	fileID := uuid.NewString()
	name := sanitizeName(fileName)
	destPath := filepath.Join(a.uploadDir, fileID+"_"+name)

	written, err := writeLimited(destPath, r, a.config.MaxWholeSize)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			metrics.UploadRejectedTotal.WithLabelValues("oversize").Inc()
		}
		return UploadedFile{}, err
	}

	file := UploadedFile{
		ID:           fileID,
		Path:         destPath,
		OriginalName: name,
		Size:         written,
	}

	a.mu.Lock()
	a.files[fileID] = file
	a.mu.Unlock()

	metrics.UploadBytesTotal.WithLabelValues("whole").Add(float64(written))
	logging.Debug("Whole upload %s accepted: %s (%d bytes)", fileID, name, written)
	return file, nil
}

// Claim hands a finalized file to a job. The file leaves the
// assembler's bookkeeping; deleting it becomes the job's duty.
func (a *Assembler) Claim(fileID string) (UploadedFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, ok := a.files[fileID]
	if !ok {
		return UploadedFile{}, ErrFileNotFound
	}
	delete(a.files, fileID)
	return file, nil
}

// Discard removes a claimed upload file from disk. Used when a job
// submission fails after taking ownership of its sources.
func (a *Assembler) Discard(path string) error {
	return filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig())
}

// Sweep removes sessions older than the TTL and unclaimed files left
// behind by clients that never submitted a job. Returns the number of
// sessions removed.
func (a *Assembler) Sweep() int {
	cutoff := time.Now().Add(-a.config.SessionTTL)

	a.mu.Lock()
	var expired []*session
	for id, s := range a.sessions {
		if s.createdAt.Before(cutoff) {
			expired = append(expired, s)
			delete(a.sessions, id)
		}
	}
	open := len(a.sessions)
	a.mu.Unlock()

	metrics.UploadSessionsActive.Set(float64(open))

	for _, s := range expired {
		logging.Info("Sweeping abandoned chunk session %s (%s)", s.fileID, s.fileName)
		a.removeSessionDir(s.dir)
		metrics.UploadRejectedTotal.WithLabelValues("expired").Inc()
		metrics.CleanupFilesRemoved.WithLabelValues("session").Inc()
	}

	return len(expired)
}

// OpenSessions returns the number of in-flight chunk sessions.
func (a *Assembler) OpenSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// abortSession discards a session whose transfer violated a limit.
func (a *Assembler) abortSession(fileID string) {
	a.mu.Lock()
	s, ok := a.sessions[fileID]
	if ok {
		delete(a.sessions, fileID)
	}
	open := len(a.sessions)
	a.mu.Unlock()

	metrics.UploadSessionsActive.Set(float64(open))
	if ok {
		a.removeSessionDir(s.dir)
	}
}

func (a *Assembler) removeSessionDir(dir string) {
	if err := filesystem.RemoveAllWithRetry(dir, filesystem.DefaultRetryConfig()); err != nil {
		logging.Warn("Failed to remove session directory %s: %v", dir, err)
	}
}

func chunkPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%06d", index))
}

// writeLimited copies r to a new file at path, failing with ErrTooLarge
// once more than limit bytes arrive. The partial file is removed on
// any failure.
func writeLimited(path string, r io.Reader, limit int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if written > limit {
		f.Close()
		os.Remove(path)
		return 0, ErrTooLarge
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to close upload file: %w", err)
	}
	return written, nil
}

// sanitizeName strips any path components from a client-supplied name.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	return name
}
