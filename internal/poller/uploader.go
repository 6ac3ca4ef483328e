package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"clip-compiler/internal/clips"
)

const (
	// DefaultChunkSize splits uploads into 8 MiB chunks.
	DefaultChunkSize = 8 << 20

	chunkAttempts    = 3
	chunkRetryDelay  = 500 * time.Millisecond
	finalizeAttempts = 3
)

// uploadState drives the chunked-upload state machine. The fallback
// transition fires when any chunk exhausts its retries or finalize
// keeps reporting missing chunks; the file is then attached inline to
// the job submission instead.
type uploadState int

const (
	stateInit uploadState = iota
	stateSending
	stateFinalizing
	stateDone
	stateFallback
)

// UploadedSource is one source file ready for job submission: either a
// server-side file id from a finished chunked upload, or a local path
// to attach inline as the whole-file fallback.
type UploadedSource struct {
	FileID string
	Inline string
	Name   string
	Size   int64
}

// UploadFile pushes one file to the server in chunks. A chunk is
// retried a fixed number of times before the whole upload falls back to
// inline attachment; fallback is not an error.
func (c *Client) UploadFile(ctx context.Context, path string) (UploadedSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return UploadedSource{}, err
	}
	name := filepath.Base(path)
	source := UploadedSource{Name: name, Size: info.Size()}

	totalChunks := int((info.Size() + DefaultChunkSize - 1) / DefaultChunkSize)
	if totalChunks < 1 {
		totalChunks = 1
	}

	var (
		fileID    string
		pending   []int
		finalized int
	)
	state := stateInit
	for {
		switch state {
		case stateInit:
			fileID, err = c.initSession(ctx, name, totalChunks)
			if err != nil {
				state = stateFallback
				break
			}
			pending = make([]int, totalChunks)
			for i := range pending {
				pending[i] = i
			}
			state = stateSending

		case stateSending:
			state = stateFinalizing
			for _, index := range pending {
				if err := c.sendChunkWithRetry(ctx, path, fileID, index, info.Size()); err != nil {
					if ctx.Err() != nil {
						return UploadedSource{}, ctx.Err()
					}
					state = stateFallback
					break
				}
			}

		case stateFinalizing:
			finalized++
			missing, err := c.finalizeSession(ctx, fileID, &source)
			switch {
			case err == nil:
				state = stateDone
			case len(missing) > 0 && finalized < finalizeAttempts:
				pending = missing
				state = stateSending
			default:
				if ctx.Err() != nil {
					return UploadedSource{}, ctx.Err()
				}
				state = stateFallback
			}

		case stateDone:
			return source, nil

		case stateFallback:
			return UploadedSource{Inline: path, Name: name, Size: info.Size()}, nil
		}
	}
}

func (c *Client) initSession(ctx context.Context, name string, totalChunks int) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"fileName":    name,
		"totalChunks": totalChunks,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload/chunk/init", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chunk init returned %d", resp.StatusCode)
	}

	var result struct {
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.FileID, nil
}

func (c *Client) sendChunkWithRetry(ctx context.Context, path, fileID string, index int, totalSize int64) error {
	var lastErr error
	for attempt := 1; attempt <= chunkAttempts; attempt++ {
		lastErr = c.sendChunk(ctx, path, fileID, index, totalSize)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < chunkAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkRetryDelay):
			}
		}
	}
	return fmt.Errorf("chunk %d failed after %d attempts: %w", index, chunkAttempts, lastErr)
}

func (c *Client) sendChunk(ctx context.Context, path, fileID string, index int, totalSize int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	offset := int64(index) * DefaultChunkSize
	length := int64(DefaultChunkSize)
	if offset+length > totalSize {
		length = totalSize - offset
	}

	url := fmt.Sprintf("%s/upload/chunk/%s/%d", c.BaseURL, fileID, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, io.NewSectionReader(file, offset, length))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = length

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chunk %d returned %d", index, resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// finalizeSession completes the session. A conflict response returns
// the missing chunk indices so the caller can resend just those.
func (c *Client) finalizeSession(ctx context.Context, fileID string, source *UploadedSource) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload/chunk/complete/"+fileID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var conflict struct {
			Missing []int `json:"missing"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err != nil {
			return nil, err
		}
		return conflict.Missing, fmt.Errorf("upload incomplete: %d chunks missing", len(conflict.Missing))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chunk complete returned %d", resp.StatusCode)
	}

	var result struct {
		FileID string `json:"fileId"`
		Size   int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	source.FileID = result.FileID
	source.Size = result.Size
	return nil, nil
}

// Submit starts a compilation job from the given sources and clip list.
// The server orders sources as pre-uploaded file ids first and inline
// files after, so clip source indices are remapped to that order here.
func (c *Client) Submit(ctx context.Context, sources []UploadedSource, clipList []clips.Clip) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("no source files to submit")
	}

	var fileIDs []string
	var inline []UploadedSource
	remap := make([]int, len(sources))
	for i, src := range sources {
		if src.FileID != "" {
			remap[i] = len(fileIDs)
			fileIDs = append(fileIDs, src.FileID)
		}
	}
	for i, src := range sources {
		if src.FileID == "" {
			remap[i] = len(fileIDs) + len(inline)
			inline = append(inline, src)
		}
	}

	remapped := make([]clips.Clip, len(clipList))
	for i, clip := range clipList {
		if clip.SourceIndex < 0 || clip.SourceIndex >= len(sources) {
			return "", fmt.Errorf("clip %d references source %d of %d", i, clip.SourceIndex, len(sources))
		}
		clip.SourceIndex = remap[clip.SourceIndex]
		remapped[i] = clip
	}
	clipsData, err := json.Marshal(remapped)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("clipsData", string(clipsData)); err != nil {
		return "", err
	}
	if len(fileIDs) > 0 {
		ids, err := json.Marshal(fileIDs)
		if err != nil {
			return "", err
		}
		if err := writer.WriteField("fileIds", string(ids)); err != nil {
			return "", err
		}
	}
	for _, src := range inline {
		if err := attachFile(writer, src.Inline, src.Name); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("job submission returned %d: %s", resp.StatusCode, bytes.TrimSpace(message))
	}

	var result struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.JobID == "" {
		return "", fmt.Errorf("job submission returned no job id")
	}
	return result.JobID, nil
}

func attachFile(writer *multipart.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	part, err := writer.CreateFormFile("files", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
