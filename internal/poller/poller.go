package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultInterval is the poll period.
	DefaultInterval = 1500 * time.Millisecond

	// DefaultTrackTimeout bounds tracking regardless of server behavior.
	DefaultTrackTimeout = 10 * time.Minute

	// Consecutive poll failures before switching to a reconnecting
	// display state. The last known percent is preserved.
	maxConsecutiveFailures = 3
)

// ErrTrackTimeout is returned when a job never reaches a terminal state
// within the tracking timeout.
var ErrTrackTimeout = errors.New("tracking timed out before the job finished")

// Client talks to a compilation server.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Interval     time.Duration
	TrackTimeout time.Duration
	Ranges       StageRanges
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Interval:     DefaultInterval,
		TrackTimeout: DefaultTrackTimeout,
		Ranges:       DefaultStageRanges(),
	}
}

type progressPayload struct {
	Percent     float64 `json:"percent"`
	Stage       string  `json:"stage"`
	DownloadURL string  `json:"downloadUrl"`
	OutputFile  string  `json:"outputFile"`
}

// Update is one observation delivered to the Track callback.
type Update struct {
	Percent      float64 // displayed percent, monotonic
	RawPercent   float64 // percent as reported by the server
	Stage        string
	Phase        Phase
	Reconnecting bool
	Terminal     bool
	DownloadURL  string
	OutputFile   string
}

// Track polls the job until it reaches a terminal state, the tracking
// timeout expires, or ctx is cancelled. onUpdate may be nil. The
// returned Update is the last one observed; a failed job additionally
// returns an error carrying the server's stage message.
func (c *Client) Track(ctx context.Context, jobID string, onUpdate func(Update)) (Update, error) {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := c.TrackTimeout
	if timeout <= 0 {
		timeout = DefaultTrackTimeout
	}
	ranges := c.Ranges
	if ranges == nil {
		ranges = DefaultStageRanges()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emit := func(u Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	var last Update
	failures := 0
	for {
		payload, err := c.fetchProgress(ctx, jobID)
		if err != nil {
			failures++
			if failures >= maxConsecutiveFailures {
				last.Reconnecting = true
				last.Stage = "Reconnecting..."
				emit(last)
			}
		} else {
			failures = 0
			last = c.toUpdate(payload, last, ranges)
			emit(last)
			if last.Terminal {
				if strings.HasPrefix(payload.Stage, "Error:") {
					return last, fmt.Errorf("job %s failed: %s", jobID, payload.Stage)
				}
				return last, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, ErrTrackTimeout
		case <-ticker.C:
		}
	}
}

func (c *Client) toUpdate(payload progressPayload, last Update, ranges StageRanges) Update {
	phase := classifyStage(payload.Stage)
	update := Update{
		RawPercent:  payload.Percent,
		Stage:       payload.Stage,
		Phase:       phase,
		DownloadURL: payload.DownloadURL,
		OutputFile:  payload.OutputFile,
	}

	update.Percent = ranges[phase].rescale(payload.Percent)
	if update.Percent < last.Percent {
		update.Percent = last.Percent
	}

	switch {
	case payload.DownloadURL != "":
		update.Terminal = true
		update.Percent = 100
	case strings.HasPrefix(payload.Stage, "Error:"):
		update.Terminal = true
	case payload.Stage == "Cancelled":
		update.Terminal = true
	}
	return update
}

func (c *Client) fetchProgress(ctx context.Context, jobID string) (progressPayload, error) {
	var payload progressPayload

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/progress/"+jobID, nil)
	if err != nil {
		return payload, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return payload, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return payload, fmt.Errorf("progress request returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return payload, fmt.Errorf("decoding progress response: %w", err)
	}
	return payload, nil
}

// Cancel requests job cancellation. The server treats cancellation as
// idempotent, so any 2xx answer counts as success.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/cancel/"+jobID, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cancel request returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
