package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_compiler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Compilation job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_jobs_total",
			Help: "Total number of compilation jobs by terminal state",
		},
		[]string{"result"}, // "complete", "error", "cancelled"
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_jobs_active",
			Help: "Number of compilation jobs currently running",
		},
	)

	JobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_jobs_queued",
			Help: "Number of compilation jobs waiting for a worker slot",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_compiler_job_duration_seconds",
			Help:    "Total compilation job duration in seconds by terminal state",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)

	JobClipsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clip_compiler_job_clips_processed_total",
			Help: "Total number of individual clips trimmed and encoded",
		},
	)

	JobClipsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clip_compiler_job_clips_dropped_total",
			Help: "Total number of clips dropped during validation",
		},
	)
)

// Transcoder subprocess metrics
var (
	TranscodeInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_transcode_invocations_total",
			Help: "Total number of transcoder subprocess invocations",
		},
		[]string{"kind", "status"}, // kind: "clip", "concat", "probe"; status: "success", "error", "timeout", "killed"
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_compiler_transcode_duration_seconds",
			Help:    "Transcoder subprocess duration in seconds by kind",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	TranscodeInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_transcode_in_progress",
			Help: "Number of transcoder subprocesses currently running",
		},
	)
)

// Upload metrics
var (
	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_upload_bytes_total",
			Help: "Total bytes accepted by the upload assembler",
		},
		[]string{"path"}, // "chunked" or "whole"
	)

	UploadChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_upload_chunks_total",
			Help: "Total chunks received by result",
		},
		[]string{"result"}, // "accepted", "duplicate", "rejected"
	)

	UploadSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_upload_sessions_active",
			Help: "Number of open chunk upload sessions",
		},
	)

	UploadRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_upload_rejected_total",
			Help: "Total uploads rejected before persistence",
		},
		[]string{"reason"}, // "oversize", "incomplete", "expired"
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_compiler_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Filesystem cleanup metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_filesystem_retry_attempts_total",
			Help: "Total filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_filesystem_retry_failures_total",
			Help: "Total filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	CleanupFilesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_compiler_cleanup_files_removed_total",
			Help: "Total files removed by cleanup by category",
		},
		[]string{"category"}, // "temp", "upload", "output", "session"
	)
)

// Runtime and build info
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unset)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_compiler_go_mem_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clip_compiler_app_info",
			Help: "Build information (value is always 1)",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitializeMetrics pre-populates the label combinations that matter for
// dashboards so every series is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, result := range []string{"complete", "error", "cancelled"} {
		JobsTotal.WithLabelValues(result)
		JobDuration.WithLabelValues(result)
	}

	for _, kind := range []string{"clip", "concat", "probe"} {
		TranscodeDuration.WithLabelValues(kind)
		for _, status := range []string{"success", "error", "timeout", "killed"} {
			TranscodeInvocationsTotal.WithLabelValues(kind, status)
		}
	}

	for _, path := range []string{"chunked", "whole"} {
		UploadBytesTotal.WithLabelValues(path)
	}
	for _, result := range []string{"accepted", "duplicate", "rejected"} {
		UploadChunksTotal.WithLabelValues(result)
	}
	for _, reason := range []string{"oversize", "incomplete", "expired"} {
		UploadRejectedTotal.WithLabelValues(reason)
	}

	for _, op := range []string{"insert_job", "list_jobs", "insert_upload", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"remove", "stat"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}

	for _, cat := range []string{"temp", "upload", "output", "session"} {
		CleanupFilesRemoved.WithLabelValues(cat)
	}
}
