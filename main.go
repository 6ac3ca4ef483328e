package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clip-compiler/internal/database"
	"clip-compiler/internal/handlers"
	"clip-compiler/internal/logging"
	"clip-compiler/internal/memory"
	"clip-compiler/internal/metrics"
	"clip-compiler/internal/middleware"
	"clip-compiler/internal/orchestrator"
	"clip-compiler/internal/registry"
	"clip-compiler/internal/startup"
	"clip-compiler/internal/sweeper"
	"clip-compiler/internal/transcode"
	"clip-compiler/internal/upload"
	"clip-compiler/internal/workers"
)

// sessionStats feeds the metrics collector the gauge the upload
// assembler owns.
type sessionStats struct {
	assembler *upload.Assembler
}

func (s *sessionStats) GetStats() metrics.Stats {
	return metrics.Stats{OpenSessions: s.assembler.OpenSessions()}
}

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Job registry with sqlite history behind it
	reg := registry.New(config.JobRetention, db)

	// Transcode driver
	startup.LogTranscoderInit()
	driver := transcode.NewFFmpeg()

	// Cross-job concurrency budget
	maxJobs := config.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = workers.ForTranscode()
	}
	startup.LogWorkerBudget(maxJobs)

	orch := orchestrator.New(reg, driver, orchestrator.Config{
		WorkDir:       config.WorkDir,
		OutputDir:     config.OutputDir,
		MaxConcurrent: maxJobs,
	})

	// Upload assembler
	assembler, err := upload.New(config.UploadDir, config.StagingDir, upload.Config{
		MaxChunkedSize: config.MaxChunkedSize,
		MaxWholeSize:   config.MaxUploadSize,
		SessionTTL:     config.ChunkSessionTTL,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize upload assembler: %v", err)
	}

	// Background cleanup
	swp := sweeper.New(assembler, config.OutputDir, config.OutputMaxAge, config.SweepInterval)
	swp.Start()

	// Initialize handlers and router
	h := handlers.New(reg, assembler, orch, db, config)
	router := handlers.NewRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)

	// Apply compression middleware
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Metrics collector and server
	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		collector = metrics.NewCollector(&sessionStats{assembler: assembler}, time.Minute)
		collector.Start()
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: handler,
		// Uploads can be large and slow; downloads are guarded by the
		// stream timeout writer instead of a server-wide deadline.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, orch, swp, collector)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, orch *orchestrator.Orchestrator, swp *sweeper.Sweeper, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping background sweeper")
	swp.Stop()
	startup.LogShutdownStepComplete("Sweeper stopped")

	startup.LogShutdownStep("Stopping active jobs")
	if err := orch.Shutdown(ctx); err != nil {
		logging.Warn("Orchestrator shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Jobs stopped")
	}

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}
	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
