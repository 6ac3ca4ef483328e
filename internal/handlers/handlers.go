package handlers

import (
	"time"

	"github.com/gorilla/mux"

	"clip-compiler/internal/database"
	"clip-compiler/internal/orchestrator"
	"clip-compiler/internal/registry"
	"clip-compiler/internal/startup"
	"clip-compiler/internal/streaming"
	"clip-compiler/internal/upload"
)

type Handlers struct {
	registry     *registry.Registry
	assembler    *upload.Assembler
	orchestrator *orchestrator.Orchestrator
	db           *database.Database
	outputDir    string
	startedAt    time.Time

	streamConfig streaming.TimeoutWriterConfig
}

func New(reg *registry.Registry, assembler *upload.Assembler, orch *orchestrator.Orchestrator, db *database.Database, config *startup.Config) *Handlers {
	streamConfig := streaming.DefaultTimeoutWriterConfig()

	return &Handlers{
		registry:     reg,
		assembler:    assembler,
		orchestrator: orch,
		db:           db,
		outputDir:    config.OutputDir,
		startedAt:    time.Now(),
		streamConfig: streamConfig,
	}
}

// NewRouter builds the service's route table.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/upload", h.SubmitJob).Methods("POST")
	r.HandleFunc("/upload/chunk/init", h.InitChunkSession).Methods("POST")
	r.HandleFunc("/upload/chunk/{fileId}/{index:[0-9]+}", h.UploadChunk).Methods("PUT")
	r.HandleFunc("/upload/chunk/complete/{fileId}", h.CompleteChunkSession).Methods("POST")

	r.HandleFunc("/progress/{jobId}", h.GetProgress).Methods("GET")
	r.HandleFunc("/cancel/{jobId}", h.CancelJob).Methods("POST")
	r.HandleFunc("/download/{filename}", h.Download).Methods("GET")

	r.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}
