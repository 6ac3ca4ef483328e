package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"clip-compiler/internal/clips"
	"clip-compiler/internal/logging"
	"clip-compiler/internal/orchestrator"
	"clip-compiler/internal/upload"
)

// multipart bodies spill to disk beyond this in-memory threshold
const multipartMemory = 64 << 20

type submitResponse struct {
	JobID string `json:"jobId"`
}

type progressResponse struct {
	Percent     float64 `json:"percent"`
	Stage       string  `json:"stage"`
	DownloadURL string  `json:"downloadUrl,omitempty"`
	OutputFile  string  `json:"outputFile,omitempty"`
}

// SubmitJob accepts source files (inline multipart and/or previously
// chunk-uploaded file ids) plus the clip list, and starts a
// compilation job. The response carries only the job id; processing
// continues in the background.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSONError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	clipsData := r.FormValue("clipsData")
	if clipsData == "" {
		writeJSONError(w, "missing clipsData", http.StatusBadRequest)
		return
	}
	var clipList []clips.Clip
	if err := json.Unmarshal([]byte(clipsData), &clipList); err != nil {
		writeJSONError(w, "invalid clipsData", http.StatusBadRequest)
		return
	}
	if len(clipList) == 0 {
		writeJSONError(w, "clipsData is empty", http.StatusBadRequest)
		return
	}

	// Pre-uploaded files come first in the source ordering, inline
	// multipart files after, so sourceIndex is stable for the client.
	var sources []clips.SourceFile

	if fileIDs := r.FormValue("fileIds"); fileIDs != "" {
		var ids []string
		if err := json.Unmarshal([]byte(fileIDs), &ids); err != nil {
			writeJSONError(w, "invalid fileIds", http.StatusBadRequest)
			return
		}
		for _, id := range ids {
			file, err := h.assembler.Claim(id)
			if err != nil {
				h.discardSources(sources)
				writeJSONError(w, "unknown file id: "+id, http.StatusBadRequest)
				return
			}
			sources = append(sources, clips.SourceFile{
				Path:         file.Path,
				OriginalName: file.OriginalName,
				Size:         file.Size,
			})
		}
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			part, err := header.Open()
			if err != nil {
				h.discardSources(sources)
				writeJSONError(w, "failed to read uploaded file", http.StatusBadRequest)
				return
			}
			file, err := h.assembler.AcceptWhole(header.Filename, part, header.Size)
			part.Close()
			if err != nil {
				h.discardSources(sources)
				if errors.Is(err, upload.ErrTooLarge) {
					writeJSONError(w, "file exceeds maximum upload size", http.StatusRequestEntityTooLarge)
					return
				}
				logging.Error("Failed to store upload %s: %v", header.Filename, err)
				writeJSONError(w, "failed to store uploaded file", http.StatusInternalServerError)
				return
			}
			h.auditUpload(file, "whole")

			// The job owns the file from here on
			if _, err := h.assembler.Claim(file.ID); err != nil {
				logging.Warn("Failed to claim fresh upload %s: %v", file.ID, err)
			}
			sources = append(sources, clips.SourceFile{
				Path:         file.Path,
				OriginalName: file.OriginalName,
				Size:         file.Size,
			})
		}
	}

	if len(sources) == 0 {
		writeJSONError(w, "no source files provided", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	h.orchestrator.Submit(orchestrator.Request{
		JobID:   jobID,
		Clips:   clipList,
		Sources: sources,
	})

	logging.Info("Job %s accepted: %d clips, %d sources", jobID, len(clipList), len(sources))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, submitResponse{JobID: jobID})
}

// GetProgress returns the job's current percent and stage. Unknown ids
// get a default initializing shape so pollers that start before the
// registry entry exists see progress, not an error.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	state, ok := h.registry.Get(jobID)
	if !ok {
		writeJSON(w, progressResponse{Percent: 0, Stage: "Initializing..."})
		return
	}

	response := progressResponse{
		Percent: state.Percent,
		Stage:   state.Stage,
	}
	if state.OutputName != "" {
		response.OutputFile = state.OutputName
		response.DownloadURL = "/download/" + state.OutputName
	}
	writeJSON(w, response)
}

// CancelJob requests cancellation. Deliberately idempotent: cancelling
// an unknown or already-finished job still reports success.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	h.registry.MarkCancelled(jobID)
	writeJSONStatus(w, "cancelled")
}

// discardSources deletes files a failed submission already took
// ownership of.
func (h *Handlers) discardSources(sources []clips.SourceFile) {
	for _, src := range sources {
		if err := h.assembler.Discard(src.Path); err != nil {
			logging.Warn("Failed to discard source %s: %v", src.Path, err)
		}
	}
}

func (h *Handlers) auditUpload(file upload.UploadedFile, method string) {
	if h.db == nil {
		return
	}
	if err := h.db.RecordUpload(file.ID, file.OriginalName, file.Size, method); err != nil {
		logging.Warn("Failed to audit upload %s: %v", file.ID, err)
	}
}
