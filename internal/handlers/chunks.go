package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"clip-compiler/internal/logging"
	"clip-compiler/internal/upload"
)

type chunkInitRequest struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
}

type chunkInitResponse struct {
	FileID string `json:"fileId"`
}

type chunkCompleteResponse struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// InitChunkSession opens a chunked upload session.
func (h *Handlers) InitChunkSession(w http.ResponseWriter, r *http.Request) {
	var req chunkInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" || req.TotalChunks < 1 {
		writeJSONError(w, "fileName and totalChunks are required", http.StatusBadRequest)
		return
	}

	fileID, err := h.assembler.BeginSession(req.FileName, req.TotalChunks)
	if err != nil {
		logging.Error("Failed to begin chunk session: %v", err)
		writeJSONError(w, "failed to begin upload session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, chunkInitResponse{FileID: fileID})
}

// UploadChunk stores one chunk of an open session. Duplicate indices
// succeed so client retries are harmless.
func (h *Handlers) UploadChunk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileID := vars["fileId"]
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeJSONError(w, "invalid chunk index", http.StatusBadRequest)
		return
	}

	result, err := h.assembler.AcceptChunk(fileID, index, r.Body)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrSessionNotFound):
			writeJSONError(w, "unknown upload session", http.StatusNotFound)
		case errors.Is(err, upload.ErrBadChunkIndex):
			writeJSONError(w, "chunk index out of range", http.StatusBadRequest)
		case errors.Is(err, upload.ErrTooLarge):
			writeJSONError(w, "upload exceeds maximum size", http.StatusRequestEntityTooLarge)
		default:
			logging.Error("Failed to accept chunk %d of %s: %v", index, fileID, err)
			writeJSONError(w, "failed to store chunk", http.StatusInternalServerError)
		}
		return
	}

	writeJSONStatus(w, string(result))
}

// CompleteChunkSession finalizes a session into a durable upload file.
// Missing chunks produce a 409 listing the missing indices so the
// client can resend just those.
func (h *Handlers) CompleteChunkSession(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	file, err := h.assembler.Finalize(fileID)
	if err != nil {
		var incomplete *upload.IncompleteError
		switch {
		case errors.As(err, &incomplete):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			writeJSON(w, map[string]interface{}{
				"error":   "upload incomplete",
				"missing": incomplete.Missing,
			})
		case errors.Is(err, upload.ErrSessionNotFound):
			writeJSONError(w, "unknown upload session", http.StatusNotFound)
		default:
			logging.Error("Failed to finalize upload %s: %v", fileID, err)
			writeJSONError(w, "failed to assemble upload", http.StatusInternalServerError)
		}
		return
	}

	h.auditUpload(file, "chunked")

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, chunkCompleteResponse{
		FileID:   file.ID,
		FileName: file.OriginalName,
		Size:     file.Size,
	})
}
