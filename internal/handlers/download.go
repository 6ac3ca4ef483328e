package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"clip-compiler/internal/logging"
	"clip-compiler/internal/streaming"
)

// Download streams a finished compilation artifact. Only bare file
// names inside the output directory are served.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Security check: no path components, and the resolved path must
	// stay inside the output directory
	if filename == "" || filename != filepath.Base(filename) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}
	fullPath := filepath.Join(h.outputDir, filename)
	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.outputDir, absPath) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	file, err := os.Open(fullPath)
	if err != nil {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close output file %s: %v", fullPath, err)
		}
	}()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")

	if err := streaming.StreamWithTimeout(r.Context(), w, file, h.streamConfig); err != nil {
		// Client-gone and timeout errors are routine for downloads
		logging.Debug("Download of %s ended early: %v", filename, err)
	}
}
