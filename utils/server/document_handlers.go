package server

import (
	"net/http"
	"path/filepath"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/fileutil"
)

// handleUpload accepts a multipart "file" field and returns its text so it can
// be passed to /analysis/execute. Nothing is written to disk.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, fileutil.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		config.VerboseLog("Error parsing multipart form: %v", err)
		writeError(w, http.StatusBadRequest, "Error parsing form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		config.VerboseLog("Error getting file from form: %v", err)
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	content, err := fileutil.ReadText(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "File upload failed: "+err.Error())
		return
	}

	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "text/plain"
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Filename: filepath.Base(header.Filename),
		Content:  content,
		FileType: fileType,
		Size:     len(content),
	})
}
