package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

var errFileNotFound = errors.New("File not found")

// getFile serves locally stored uploads, the fallback for files that never
// made it to the remote store.
func (s *server) getFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		s.renderError(w, http.StatusNotFound, errFileNotFound)
		return
	}

	path := filepath.Join(s.store.uploadDir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.renderError(w, http.StatusNotFound, errFileNotFound)
		return
	}

	http.ServeFile(w, r, path)
}
