package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type server struct {
	db    *database
	store *fileStore
}

func newServer(db *database, store *fileStore) *server {
	return &server{
		db:    db,
		store: store,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/songs", s.getSongs)
		r.Post("/songs/upload", s.postSongUpload)
		r.Get("/songs/{id}", s.getSong)
		r.Delete("/songs/{id}", s.deleteSong)

		r.Get("/files/{filename}", s.getFile)

		r.Get("/playlists", s.getPlaylists)
		r.Post("/playlists", s.postPlaylist)
		r.Post("/playlists/{id}/songs", s.postPlaylistSong)
		r.Delete("/playlists/{id}/songs/{song-id}", s.deletePlaylistSong)

		r.Get("/health", s.getHealth)
	})

	return r
}

func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.renderJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Music Player API is running",
	})
}

func (s *server) renderJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("serving json", "error", err)
	}
}

func (s *server) renderError(w http.ResponseWriter, code int, reqErr error) {
	message := http.StatusText(code)

	if reqErr != nil {
		if code >= http.StatusInternalServerError {
			// Internal details stay in the logs.
			slog.Error("request failed", "status", code, "error", reqErr)
		} else {
			message = reqErr.Error()
		}
	}

	s.renderJSON(w, code, map[string]string{"error": message})
}

func extractID(r *http.Request, param string) (uint64, error) {
	idStr := chi.URLParam(r, param)
	return strconv.ParseUint(idStr, 10, 64)
}
