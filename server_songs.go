package main

import (
	"errors"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
)

var errSongNotFound = errors.New("Song not found")

func (s *server) getSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.db.GetSongs(r.Context())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, songs)
}

func (s *server) getSong(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r, "id")
	if err != nil {
		s.renderError(w, http.StatusNotFound, errSongNotFound)
		return
	}

	song, err := s.db.GetSong(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(w, http.StatusNotFound, errSongNotFound)
		} else {
			s.renderError(w, http.StatusInternalServerError, err)
		}
		return
	}

	s.renderJSON(w, http.StatusOK, song)
}

func (s *server) postSongUpload(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(32 << 20)
	if err != nil || r.MultipartForm == nil {
		s.renderError(w, http.StatusBadRequest, errNoFile)
		return
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		// A part with an empty filename is parsed as a plain form value,
		// which is how browsers submit a file input left blank.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			s.renderError(w, http.StatusBadRequest, errNoFileSelected)
		} else {
			s.renderError(w, http.StatusBadRequest, errNoFile)
		}
		return
	}

	header := headers[0]
	file, err := header.Open()
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}
	defer file.Close()

	song, err := s.uploadSong(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, errNoFileSelected),
			errors.Is(err, errTypeNotAllowed),
			errors.Is(err, errUnrecognizedAudio):
			s.renderError(w, http.StatusBadRequest, err)
		default:
			s.renderError(w, http.StatusInternalServerError, err)
		}
		return
	}

	slog.Info("song uploaded", "id", song.ID, "song", song.String(), "file_url", song.FileURL)

	s.renderJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      song.ID,
		"message": "Song uploaded successfully",
		"song":    song,
	})
}

func (s *server) deleteSong(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r, "id")
	if err != nil {
		s.renderError(w, http.StatusNotFound, errSongNotFound)
		return
	}

	fileURL, err := s.db.DeleteSong(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(w, http.StatusNotFound, errSongNotFound)
		} else {
			s.renderError(w, http.StatusInternalServerError, err)
		}
		return
	}

	err = s.store.delete(fileURL)
	if err != nil {
		// The database rows are already gone; losing the file cleanup is
		// worth logging but not failing the request over.
		slog.Error("could not delete stored file", "url", fileURL, "error", err)
	}

	s.renderJSON(w, http.StatusOK, map[string]string{"message": "Song deleted successfully"})
}
