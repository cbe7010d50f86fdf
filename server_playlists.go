package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

var (
	errPlaylistNameRequired = errors.New("Playlist name is required")
	errSongIDRequired       = errors.New("Song ID is required")
	errAlreadyInPlaylist    = errors.New("Song already in playlist")
	errNotInPlaylist        = errors.New("Song not found in playlist")
	errPlaylistNotFound     = errors.New("Playlist not found")
	errMembershipTarget     = errors.New("Playlist or song not found")
)

func (s *server) getPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.db.GetPlaylists(r.Context())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, playlists)
}

func (s *server) postPlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || strings.TrimSpace(body.Name) == "" {
		s.renderError(w, http.StatusBadRequest, errPlaylistNameRequired)
		return
	}

	playlist := &Playlist{
		Name:        body.Name,
		Description: body.Description,
	}

	err = s.db.CreatePlaylist(r.Context(), playlist)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          playlist.ID,
		"name":        playlist.Name,
		"description": playlist.Description,
		"message":     "Playlist created successfully",
	})
}

func (s *server) postPlaylistSong(w http.ResponseWriter, r *http.Request) {
	playlistID, err := extractID(r, "id")
	if err != nil {
		s.renderError(w, http.StatusNotFound, errPlaylistNotFound)
		return
	}

	var body struct {
		SongID *uint64 `json:"song_id"`
	}

	err = json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.SongID == nil {
		s.renderError(w, http.StatusBadRequest, errSongIDRequired)
		return
	}

	err = s.db.AddSongToPlaylist(r.Context(), playlistID, *body.SongID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			s.renderError(w, http.StatusBadRequest, errAlreadyInPlaylist)
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Memberships pointing at a missing playlist or song are
			// rejected outright.
			s.renderError(w, http.StatusNotFound, errMembershipTarget)
		default:
			s.renderError(w, http.StatusInternalServerError, err)
		}
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]string{"message": "Song added to playlist successfully"})
}

func (s *server) deletePlaylistSong(w http.ResponseWriter, r *http.Request) {
	playlistID, err := extractID(r, "id")
	if err != nil {
		s.renderError(w, http.StatusNotFound, errNotInPlaylist)
		return
	}

	songID, err := extractID(r, "song-id")
	if err != nil {
		s.renderError(w, http.StatusNotFound, errNotInPlaylist)
		return
	}

	err = s.db.RemoveSongFromPlaylist(r.Context(), playlistID, songID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(w, http.StatusNotFound, errNotInPlaylist)
		} else {
			s.renderError(w, http.StatusInternalServerError, err)
		}
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]string{"message": "Song removed from playlist successfully"})
}
