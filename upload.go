package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".m4a":  true,
}

var (
	errNoFile         = errors.New("No file provided")
	errNoFileSelected = errors.New("No file selected")
	errTypeNotAllowed = errors.New("File type not allowed")
)

// uploadSong runs the upload pipeline: validate, stage, extract, persist,
// record. Whatever fails after the staged file exists, the staged file is
// removed unless it became the locally stored copy.
func (s *server) uploadSong(ctx context.Context, filename string, file io.Reader) (*Song, error) {
	if filename == "" {
		return nil, errNoFileSelected
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, errTypeNotAllowed
	}

	stagedPath, err := s.stageFile(filename, file)
	if err != nil {
		return nil, err
	}

	md, err := extractMetadata(stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		return nil, err
	}

	stored, err := s.store.persist(ctx, stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		return nil, err
	}

	song := &Song{
		Title:    md.Title,
		Artist:   md.Artist,
		Album:    md.Album,
		Duration: md.Duration,
		FileURL:  stored.URL,
	}

	err = s.db.CreateSong(ctx, song)
	if err != nil {
		if stored.Remote {
			os.Remove(stagedPath)
		} else {
			// The staged copy became the stored copy; remove it so the
			// failed upload leaves no orphaned file behind.
			derr := s.store.delete(stored.URL)
			if derr != nil {
				slog.Error("could not delete stored file", "url", stored.URL, "error", derr)
			}
		}
		return nil, err
	}

	if stored.Remote {
		os.Remove(stagedPath)
	}

	return song, nil
}

// stageFile writes the upload into the store's directory under a fresh
// unique name, so concurrent uploads of the same filename never collide.
func (s *server) stageFile(filename string, file io.Reader) (string, error) {
	name := uuid.NewString() + "_" + sanitizeFilename(filename)
	path := filepath.Join(s.store.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("staging file: %w", err)
	}

	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("staging file: %w", err)
	}

	return path, nil
}

// sanitizeFilename keeps the stored name shell- and URL-safe.
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
}
