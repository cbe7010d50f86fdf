package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, remote remoteUploader) (*server, string) {
	t.Helper()

	dir := t.TempDir()
	return newServer(newTestDatabase(t), newFileStore(dir, remote)), dir
}

func doRequest(t *testing.T, s *server, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var data map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
	return data
}

func uploadDirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeJSON(t, rec)
	assert.Equal(t, "healthy", data["status"])
}

func TestUploadRemoteSuccess(t *testing.T) {
	remote := &fakeUploader{url: "https://cdn.example.com/music_player/song.mp3"}
	s, dir := newTestServer(t, remote)

	body, contentType := multipartBody(t, "song.mp3", mp3FrameBytes())
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeJSON(t, rec)
	assert.Equal(t, "Song uploaded successfully", data["message"])

	song := data["song"].(map[string]interface{})
	assert.Equal(t, remote.url, song["file_url"])
	assert.Nil(t, song["cover_url"])

	// The staged copy is gone once the remote store has the file.
	assert.Empty(t, uploadDirEntries(t, dir))
}

func TestUploadFallsBackToLocalStorage(t *testing.T) {
	remote := &fakeUploader{err: errors.New("quota exceeded")}
	s, dir := newTestServer(t, remote)

	body, contentType := multipartBody(t, "song.mp3", mp3FrameBytes())
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeJSON(t, rec)
	song := data["song"].(map[string]interface{})
	fileURL := song["file_url"].(string)
	require.True(t, strings.HasPrefix(fileURL, "/api/files/"), "expected local reference, got %q", fileURL)

	// The locally stored file is the only thing left on disk and it is
	// resolvable through the files endpoint.
	entries := uploadDirEntries(t, dir)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/files/"+entries[0].Name(), fileURL)

	fileRec := doRequest(t, s, http.MethodGet, fileURL, "", nil)
	assert.Equal(t, http.StatusOK, fileRec.Code)
}

func TestUploadUnparseableTagsGetDefaults(t *testing.T) {
	s, dir := newTestServer(t, nil)

	body, contentType := multipartBody(t, "song.mp3", mp3FrameBytes())
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeJSON(t, rec)
	song := data["song"].(map[string]interface{})
	assert.Equal(t, "Unknown", song["title"])
	assert.Equal(t, "Unknown", song["artist"])
	assert.Equal(t, "Unknown", song["album"])

	// No temp files besides the stored one.
	assert.Len(t, uploadDirEntries(t, dir), 1)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	remote := &fakeUploader{url: "https://cdn.example.com/x"}
	s, dir := newTestServer(t, remote)

	body, contentType := multipartBody(t, "notes.txt", []byte("hello"))
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	data := decodeJSON(t, rec)
	assert.Equal(t, "File type not allowed", data["error"])

	// Rejected before staging or any remote call.
	assert.Empty(t, uploadDirEntries(t, dir))
	assert.Zero(t, remote.uploads)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", "application/json", strings.NewReader("{}"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeJSON(t, rec)["error"])

	// A multipart form without a "file" field at all.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "not a file"))
	require.NoError(t, mw.Close())

	rec = doRequest(t, s, http.MethodPost, "/api/songs/upload", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeJSON(t, rec)["error"])
}

func TestUploadRejectsEmptyFilename(t *testing.T) {
	s, dir := newTestServer(t, nil)

	body, contentType := multipartBody(t, "", []byte("x"))
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	data := decodeJSON(t, rec)
	assert.Equal(t, "No file selected", data["error"])
	assert.Empty(t, uploadDirEntries(t, dir))
}

func TestUploadRejectsUnrecognizedAudio(t *testing.T) {
	s, dir := newTestServer(t, nil)

	body, contentType := multipartBody(t, "fake.mp3", []byte("this is just text"))
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The staged temp file must not leak on the rejection path.
	assert.Empty(t, uploadDirEntries(t, dir))
}

func TestUploadThenGetRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body, contentType := multipartBody(t, "song.mp3", mp3FrameBytes())
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	uploaded := decodeJSON(t, rec)["song"].(map[string]interface{})
	id := uint64(uploaded["id"].(float64))

	getRec := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/songs/%d", id), "", nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	fetched := decodeJSON(t, getRec)
	for _, field := range []string{"title", "artist", "album", "duration", "file_url"} {
		assert.Equal(t, uploaded[field], fetched[field], field)
	}
}

func TestGetSongNotFoundResponse(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/songs/42", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Song not found", decodeJSON(t, rec)["error"])
}

func TestDeleteSongRemovesEverything(t *testing.T) {
	s, dir := newTestServer(t, nil)
	ctx := context.Background()

	body, contentType := multipartBody(t, "song.mp3", mp3FrameBytes())
	rec := doRequest(t, s, http.MethodPost, "/api/songs/upload", contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := uint64(decodeJSON(t, rec)["id"].(float64))

	playlist := &Playlist{Name: "mix"}
	require.NoError(t, s.db.CreatePlaylist(ctx, playlist))
	require.NoError(t, s.db.AddSongToPlaylist(ctx, playlist.ID, id))

	delRec := doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/songs/%d", id), "", nil)
	require.Equal(t, http.StatusOK, delRec.Code)

	// Gone from the song list, the playlist, and the disk.
	listRec := doRequest(t, s, http.MethodGet, "/api/songs", "", nil)
	var songs []Song
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&songs))
	assert.Empty(t, songs)

	memberships, err := s.db.GetPlaylistSongs(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	assert.Empty(t, uploadDirEntries(t, dir))

	getRec := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/songs/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestDeleteSongNotFoundResponse(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodDelete, "/api/songs/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePlaylistValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/playlists", "application/json",
		strings.NewReader(`{"name":"road trip","description":"long drives"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeJSON(t, rec)
	assert.Equal(t, "road trip", data["name"])
	assert.Equal(t, "long drives", data["description"])
	assert.NotZero(t, data["id"])

	rec = doRequest(t, s, http.MethodPost, "/api/playlists", "application/json", strings.NewReader(`{"description":"no name"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Playlist name is required", decodeJSON(t, rec)["error"])
}

func TestPlaylistMembershipEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	song := createTestSong(t, s.db, "track", time.Now())
	playlist := &Playlist{Name: "mix"}
	require.NoError(t, s.db.CreatePlaylist(ctx, playlist))

	addPath := fmt.Sprintf("/api/playlists/%d/songs", playlist.ID)
	addBody := fmt.Sprintf(`{"song_id":%d}`, song.ID)

	rec := doRequest(t, s, http.MethodPost, addPath, "application/json", strings.NewReader(addBody))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second add is a conflict, and the membership count stays at one.
	rec = doRequest(t, s, http.MethodPost, addPath, "application/json", strings.NewReader(addBody))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Song already in playlist", decodeJSON(t, rec)["error"])

	listRec := doRequest(t, s, http.MethodGet, "/api/playlists", "", nil)
	var playlists []PlaylistSummary
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&playlists))
	require.Len(t, playlists, 1)
	assert.Equal(t, int64(1), playlists[0].SongCount)

	rec = doRequest(t, s, http.MethodPost, addPath, "application/json", strings.NewReader("{}"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Song ID is required", decodeJSON(t, rec)["error"])

	rec = doRequest(t, s, http.MethodPost, addPath, "application/json", strings.NewReader(`{"song_id":999}`))
	require.Equal(t, http.StatusNotFound, rec.Code)

	removePath := fmt.Sprintf("/api/playlists/%d/songs/%d", playlist.ID, song.ID)
	rec = doRequest(t, s, http.MethodDelete, removePath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, removePath, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Song not found in playlist", decodeJSON(t, rec)["error"])
}

func TestServeFileNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/files/nope.mp3", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeJSON(t, rec)["error"])
}

func TestServeFileRejectsTraversal(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/files/..%2fsecret", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
