package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const remoteFolder = "music_player"

// remoteUploader pushes a staged file to a remote object store and returns
// the absolute URL it is reachable at.
type remoteUploader interface {
	Upload(ctx context.Context, path, publicID string) (string, error)
}

type cloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// newCloudinaryUploader returns nil when no credentials are configured, which
// disables the remote branch entirely. Partially configured credentials are
// an error: better to fail at boot than at the first upload.
func newCloudinaryUploader(cloudName, apiKey, apiSecret string) (remoteUploader, error) {
	if cloudName == "" && apiKey == "" && apiSecret == "" {
		return nil, nil
	}
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are incomplete")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}

	return &cloudinaryUploader{cld: cld}, nil
}

func (u *cloudinaryUploader) Upload(ctx context.Context, path, publicID string) (string, error) {
	// Cloudinary files audio under the "video" resource type.
	res, err := u.cld.Upload.Upload(ctx, path, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       remoteFolder,
		ResourceType: "video",
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("upload response contains no url")
	}

	return res.SecureURL, nil
}

type storedFile struct {
	URL    string
	Remote bool
}

// fileStore persists uploaded files remotely when possible and falls back to
// the local upload directory otherwise. Exactly one of the two branches
// happens per persist call.
type fileStore struct {
	uploadDir string
	remote    remoteUploader
}

func newFileStore(uploadDir string, remote remoteUploader) *fileStore {
	return &fileStore{
		uploadDir: uploadDir,
		remote:    remote,
	}
}

// persist stores the staged file durably. On a remote outcome the staged
// copy is no longer needed; on a local outcome the staged copy becomes the
// source of truth and must be kept.
func (f *fileStore) persist(ctx context.Context, stagedPath string) (*storedFile, error) {
	if f.remote != nil {
		url, err := f.tryRemote(ctx, stagedPath)
		if err == nil {
			return &storedFile{URL: url, Remote: true}, nil
		}

		slog.Error("remote upload failed, falling back to local storage", "error", err)
	}

	return f.localFallback(stagedPath)
}

func (f *fileStore) tryRemote(ctx context.Context, stagedPath string) (string, error) {
	name := filepath.Base(stagedPath)
	publicID := strings.TrimSuffix(name, filepath.Ext(name))
	return f.remote.Upload(ctx, stagedPath, publicID)
}

func (f *fileStore) localFallback(stagedPath string) (*storedFile, error) {
	name := filepath.Base(stagedPath)
	dst := filepath.Join(f.uploadDir, name)

	if stagedPath != dst {
		err := os.Rename(stagedPath, dst)
		if err != nil {
			return nil, fmt.Errorf("storing file locally: %w", err)
		}
	}

	return &storedFile{URL: "/api/files/" + name, Remote: false}, nil
}

// delete disposes of the file behind a stored URL. Remote objects are kept
// (remote deletion is out of scope); local files are removed, tolerating a
// file that is already gone.
func (f *fileStore) delete(url string) error {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return nil
	}

	name := path.Base(url)
	err := os.Remove(filepath.Join(f.uploadDir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
