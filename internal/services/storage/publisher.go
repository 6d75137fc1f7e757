package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"blendflow/internal/services"
)

// MinObjectBytes rejects artifacts too small to hold a motion.
const MinObjectBytes = 10

// Object describes one artifact to publish.
type Object struct {
	LocalPath   string
	Folder      string
	Metadata    map[string]string
	ContentType string
}

// Name returns the deterministic object name for the artifact.
func (o Object) Name() string {
	return ObjectName(o.Folder, path.Base(strings.ReplaceAll(o.LocalPath, "\\", "/")))
}

// Publisher uploads artifacts and reports the destination URI.
type Publisher interface {
	Publish(ctx context.Context, obj Object) (string, error)
	Check(ctx context.Context) error
	Describe() string
}

// ObjectName joins a folder and base name with exactly one separator.
func ObjectName(folder, base string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return base
	}
	return folder + "/" + base
}

// CheckSize enforces the artifact size window and returns the file size.
func CheckSize(localPath string, maxBytes int64) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, services.Wrap(services.ErrNotFound, "publish", "stat artifact", localPath, err)
		}
		return 0, services.Wrap(services.ErrPermanent, "publish", "stat artifact", localPath, err)
	}
	if info.IsDir() {
		return 0, services.Wrap(services.ErrMalformedInput, "publish", "stat artifact", fmt.Sprintf("%s is a directory", localPath), nil)
	}
	if info.Size() < MinObjectBytes {
		return info.Size(), services.Wrap(services.ErrMalformedInput, "publish", "check size",
			fmt.Sprintf("file too small: %d < %d bytes", info.Size(), MinObjectBytes), nil)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return info.Size(), services.WithHint(
			services.Wrap(services.ErrMalformedInput, "publish", "check size",
				fmt.Sprintf("file too large: %d > %d bytes", info.Size(), maxBytes), nil),
			"raise storage.max_upload_size_mb or MAX_UPLOAD_SIZE_MB",
		)
	}
	return info.Size(), nil
}

// ContentType picks the MIME type for an artifact.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".bvh":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
