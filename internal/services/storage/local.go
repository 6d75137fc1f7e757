package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"blendflow/internal/fileutil"
	"blendflow/internal/services"
)

// LocalPublisher copies artifacts into a directory tree and writes metadata,
// plus the content digest, to a sidecar JSON file.
type LocalPublisher struct {
	root     string
	maxBytes int64
}

// NewLocalPublisher constructs a directory-backed publisher.
func NewLocalPublisher(root string, maxBytes int64) *LocalPublisher {
	return &LocalPublisher{root: root, maxBytes: maxBytes}
}

func (p *LocalPublisher) Describe() string {
	return p.root
}

func (p *LocalPublisher) Publish(ctx context.Context, obj Object) (string, error) {
	if _, err := CheckSize(obj.LocalPath, p.maxBytes); err != nil {
		return "", err
	}
	target := filepath.Join(p.root, filepath.FromSlash(obj.Name()))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "publish", "create folder", filepath.Dir(target), err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	digest, err := fileutil.CopyVerified(obj.LocalPath, target)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "copy artifact", target, err)
	}
	sidecar := make(map[string]string, len(obj.Metadata)+1)
	for k, v := range obj.Metadata {
		sidecar[k] = v
	}
	sidecar["sha256"] = digest
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "publish", "encode metadata", target, err)
	}
	if err := os.WriteFile(target+".metadata.json", data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "write metadata", target, err)
	}
	return "file://" + target, nil
}

func (p *LocalPublisher) Check(context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "publish", "check directory", p.root, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "publish", "check directory", fmt.Sprintf("%s is not a directory", p.root), nil)
	}
	return nil
}
