package storage_test

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"

	"blendflow/internal/fileutil"
	"blendflow/internal/services"
	"blendflow/internal/services/storage"
	"blendflow/internal/testsupport"
)

func TestObjectName(t *testing.T) {
	tests := []struct{ folder, base, want string }{
		{"blend/", "walk_run_blend.bvh", "blend/walk_run_blend.bvh"},
		{"/blend//", "a.bvh", "blend/a.bvh"},
		{"", "a.bvh", "a.bvh"},
		{"seed/takes", "a.bvh", "seed/takes/a.bvh"},
	}
	for _, tc := range tests {
		if got := storage.ObjectName(tc.folder, tc.base); got != tc.want {
			t.Fatalf("ObjectName(%q, %q) = %q, want %q", tc.folder, tc.base, got, tc.want)
		}
	}
}

func TestCheckSize(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.bvh")
	testsupport.WriteFile(t, small, 4)
	big := filepath.Join(dir, "big.bvh")
	testsupport.WriteFile(t, big, 2048)

	if _, err := storage.CheckSize(small, 0); !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected too-small error, got %v", err)
	}
	if _, err := storage.CheckSize(big, 1024); !errors.Is(err, services.ErrMalformedInput) || services.Hint(err) == "" {
		t.Fatalf("expected too-large error with hint, got %v", err)
	}
	if size, err := storage.CheckSize(big, 4096); err != nil || size != 2048 {
		t.Fatalf("unexpected result %d, %v", size, err)
	}
	if _, err := storage.CheckSize(filepath.Join(dir, "missing.bvh"), 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalPublisherIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "work", "walk_run_blend.bvh")
	testsupport.WriteFile(t, artifact, 128)
	root := filepath.Join(dir, "published")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	pub := storage.NewLocalPublisher(root, 0)
	if err := pub.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}

	obj := storage.Object{LocalPath: artifact, Folder: "blend/", Metadata: map[string]string{"blend_ratio": "0.5"}}
	first, err := pub.Publish(context.Background(), obj)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	second, err := pub.Publish(context.Background(), obj)
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if first != second || !strings.HasSuffix(first, filepath.Join("blend", "walk_run_blend.bvh")) {
		t.Fatalf("expected identical deterministic targets, got %q and %q", first, second)
	}
	entries, err := os.ReadDir(filepath.Join(root, "blend"))
	if err != nil {
		t.Fatalf("read published dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected artifact and metadata sidecar only, got %d entries", len(entries))
	}
	meta, err := os.ReadFile(filepath.Join(root, "blend", "walk_run_blend.bvh.metadata.json"))
	if err != nil || !strings.Contains(string(meta), `"blend_ratio": "0.5"`) {
		t.Fatalf("unexpected metadata sidecar: %s (%v)", meta, err)
	}
	want, err := fileutil.SHA256File(artifact)
	if err != nil {
		t.Fatalf("hash artifact: %v", err)
	}
	if !strings.Contains(string(meta), `"sha256": "`+want+`"`) {
		t.Fatalf("sidecar missing digest %s: %s", want, meta)
	}
}

func TestLocalPublisherCheckMissingRoot(t *testing.T) {
	pub := storage.NewLocalPublisher(filepath.Join(t.TempDir(), "missing"), 0)
	if err := pub.Check(context.Background()); services.Classify(err) != services.KindValidation {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeGCS struct {
	mu       sync.Mutex
	status   int
	uploads  []string
	metadata map[string]string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":{"code":`+strconv.Itoa(f.status)+`,"message":"injected"}}`)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/upload/"):
		name := r.URL.Query().Get("name")
		if mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mediaType, "multipart/") {
			reader := multipart.NewReader(r.Body, params["boundary"])
			if part, err := reader.NextPart(); err == nil {
				var attrs struct {
					Name     string            `json:"name"`
					Metadata map[string]string `json:"metadata"`
				}
				if json.NewDecoder(part).Decode(&attrs) == nil {
					if attrs.Name != "" {
						name = attrs.Name
					}
					f.metadata = attrs.Metadata
				}
			}
		}
		f.uploads = append(f.uploads, name)
		_ = json.NewEncoder(w).Encode(map[string]any{"bucket": "motion-test", "name": name, "size": "128"})
	case strings.HasPrefix(r.URL.Path, "/storage/v1/b/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "motion-test"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newGCSClient(t *testing.T, fake *fakeGCS) *gcs.Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(server.URL, "http://"))
	client, err := gcs.NewClient(context.Background())
	if err != nil {
		t.Fatalf("storage client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGCSPublisherUploadsWithMetadata(t *testing.T) {
	fake := &fakeGCS{}
	client := newGCSClient(t, fake)
	artifact := filepath.Join(t.TempDir(), "walk_run_blend.bvh")
	testsupport.WriteFile(t, artifact, 128)

	pub := storage.NewGCSPublisher(client, "motion-test", 1<<20)
	if err := pub.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	uri, err := pub.Publish(context.Background(), storage.Object{
		LocalPath: artifact,
		Folder:    "blend/",
		Metadata:  map[string]string{"pipeline": "blendflow"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if uri != "gs://motion-test/blend/walk_run_blend.bvh" {
		t.Fatalf("unexpected uri %q", uri)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.uploads) != 1 || fake.uploads[0] != "blend/walk_run_blend.bvh" {
		t.Fatalf("unexpected uploads %v", fake.uploads)
	}
	if fake.metadata["pipeline"] != "blendflow" {
		t.Fatalf("metadata not sent: %v", fake.metadata)
	}
}

func TestGCSPublisherForbidden(t *testing.T) {
	fake := &fakeGCS{status: http.StatusForbidden}
	client := newGCSClient(t, fake)
	artifact := filepath.Join(t.TempDir(), "walk_run_blend.bvh")
	testsupport.WriteFile(t, artifact, 128)

	_, err := storage.NewGCSPublisher(client, "motion-test", 0).Publish(context.Background(), storage.Object{LocalPath: artifact})
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
