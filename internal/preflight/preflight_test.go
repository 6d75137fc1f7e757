package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blendflow/internal/config"
	"blendflow/internal/services/storage"
	"blendflow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAllLocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected work, state, publish checks; got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAllReportsMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.LocalDir = filepath.Join(testsupport.BaseDir(cfg), "absent")
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Publish directory" {
		t.Fatalf("expected publish directory failure, got %+v", failed)
	}
}

func TestRunAllGCSChecksCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Backend = config.StorageBackendGCS
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "GCS credentials" {
		t.Fatalf("expected credential failure, got %+v", failed)
	}
}

type fakeBackend struct{ err error }

func (f fakeBackend) Publish(context.Context, storage.Object) (string, error) { return "", nil }
func (f fakeBackend) Check(context.Context) error                           { return f.err }
func (f fakeBackend) Describe() string                                      { return "gs://bucket" }

func TestCheckStorage(t *testing.T) {
	if r := CheckStorage(context.Background(), fakeBackend{}); !r.Passed || r.Detail != "gs://bucket" {
		t.Fatalf("expected pass, got %+v", r)
	}
	r := CheckStorage(context.Background(), fakeBackend{err: errors.New("bucket does not exist")})
	if r.Passed || !strings.Contains(r.Detail, "bucket does not exist") {
		t.Fatalf("expected failure detail, got %+v", r)
	}
}

func TestCheckStateStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	r := CheckStateStore(context.Background(), store)
	if !r.Passed || !strings.Contains(r.Detail, "schema v1") {
		t.Fatalf("unexpected result %+v", r)
	}
}
