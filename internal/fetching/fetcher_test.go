package fetching_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"blendflow/internal/fetching"
	"blendflow/internal/job"
	"blendflow/internal/services"
	"blendflow/internal/testsupport"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDownloader) Download(_ context.Context, source, destination string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, source)
	if f.err != nil {
		return 0, f.err
	}
	return 32, os.WriteFile(destination, []byte("HIERARCHY placeholder content.."), 0o644)
}

func TestFetcherDownloadsBothSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeDownloader{}
	fetcher := fetching.NewFetcherWithClient(cfg, client, nil)
	j := job.New("key1", 0, job.Input{Source1: "https://x/walk.bvh", Source2: "https://x/run.bvh"}, job.ModeFull.Stages())

	if err := fetcher.Prepare(context.Background(), j); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	dir, err := fetcher.Execute(context.Background(), j)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if dir != filepath.Join(cfg.Paths.WorkDir, "key1", "fetch") {
		t.Fatalf("unexpected artifact dir %q", dir)
	}
	for _, name := range []string{job.FetchedFirst, job.FetchedSecond} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 downloads, got %v", client.calls)
	}
}

func TestFetcherPrepareRequiresSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := fetching.NewFetcherWithClient(cfg, &fakeDownloader{}, nil)
	err := fetcher.Prepare(context.Background(), job.New("key1", 0, job.Input{Source1: "a.bvh"}, nil))
	if services.Classify(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetcherPropagatesDownloadErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	injected := services.Wrap(services.ErrTransient, "fetch", "download", "HTTP 503", nil)
	fetcher := fetching.NewFetcherWithClient(cfg, &fakeDownloader{err: injected}, nil)
	_, err := fetcher.Execute(context.Background(), job.New("key1", 0, job.Input{Source1: "a", Source2: "b"}, nil))
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestFetcherHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if h := fetching.NewFetcherWithClient(cfg, &fakeDownloader{}, nil).HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected ready, got %+v", h)
	}
	cfg.Paths.WorkDir = filepath.Join(t.TempDir(), "missing")
	if h := fetching.NewFetcherWithClient(cfg, &fakeDownloader{}, nil).HealthCheck(context.Background()); h.Ready {
		t.Fatal("expected unhealthy for missing work dir")
	}
}
