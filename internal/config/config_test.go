package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"blendflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".local", "share", "blendflow", "work"); cfg.Paths.WorkDir != want {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, want)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BackoffMultiplier != 2 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Pool.WorkerPoolSize != 4 {
		t.Fatalf("unexpected pool size: %d", cfg.Pool.WorkerPoolSize)
	}
	if cfg.Storage.Backend != config.StorageBackendLocal {
		t.Fatalf("expected local backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.UploadTimeout() != 300*time.Second {
		t.Fatalf("unexpected upload timeout: %s", cfg.UploadTimeout())
	}
	if cfg.MaxUploadBytes() != 500*1024*1024 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes())
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Retry.MaxRetries = 7
	cfg.Pool.WorkerPoolSize = 2
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("WORKER_POOL_SIZE", "8")
	t.Setenv("UPLOAD_TIMEOUT_SECONDS", "450")
	t.Setenv("GCS_BUCKET", "gs://motionblend-mocap/")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "100")

	loaded, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if loaded.Retry.MaxRetries != 5 {
		t.Fatalf("MAX_RETRIES not applied: %d", loaded.Retry.MaxRetries)
	}
	if loaded.Retry.BackoffMultiplier != 1.5 {
		t.Fatalf("RETRY_BACKOFF_MULTIPLIER not applied: %v", loaded.Retry.BackoffMultiplier)
	}
	if loaded.Pool.WorkerPoolSize != 8 {
		t.Fatalf("WORKER_POOL_SIZE not applied: %d", loaded.Pool.WorkerPoolSize)
	}
	if loaded.Stages.UploadTimeoutSeconds != 450 {
		t.Fatalf("UPLOAD_TIMEOUT_SECONDS not applied: %d", loaded.Stages.UploadTimeoutSeconds)
	}
	if loaded.Storage.Backend != config.StorageBackendGCS || loaded.Storage.Bucket != "motionblend-mocap" {
		t.Fatalf("GCS_BUCKET not applied: %+v", loaded.Storage)
	}
	if loaded.Storage.MaxUploadSizeMB != 100 {
		t.Fatalf("MAX_UPLOAD_SIZE_MB not applied: %d", loaded.Storage.MaxUploadSizeMB)
	}
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WORKER_POOL_SIZE", "many")
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "WORKER_POOL_SIZE") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[pool]\nworkers = 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"pool", func(c *config.Config) { c.Pool.WorkerPoolSize = 0 }, "pool.worker_pool_size"},
		{"retries", func(c *config.Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"multiplier", func(c *config.Config) { c.Retry.BackoffMultiplier = 0.5 }, "retry.backoff_multiplier"},
		{"jitter", func(c *config.Config) { c.Retry.Jitter = 0.5 }, "retry.jitter"},
		{"threshold", func(c *config.Config) { c.Breaker.FailureThreshold = 0 }, "breaker.failure_threshold"},
		{"override", func(c *config.Config) {
			c.Breaker.Dependencies = map[string]config.BreakerSettings{"storage-upload": {FailureThreshold: 0}}
		}, "breaker.dependencies.storage-upload"},
		{"timeout", func(c *config.Config) { c.Stages.TransformTimeoutSeconds = 0 }, "stages.transform_timeout_seconds"},
		{"bucket", func(c *config.Config) { c.Storage.Backend = config.StorageBackendGCS }, "storage.bucket"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.LocalDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists || cfg.Breaker.FailureThreshold != 5 {
		t.Fatalf("unexpected sample config: exists=%v breaker=%+v", exists, cfg.Breaker)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.LocalDir = filepath.Join(base, "published")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Storage.LocalDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
	if filepath.Dir(cfg.StatePath()) != cfg.Paths.StateDir {
		t.Fatalf("unexpected state path %s", cfg.StatePath())
	}
}
