package testsupport

import (
	"path/filepath"
	"testing"

	"blendflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test and
// millisecond-scale retry delays. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = ""
	cfgVal.Storage.LocalDir = filepath.Join(base, "published")
	cfgVal.Retry.BaseDelayMillis = 1
	cfgVal.Retry.MaxDelayMillis = 5
	cfgVal.Retry.Jitter = 0
	cfgVal.Stages.FetchTimeoutSeconds = 5
	cfgVal.Stages.TransformTimeoutSeconds = 5
	cfgVal.Stages.UploadTimeoutSeconds = 5
	cfgVal.Fetch.MinFileSizeBytes = 16

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMaxRetries overrides the retry ceiling.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = n
	}
}

// WithWorkers overrides the pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pool.WorkerPoolSize = n
	}
}

// WithBreaker overrides the default breaker threshold and cooldown.
func WithBreaker(threshold, cooldownSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Breaker.FailureThreshold = threshold
		b.cfg.Breaker.CooldownSeconds = cooldownSeconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
