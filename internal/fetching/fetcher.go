package fetching

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"blendflow/internal/config"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/services"
	"blendflow/internal/services/fetch"
	"blendflow/internal/stage"
)

// Fetcher downloads job sources.
type Fetcher struct {
	workDir string
	client  fetch.Service
	logger  *slog.Logger
}

// NewFetcher constructs the fetch handler using the go-getter client.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	return NewFetcherWithClient(cfg, fetch.NewClient(cfg.Fetch.MinFileSizeBytes, ""), logger)
}

// NewFetcherWithClient allows injecting the download client (used in tests).
func NewFetcherWithClient(cfg *config.Config, client fetch.Service, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		workDir: cfg.Paths.WorkDir,
		client:  client,
		logger:  logging.NewComponentLogger(logger, "fetcher"),
	}
}

// Dir returns the fetch directory for a job.
func (f *Fetcher) Dir(j *job.Job) string {
	return filepath.Join(f.workDir, j.ID, string(job.StageFetch))
}

func (f *Fetcher) Prepare(ctx context.Context, j *job.Job) error {
	var missing []string
	if strings.TrimSpace(j.Input.Source1) == "" {
		missing = append(missing, "input1")
	}
	if strings.TrimSpace(j.Input.Source2) == "" {
		missing = append(missing, "input2")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "fetch", "validate inputs",
			"missing "+strings.Join(missing, " and "), nil)
	}
	logging.WithContext(ctx, f.logger).Debug("fetch prepared",
		logging.String("input1", j.Input.Source1),
		logging.String("input2", j.Input.Source2),
	)
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, j *job.Job) (string, error) {
	logger := logging.WithContext(ctx, f.logger)
	dir := f.Dir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "fetch", "create work dir", dir, err)
	}
	sources := []struct {
		locator string
		name    string
	}{
		{j.Input.Source1, job.FetchedFirst},
		{j.Input.Source2, job.FetchedSecond},
	}
	for _, src := range sources {
		dest := filepath.Join(dir, src.name)
		size, err := f.client.Download(ctx, src.locator, dest)
		if err != nil {
			return "", err
		}
		logger.Info("source downloaded",
			logging.String("source", src.locator),
			logging.String("file", src.name),
			logging.Int64("size_bytes", size),
		)
	}
	return dir, nil
}

// HealthCheck reports whether the work directory can receive downloads.
func (f *Fetcher) HealthCheck(context.Context) stage.Health {
	const name = "fetch"
	if f.client == nil {
		return stage.Unhealthy(name, "download client unavailable")
	}
	info, err := os.Stat(f.workDir)
	if err != nil {
		return stage.Unhealthy(name, "work_dir: "+err.Error())
	}
	if !info.IsDir() {
		return stage.Unhealthy(name, "work_dir is not a directory")
	}
	return stage.Healthy(name)
}
