package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	gcs "cloud.google.com/go/storage"

	"blendflow/internal/config"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/services"
	"blendflow/internal/services/storage"
	"blendflow/internal/stage"
)

// PipelineName tags every published object.
const PipelineName = "blendflow"

// Publisher uploads transform artifacts.
type Publisher struct {
	backend storage.Publisher
	logger  *slog.Logger
}

// NewPublisher constructs the publish handler around the configured backend.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPublisherWithBackend(backend, logger), nil
}

// NewPublisherWithBackend allows injecting the storage backend (used in tests).
func NewPublisherWithBackend(backend storage.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "publisher"),
	}
}

// OpenBackend selects the storage backend named by the configuration.
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.Publisher, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, services.WithHint(
				services.Wrap(services.ErrConfiguration, "publish", "create gcs client", "", err),
				"set GOOGLE_APPLICATION_CREDENTIALS or run gcloud auth application-default login",
			)
		}
		return storage.NewGCSPublisher(client, cfg.Storage.Bucket, cfg.MaxUploadBytes()), nil
	case config.StorageBackendLocal:
		return storage.NewLocalPublisher(cfg.Storage.LocalDir, cfg.MaxUploadBytes()), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "publish", "select backend",
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

// Describe names the destination for logs and doctor output.
func (p *Publisher) Describe() string {
	if p.backend == nil {
		return ""
	}
	return p.backend.Describe()
}

func (p *Publisher) Prepare(ctx context.Context, j *job.Job) error {
	artifact, err := stage.RequireArtifact(j, job.StageTransform, job.StagePublish)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, p.logger).Debug("publish prepared",
		logging.String("artifact", artifact),
		logging.String("destination", p.Describe()),
	)
	return nil
}

func (p *Publisher) Execute(ctx context.Context, j *job.Job) (string, error) {
	artifact, err := stage.RequireArtifact(j, job.StageTransform, job.StagePublish)
	if err != nil {
		return "", err
	}
	uri, err := p.backend.Publish(ctx, storage.Object{
		LocalPath:   artifact,
		Folder:      j.Input.Folder,
		Metadata:    Metadata(j),
		ContentType: storage.ContentType(artifact),
	})
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, p.logger).Info("artifact published",
		logging.String("uri", uri),
		logging.String("file", filepath.Base(artifact)),
	)
	return uri, nil
}

// Metadata builds the object metadata for a job. Descriptor-supplied keys are
// applied first; pipeline keys are reserved.
func Metadata(j *job.Job) map[string]string {
	out := make(map[string]string, len(j.Input.Metadata)+6)
	for k, v := range j.Input.Metadata {
		out[k] = v
	}
	out["pipeline"] = PipelineName
	out["job_key"] = j.ID
	out["blend_ratio"] = strconv.FormatFloat(j.Input.Ratio, 'f', -1, 64)
	method := strings.TrimSpace(j.Input.Method)
	if method == "" {
		method = "linear"
	}
	out["blend_method"] = method
	if name := strings.TrimSpace(j.Input.Name); name != "" {
		out["job_name"] = name
	}
	if j.Input.Source1 != "" {
		out["source1"] = j.Input.Source1
	}
	if j.Input.Source2 != "" {
		out["source2"] = j.Input.Source2
	}
	return out
}

func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "publish"
	if p.backend == nil {
		return stage.Unhealthy(name, "storage backend unavailable")
	}
	if err := p.backend.Check(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
