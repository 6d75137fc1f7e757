package blending

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"blendflow/internal/config"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/services"
	"blendflow/internal/services/blend"
	"blendflow/internal/stage"
)

// Blender produces a blended motion for each job.
type Blender struct {
	workDir string
	engine  blend.Service
	logger  *slog.Logger
}

// NewBlender constructs the transform handler around the local blend engine.
func NewBlender(cfg *config.Config, logger *slog.Logger) *Blender {
	return NewBlenderWithEngine(cfg, blend.NewEngine(), logger)
}

// NewBlenderWithEngine allows injecting the blend service (used in tests).
func NewBlenderWithEngine(cfg *config.Config, engine blend.Service, logger *slog.Logger) *Blender {
	return &Blender{
		workDir: cfg.Paths.WorkDir,
		engine:  engine,
		logger:  logging.NewComponentLogger(logger, "blender"),
	}
}

// inputs resolves the two motion files. Jobs whose stage list omits fetch
// read their sources directly from local paths.
func (b *Blender) inputs(j *job.Job) (string, string, error) {
	if !slices.Contains(j.Stages, job.StageFetch) {
		first, second := strings.TrimSpace(j.Input.Source1), strings.TrimSpace(j.Input.Source2)
		for _, path := range []string{first, second} {
			if path == "" {
				return "", "", services.Wrap(services.ErrValidation, "transform", "prepare", "transform-only jobs need two local input files", nil)
			}
			if _, err := os.Stat(path); err != nil {
				return "", "", services.Wrap(services.ErrValidation, "transform", "prepare", "input unreadable", err)
			}
		}
		return first, second, nil
	}
	dir, err := stage.RequireArtifact(j, job.StageFetch, job.StageTransform)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(dir, job.FetchedFirst), filepath.Join(dir, job.FetchedSecond), nil
}

// OutputPath returns where the blended motion for j is written.
func (b *Blender) OutputPath(j *job.Job) string {
	name := strings.TrimSpace(j.Input.Output)
	if name == "" {
		name = "blend.bvh"
	}
	return filepath.Join(b.workDir, j.ID, string(job.StageTransform), filepath.Base(name))
}

func (b *Blender) Prepare(ctx context.Context, j *job.Job) error {
	if _, _, err := b.inputs(j); err != nil {
		return err
	}
	if j.Input.Ratio < 0 || j.Input.Ratio > 1 {
		return services.Wrap(services.ErrValidation, "transform", "prepare", "ratio must be between 0.0 and 1.0", nil)
	}
	logging.WithContext(ctx, b.logger).Debug("transform prepared",
		logging.Float64("ratio", j.Input.Ratio),
		logging.String("method", j.Input.Method),
	)
	return nil
}

func (b *Blender) Execute(ctx context.Context, j *job.Job) (string, error) {
	first, second, err := b.inputs(j)
	if err != nil {
		return "", err
	}
	output := b.OutputPath(j)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "transform", "create output dir", filepath.Dir(output), err)
	}
	result, err := b.engine.Blend(ctx, blend.Request{
		First:  first,
		Second: second,
		Output: output,
		Ratio:  j.Input.Ratio,
		Method: j.Input.Method,
	})
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, b.logger).Info("motion blended",
		logging.String("output", result.Output),
		logging.Int("frames", result.Frames),
		logging.Int64("size_bytes", result.Bytes),
	)
	return result.Output, nil
}

func (b *Blender) HealthCheck(context.Context) stage.Health {
	const name = "transform"
	if b.engine == nil {
		return stage.Unhealthy(name, "blend engine unavailable")
	}
	if _, err := os.Stat(b.workDir); err != nil {
		return stage.Unhealthy(name, "work_dir: "+err.Error())
	}
	return stage.Healthy(name)
}
