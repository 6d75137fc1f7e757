package main

import (
	"context"
	"log/slog"

	"blendflow/internal/blending"
	"blendflow/internal/checkpoint"
	"blendflow/internal/config"
	"blendflow/internal/fetching"
	"blendflow/internal/publishing"
	"blendflow/internal/services/storage"
	"blendflow/internal/workflow"
)

type pipeline struct {
	orch    *workflow.Orchestrator
	backend storage.Publisher
}

// newPipeline wires the stage handlers into an orchestrator. The publish
// backend is only opened when withPublish is set, so runs that never publish
// do not need storage credentials.
func newPipeline(ctx context.Context, cfg *config.Config, store *checkpoint.Store, logger *slog.Logger, withPublish bool, opts ...workflow.Option) (*pipeline, error) {
	orch := workflow.New(cfg, store, logger, opts...)
	set := workflow.StageSet{
		Fetcher: fetching.NewFetcher(cfg, logger),
		Blender: blending.NewBlender(cfg, logger),
	}
	p := &pipeline{orch: orch}
	if withPublish {
		backend, err := publishing.OpenBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		set.Publisher = publishing.NewPublisherWithBackend(backend, logger)
		p.backend = backend
	}
	orch.ConfigureStages(set)
	return p, nil
}
