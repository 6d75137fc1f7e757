package workflow

import (
	"context"
	"log/slog"
	"time"

	"blendflow/internal/breaker"
	"blendflow/internal/checkpoint"
	"blendflow/internal/config"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/retry"
	"blendflow/internal/stage"
	"blendflow/internal/stageexec"
	"blendflow/internal/telemetry"
)

// StageSet bundles the concrete handlers the orchestrator runs.
type StageSet struct {
	Fetcher   stage.Handler
	Blender   stage.Handler
	Publisher stage.Handler
}

// Orchestrator coordinates batch execution.
type Orchestrator struct {
	cfg      *config.Config
	store    *checkpoint.Store
	logger   *slog.Logger
	recorder telemetry.Recorder
	breakers *breaker.Registry
	executor *stageexec.Executor
	workers  int
	now      func() time.Time

	stages map[job.StageName]stage.Stage
}

// Option configures optional Orchestrator behavior.
type Option func(*options)

type options struct {
	recorder telemetry.Recorder
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	workers  int
}

// WithRecorder routes execution events to recorder.
func WithRecorder(recorder telemetry.Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// WithSleep replaces the retry backoff wait (used in tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithClock injects the time source for breakers and durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithWorkers overrides the configured pool size when n is positive.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// New constructs an orchestrator. store may be nil, which disables
// checkpoint resume and attempt history.
func New(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.recorder == nil {
		o.recorder = telemetry.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	workers := cfg.Pool.WorkerPoolSize
	if o.workers > 0 {
		workers = o.workers
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registryOpts := []breaker.Option{breaker.WithLogger(logger), breaker.WithClock(o.now)}
	for name, settings := range cfg.Breaker.Dependencies {
		registryOpts = append(registryOpts, breaker.WithOverride(name, breaker.Settings{
			FailureThreshold: settings.FailureThreshold,
			Cooldown:         time.Duration(settings.CooldownSeconds) * time.Second,
		}))
	}
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.BreakerCooldown(),
	}, registryOpts...)

	executor := stageexec.New(stageexec.Options{
		Policy: retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay(),
			MaxDelay:   cfg.RetryMaxDelay(),
			Multiplier: cfg.Retry.BackoffMultiplier,
			Jitter:     cfg.Retry.Jitter,
		},
		Breakers: breakers,
		Limiters: stageexec.NewLimiters(map[string]float64{
			stage.DependencyAssetSource: cfg.Fetch.RequestsPerSecond,
			stage.DependencyStorage:     cfg.Storage.RequestsPerSecond,
		}),
		Recorder: o.recorder,
		Logger:   logger,
		Sleep:    o.sleep,
		Now:      o.now,
	})

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		recorder: o.recorder,
		breakers: breakers,
		executor: executor,
		workers:  workers,
		now:      o.now,
		stages:   make(map[job.StageName]stage.Stage),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (o *Orchestrator) ConfigureStages(set StageSet) {
	if set.Fetcher != nil {
		o.stages[job.StageFetch] = stage.Stage{
			Name:       job.StageFetch,
			Dependency: stage.DependencyAssetSource,
			Timeout:    o.cfg.FetchTimeout(),
			Handler:    set.Fetcher,
		}
	}
	if set.Blender != nil {
		o.stages[job.StageTransform] = stage.Stage{
			Name:       job.StageTransform,
			Dependency: stage.DependencyMotionBlend,
			Timeout:    o.cfg.TransformTimeout(),
			Handler:    set.Blender,
		}
	}
	if set.Publisher != nil {
		o.stages[job.StagePublish] = stage.Stage{
			Name:       job.StagePublish,
			Dependency: stage.DependencyStorage,
			Timeout:    o.cfg.UploadTimeout(),
			Handler:    set.Publisher,
		}
	}
}

// Breakers exposes the breaker registry for diagnostics.
func (o *Orchestrator) Breakers() *breaker.Registry {
	return o.breakers
}

// Workers reports the pool size runs will use.
func (o *Orchestrator) Workers() int {
	return o.workers
}
