package services

import "context"

type contextKey string

const (
	jobIDKey      contextKey = "job_id"
	jobNameKey    contextKey = "job_name"
	stageKey      contextKey = "stage"
	dependencyKey contextKey = "dependency"
	runIDKey      contextKey = "run_id"
)

// WithJobID annotates context with the batch job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobName annotates context with the descriptor's job name.
func WithJobName(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, jobNameKey, name)
}

// JobNameFromContext extracts the job name if present.
func JobNameFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobNameKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithDependency annotates context with the external dependency a stage calls.
func WithDependency(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, dependencyKey, name)
}

// DependencyFromContext returns the dependency name if present.
func DependencyFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(dependencyKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the batch run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
