package stage

import (
	"context"
	"time"

	"blendflow/internal/job"
)

// Handler describes the contract the executor needs from each stage's
// external collaborator. Prepare validates inputs and is never retried.
// Execute performs one attempt and returns the artifact it produced.
// Handlers are shared by every job of a batch and must be safe for
// concurrent use; per-job logging context travels on ctx.
type Handler interface {
	Prepare(context.Context, *job.Job) error
	Execute(context.Context, *job.Job) (string, error)
	HealthCheck(context.Context) Health
}

// Stage binds a named step to the dependency it calls and its handler.
type Stage struct {
	Name       job.StageName
	Dependency string
	Timeout    time.Duration
	Handler    Handler
}

// Dependency names guarded by circuit breakers and rate limiters.
const (
	DependencyAssetSource = "asset-source"
	DependencyMotionBlend = "motion-blend"
	DependencyStorage     = "storage-upload"
)
