package testsupport

import (
	"context"
	"sync"
	"sync/atomic"

	"blendflow/internal/job"
	"blendflow/internal/stage"
)

// StubHandler is a scriptable stage handler. ExecuteFn receives the 1-based
// call number across all jobs.
type StubHandler struct {
	Name      string
	PrepareFn func(context.Context, *job.Job) error
	ExecuteFn func(ctx context.Context, j *job.Job, call int) (string, error)

	calls atomic.Int64

	mu      sync.Mutex
	perJob  map[string]int
	running atomic.Int64
	peak    atomic.Int64
}

func (h *StubHandler) Prepare(ctx context.Context, j *job.Job) error {
	if h.PrepareFn != nil {
		return h.PrepareFn(ctx, j)
	}
	return nil
}

func (h *StubHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	call := int(h.calls.Add(1))
	h.mu.Lock()
	if h.perJob == nil {
		h.perJob = make(map[string]int)
	}
	h.perJob[j.ID]++
	h.mu.Unlock()

	now := h.running.Add(1)
	defer h.running.Add(-1)
	for {
		peak := h.peak.Load()
		if now <= peak || h.peak.CompareAndSwap(peak, now) {
			break
		}
	}

	if h.ExecuteFn != nil {
		return h.ExecuteFn(ctx, j, call)
	}
	return "/artifacts/" + j.ID + "/" + h.Name, nil
}

func (h *StubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.Name)
}

// Calls returns the total number of Execute invocations.
func (h *StubHandler) Calls() int {
	return int(h.calls.Load())
}

// CallsFor returns the Execute invocations for one job.
func (h *StubHandler) CallsFor(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perJob[jobID]
}

// Peak returns the highest number of concurrent Execute calls observed.
func (h *StubHandler) Peak() int {
	return int(h.peak.Load())
}
