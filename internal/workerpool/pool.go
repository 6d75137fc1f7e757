package workerpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/telemetry"
)

// Runner drives one job to a terminal state. It must not retain j after
// returning.
type Runner func(ctx context.Context, j *job.Job) job.Result

// Report is what the pool hands back once every job is terminal.
type Report struct {
	Results   []job.Result
	Cancelled bool
}

// Pool admits jobs up to a fixed concurrency.
type Pool struct {
	size     int
	recorder telemetry.Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	busy int
}

// New constructs a pool. Sizes below one are treated as one.
func New(size int, recorder telemetry.Recorder, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	return &Pool{
		size:     size,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "workerpool"),
	}
}

// Size reports the concurrency limit.
func (p *Pool) Size() int {
	return p.size
}

// Run executes jobs in submission order with at most Size running at once. It
// returns only after every job is terminal.
func (p *Pool) Run(ctx context.Context, jobs []*job.Job, run Runner) Report {
	if len(jobs) == 0 {
		return Report{Cancelled: ctx.Err() != nil}
	}

	sem := semaphore.NewWeighted(int64(p.size))
	results := make(chan job.Result, len(jobs))
	var wg sync.WaitGroup
	var cancelled atomic.Bool

	p.track(0)

	go func() {
		for i, j := range jobs {
			if err := sem.Acquire(ctx, 1); err != nil {
				cancelled.Store(true)
				p.logger.Info("admission stopped",
					logging.Int("not_admitted", len(jobs)-i),
					logging.String(logging.FieldEventType, "pool_admission_stopped"),
				)
				for _, pending := range jobs[i:] {
					results <- neverAdmitted(pending)
				}
				break
			}
			p.track(1)

			wg.Add(1)
			go func(j *job.Job) {
				defer wg.Done()
				defer func() {
					p.track(-1)
					sem.Release(1)
				}()
				results <- run(ctx, j)
			}(j)
		}
		wg.Wait()
		close(results)
	}()

	collected := make([]job.Result, 0, len(jobs))
	for result := range results {
		collected = append(collected, result)
	}
	return Report{Results: collected, Cancelled: cancelled.Load() || ctx.Err() != nil}
}

// track adjusts the in-flight count and reports it. Queue depth counts jobs
// admitted but not yet terminal, so it moves with utilization.
func (p *Pool) track(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy += delta
	p.recorder.SetPoolUsage(p.busy, p.size)
	p.recorder.SetQueueDepth(p.busy)
}

func neverAdmitted(j *job.Job) job.Result {
	j.State = job.StateCancelled
	j.Status = job.StatusCancelled
	j.Reason = "batch cancelled before the job was admitted"
	return j.Snapshot()
}
