package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"blendflow/internal/breaker"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/retry"
	"blendflow/internal/services"
	"blendflow/internal/stage"
	"blendflow/internal/telemetry"
)

// Options wires the executor's collaborators.
type Options struct {
	Policy   retry.Policy
	Breakers *breaker.Registry
	// Limiters maps dependency names to rate limiters. The map must not be
	// mutated after construction.
	Limiters map[string]*rate.Limiter
	Recorder telemetry.Recorder
	Logger   *slog.Logger
	// Sleep overrides the backoff wait; nil uses retry.Sleep.
	Sleep func(context.Context, time.Duration) error
	Now   func() time.Time
}

// Executor runs a single stage for a single job under the retry policy and
// the stage dependency's circuit breaker.
type Executor struct {
	policy   retry.Policy
	breakers *breaker.Registry
	limiters map[string]*rate.Limiter
	recorder telemetry.Recorder
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

// New constructs an executor, filling defaults for optional collaborators.
func New(opts Options) *Executor {
	e := &Executor{
		policy:   opts.Policy,
		breakers: opts.Breakers,
		limiters: opts.Limiters,
		recorder: opts.Recorder,
		logger:   logging.NewComponentLogger(opts.Logger, "executor"),
		sleep:    opts.Sleep,
		now:      opts.Now,
	}
	if e.breakers == nil {
		e.breakers = breaker.NewRegistry(breaker.Settings{FailureThreshold: 5, Cooldown: time.Minute})
	}
	if e.recorder == nil {
		e.recorder = telemetry.Nop{}
	}
	if e.sleep == nil {
		e.sleep = retry.Sleep
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// NewLimiters builds one limiter per dependency with a positive rate.
func NewLimiters(perSecond map[string]float64) map[string]*rate.Limiter {
	limiters := make(map[string]*rate.Limiter, len(perSecond))
	for dep, rps := range perSecond {
		if rps > 0 {
			limiters[dep] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	return limiters
}

// Execute runs st for j until it succeeds, the retry policy gives up, the
// breaker vetoes an attempt, or ctx is cancelled. It never panics on handler
// failure and always returns a populated outcome.
func (e *Executor) Execute(ctx context.Context, st stage.Stage, j *job.Job) job.StageOutcome {
	started := e.now()
	stageCtx := services.WithStage(ctx, string(st.Name))
	stageCtx = services.WithDependency(stageCtx, st.Dependency)
	logger := logging.WithContext(stageCtx, e.logger)

	outcome := job.StageOutcome{Stage: st.Name}
	run := &attemptLog{exec: e, ctx: stageCtx, stage: st, job: j, outcome: &outcome}

	if st.Handler == nil {
		err := services.Wrap(services.ErrConfiguration, string(st.Name), "execute", "stage handler unavailable", nil)
		run.record(1, started, job.OutcomePermanentFailure, err, services.KindValidation)
		return e.finish(stageCtx, logger, st, outcome, job.StageFailed, err, started)
	}

	logger.Debug("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("max_attempts", e.policy.MaxAttempts()),
	)

	if err := st.Handler.Prepare(stageCtx, j); err != nil {
		if ctx.Err() != nil {
			run.record(1, started, job.OutcomeCancelled, err, services.KindCancelled)
			return e.finish(stageCtx, logger, st, outcome, job.StageCancelled, cancelled(st, err), started)
		}
		if services.Classify(err) == services.KindPermanent || services.Classify(err) == services.KindTransient {
			err = services.Wrap(services.ErrValidation, string(st.Name), "prepare", "", err)
		}
		run.record(1, started, job.OutcomePermanentFailure, err, services.KindValidation)
		return e.finish(stageCtx, logger, st, outcome, job.StageFailed, err, started)
	}

	br := e.breakers.Get(st.Dependency)
	limiter := e.limiters[st.Dependency]

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return e.finish(stageCtx, logger, st, outcome, job.StageCancelled, cancelled(st, ctx.Err()), started)
		}

		attemptStart := e.now()
		ticket, ok := br.Allow()
		if !ok {
			err := services.WithHint(
				services.Wrap(services.ErrCircuitOpen, string(st.Name), st.Dependency, "dependency degraded; attempt vetoed", nil),
				"wait for the breaker cooldown and rerun the batch",
			)
			run.record(attempt, attemptStart, job.OutcomeCircuitOpen, err, services.KindCircuitOpen)
			logging.WarnWithContext(logger, "circuit open, stage not attempted", "circuit_open",
				logging.Int(logging.FieldAttempt, attempt),
				logging.String(logging.FieldErrorHint, "wait for the breaker cooldown and rerun the batch"),
				logging.String(logging.FieldImpact, "job fails without consuming retries"),
			)
			return e.finish(stageCtx, logger, st, outcome, job.StageCircuitOpen, err, started)
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				br.Release(ticket)
				if ctx.Err() != nil {
					return e.finish(stageCtx, logger, st, outcome, job.StageCancelled, cancelled(st, err), started)
				}
				err = services.Wrap(services.ErrConfiguration, string(st.Name), st.Dependency, "rate limiter refused attempt", err)
				run.record(attempt, attemptStart, job.OutcomePermanentFailure, err, services.KindValidation)
				return e.finish(stageCtx, logger, st, outcome, job.StageFailed, err, started)
			}
		}

		artifact, timedOut, err := e.invoke(stageCtx, st, j)

		if err == nil {
			br.RecordSuccess(ticket)
			run.record(attempt, attemptStart, job.OutcomeSuccess, nil, services.KindNone)
			outcome.Artifact = artifact
			return e.finish(stageCtx, logger, st, outcome, job.StageSucceeded, nil, started)
		}

		if ctx.Err() != nil {
			br.Release(ticket)
			run.record(attempt, attemptStart, job.OutcomeCancelled, err, services.KindCancelled)
			return e.finish(stageCtx, logger, st, outcome, job.StageCancelled, cancelled(st, err), started)
		}

		if timedOut && !services.IsTransient(err) {
			err = services.Wrap(services.ErrTimeout, string(st.Name), "attempt", fmt.Sprintf("timed out after %s", st.Timeout), err)
		}

		kind := services.Classify(err)
		if services.CountsAgainstDependency(err) {
			br.RecordFailure(ticket)
		} else {
			br.Release(ticket)
		}
		run.record(attempt, attemptStart, attemptOutcome(kind), err, kind)

		decision := e.policy.Next(attempt, err)
		if decision.GiveUp {
			return e.finish(stageCtx, logger, st, outcome, job.StageFailed, err, started)
		}

		logging.WarnWithContext(logger, "stage attempt failed, retrying", "stage_retry",
			logging.Int(logging.FieldAttempt, attempt),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Duration("backoff", decision.Wait),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient dependency failure; retrying automatically"),
			logging.String(logging.FieldImpact, "job delayed by backoff"),
		)

		if err := e.sleep(ctx, decision.Wait); err != nil {
			return e.finish(stageCtx, logger, st, outcome, job.StageCancelled, cancelled(st, err), started)
		}
	}
}

// invoke runs one handler attempt under the stage timeout. timedOut reports
// whether the stage's own deadline, not the caller's, ended the attempt.
func (e *Executor) invoke(ctx context.Context, st stage.Stage, j *job.Job) (string, bool, error) {
	attemptCtx := ctx
	cancel := func() {}
	if st.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, st.Timeout)
	}
	defer cancel()

	artifact, err := st.Handler.Execute(attemptCtx, j)
	timedOut := err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	return artifact, timedOut, err
}

func (e *Executor) finish(ctx context.Context, logger *slog.Logger, st stage.Stage, outcome job.StageOutcome, status job.StageStatus, err error, started time.Time) job.StageOutcome {
	outcome.Status = status
	outcome.Err = err
	outcome.Duration = e.now().Sub(started)
	e.recorder.RecordStage(ctx, outcome, st.Dependency)

	attrs := []logging.Attr{
		logging.Int("attempts", len(outcome.Attempts)),
		logging.Duration("stage_duration", outcome.Duration),
	}
	switch status {
	case job.StageSucceeded:
		logger.Info("stage completed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("artifact", outcome.Artifact),
		)...)...)
	case job.StageCancelled:
		logger.Info("stage cancelled", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "stage_cancelled"),
		)...)...)
	default:
		hint := services.Hint(err)
		if hint == "" {
			hint = "inspect the error and rerun the batch; completed stages are skipped"
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", append(attrs,
			logging.String("status", string(status)),
			logging.String(logging.FieldErrorKind, string(services.Classify(err))),
			logging.String(logging.FieldErrorHint, hint),
			logging.Error(err),
		)...)
	}
	return outcome
}

func cancelled(st stage.Stage, err error) error {
	return services.Wrap(services.ErrCancelled, string(st.Name), "", "batch cancelled", err)
}

func attemptOutcome(kind services.Kind) job.Outcome {
	switch kind {
	case services.KindTransient:
		return job.OutcomeTransientFailure
	case services.KindCancelled:
		return job.OutcomeCancelled
	case services.KindCircuitOpen:
		return job.OutcomeCircuitOpen
	default:
		return job.OutcomePermanentFailure
	}
}

type attemptLog struct {
	exec    *Executor
	ctx     context.Context
	stage   stage.Stage
	job     *job.Job
	outcome *job.StageOutcome
}

func (a *attemptLog) record(number int, started time.Time, outcome job.Outcome, err error, kind services.Kind) {
	attempt := job.Attempt{
		Job:        a.job.ID,
		Stage:      a.stage.Name,
		Dependency: a.stage.Dependency,
		Number:     number,
		StartedAt:  started,
		Elapsed:    a.exec.now().Sub(started),
		Outcome:    outcome,
	}
	if err != nil {
		attempt.Error = err.Error()
	}
	a.outcome.Attempts = append(a.outcome.Attempts, attempt)
	a.exec.recorder.RecordAttempt(a.ctx, attempt, string(kind))
}
