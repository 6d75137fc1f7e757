package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"blendflow/internal/batch"
	"blendflow/internal/checkpoint"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/services"
	"blendflow/internal/workerpool"
)

// RunOptions tunes a single batch run.
type RunOptions struct {
	// Fresh discards checkpoints for the batch's jobs before running.
	Fresh bool
	// RunID overrides the generated correlation id.
	RunID string
}

// Run validates desc and executes every job it describes. A validation or
// configuration problem aborts before any job starts and is returned as an
// error; per-job failures are reported in the BatchResult instead.
func (o *Orchestrator) Run(ctx context.Context, desc *batch.Descriptor, opts RunOptions) (*job.BatchResult, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	mode := desc.Mode()
	stages := mode.Stages()
	for _, name := range stages {
		if _, ok := o.stages[name]; !ok {
			return nil, services.Wrap(services.ErrConfiguration, string(name), "configure",
				fmt.Sprintf("no handler configured for %s stage", name), nil)
		}
	}

	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	inputs := desc.Inputs()
	jobs := make([]*job.Job, 0, len(inputs))
	restored := make(map[string]map[job.StageName]bool, len(inputs))
	for i, input := range inputs {
		j := job.New(JobKey(input), i, input, stages)
		done, err := o.restore(ctx, j, opts.Fresh)
		if err != nil {
			return nil, err
		}
		restored[j.ID] = done
		jobs = append(jobs, j)
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("mode", string(mode)),
		logging.Int("jobs", len(jobs)),
		logging.Int("workers", o.workers),
		logging.Bool("fresh", opts.Fresh),
	)

	started := o.now()
	pool := workerpool.New(o.workers, o.recorder, logger)
	report := pool.Run(ctx, jobs, func(ctx context.Context, j *job.Job) job.Result {
		return o.runJob(ctx, j, restored[j.ID])
	})
	result := job.NewBatchResult(runID, string(mode), report.Results, report.Cancelled, o.now().Sub(started))

	o.logSummary(logger, result)
	return result, nil
}

// restore loads checkpoints for j and marks the leading run of completed
// stages as done. A checkpoint whose local artifact has vanished, and every
// stage after it, runs again.
func (o *Orchestrator) restore(ctx context.Context, j *job.Job, fresh bool) (map[job.StageName]bool, error) {
	done := make(map[job.StageName]bool)
	if o.store == nil {
		return done, nil
	}
	if fresh {
		if err := o.store.Forget(ctx, j.ID); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "forget checkpoints", j.ID, err)
		}
		return done, nil
	}
	completed, err := o.store.CompletedStages(ctx, j.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "load checkpoints", j.ID, err)
	}
	for _, name := range j.Stages {
		artifact, ok := completed[name]
		if !ok || !artifactPresent(name, artifact) {
			break
		}
		j.Artifacts[name] = artifact
		done[name] = true
	}
	return done, nil
}

// artifactPresent checks that a local stage artifact still exists. A fetch
// artifact is a directory that must still hold both inputs. Publish artifacts
// are remote URIs and are trusted.
func artifactPresent(name job.StageName, artifact string) bool {
	if strings.TrimSpace(artifact) == "" {
		return false
	}
	switch name {
	case job.StagePublish:
		return true
	case job.StageFetch:
		for _, input := range []string{job.FetchedFirst, job.FetchedSecond} {
			if _, err := os.Stat(filepath.Join(artifact, input)); err != nil {
				return false
			}
		}
		return true
	}
	_, err := os.Stat(artifact)
	return err == nil
}

// runJob walks j through its stages. It owns j until it returns.
func (o *Orchestrator) runJob(ctx context.Context, j *job.Job, restored map[job.StageName]bool) job.Result {
	ctx = services.WithJobID(ctx, j.ID)
	ctx = services.WithJobName(ctx, j.Input.Name)
	logger := logging.WithContext(ctx, o.logger)
	runID, _ := services.RunIDFromContext(ctx)
	j.StartedAt = o.now()

	for _, name := range j.Stages {
		if restored[name] {
			j.Outcomes = append(j.Outcomes, job.StageOutcome{
				Stage:    name,
				Status:   job.StageSkipped,
				Artifact: j.Artifacts[name],
			})
			logger.Info("stage skipped, checkpoint found",
				logging.String(logging.FieldStage, string(name)),
				logging.String(logging.FieldEventType, "stage_skipped"),
			)
			continue
		}
		if ctx.Err() != nil {
			o.finishJob(logger, j, job.StateCancelled, job.StatusCancelled, "batch cancelled before "+string(name))
			return j.Snapshot()
		}
		if err := transition(j, job.RunningState(name)); err != nil {
			o.finishJob(logger, j, job.StateFailed, job.StatusFailed, err.Error())
			return j.Snapshot()
		}

		outcome := o.executor.Execute(ctx, o.stages[name], j)
		j.Outcomes = append(j.Outcomes, outcome)
		o.persistAttempts(ctx, logger, runID, outcome)

		switch outcome.Status {
		case job.StageSucceeded:
			j.Artifacts[name] = outcome.Artifact
			o.persistCheckpoint(ctx, logger, runID, j, name, outcome.Artifact)
		case job.StageCancelled:
			o.finishJob(logger, j, job.StateCancelled, job.StatusCancelled, reason(name, outcome.Err))
			return j.Snapshot()
		default:
			o.finishJob(logger, j, job.StateFailed, job.StatusFailed, reason(name, outcome.Err))
			return j.Snapshot()
		}
	}

	o.finishJob(logger, j, job.StateDone, job.StatusSuccess, "")
	return j.Snapshot()
}

func (o *Orchestrator) finishJob(logger *slog.Logger, j *job.Job, state job.State, status job.Status, why string) {
	if err := transition(j, state); err != nil {
		// Terminal states are absorbing; keep whatever the job already reached.
		logging.ErrorWithContext(logger, "job transition rejected", "job_transition_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "report this run; job state table violated"),
		)
	}
	j.Status = status
	j.Reason = why
	j.Finished = o.now()
	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Duration("job_duration", j.Finished.Sub(j.StartedAt)),
	}
	switch status {
	case job.StatusSuccess:
		logger.Info("job completed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("output", j.Artifact(j.Stages[len(j.Stages)-1])),
		)...)...)
	case job.StatusCancelled:
		logger.Info("job cancelled", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "job_cancelled"),
		)...)...)
	default:
		logging.WarnWithContext(logger, "job failed", "job_failed", append(attrs,
			logging.String("reason", why),
			logging.String(logging.FieldImpact, "remaining jobs continue"),
		)...)
	}
}

func reason(name job.StageName, err error) string {
	if err == nil {
		return string(name) + " failed"
	}
	return err.Error()
}

// persistAttempts appends the stage's attempts to the history table.
// Persistence uses a detached context so a cancelled batch still records what
// it did.
func (o *Orchestrator) persistAttempts(ctx context.Context, logger *slog.Logger, runID string, outcome job.StageOutcome) {
	if o.store == nil || len(outcome.Attempts) == 0 {
		return
	}
	if err := o.store.RecordAttempts(context.WithoutCancel(ctx), runID, outcome.Attempts); err != nil {
		logging.WarnWithContext(logger, "failed to record attempt history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "blendflow history will miss this stage"),
		)
	}
}

func (o *Orchestrator) persistCheckpoint(ctx context.Context, logger *slog.Logger, runID string, j *job.Job, name job.StageName, artifact string) {
	if o.store == nil {
		return
	}
	err := o.store.MarkStageComplete(context.WithoutCancel(ctx), checkpoint.Checkpoint{
		JobKey:      j.ID,
		JobName:     j.Input.Name,
		Stage:       name,
		RunID:       runID,
		Artifact:    artifact,
		CompletedAt: o.now(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to record checkpoint", "checkpoint_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a rerun repeats this stage"),
		)
	}
}

func (o *Orchestrator) logSummary(logger *slog.Logger, result *job.BatchResult) {
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.String("status", string(result.Status)),
		logging.Int("total", result.Total()),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("cancelled", result.Cancelled),
		logging.Duration("batch_duration", result.Duration),
	)
	for _, snap := range o.breakers.Snapshots() {
		logger.Debug("breaker statistics",
			logging.String(logging.FieldDependency, snap.Name),
			logging.String("state", string(snap.State)),
			logging.Int64("requests", snap.Stats.Requests),
			logging.Int64("failures", snap.Stats.Failures),
			logging.Int64("successes", snap.Stats.Successes),
			logging.Int64("rejections", snap.Stats.Rejections),
			logging.Int64("state_changes", snap.Stats.StateChanges),
		)
	}
}
