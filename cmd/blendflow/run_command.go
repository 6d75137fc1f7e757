package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"blendflow/internal/batch"
	"blendflow/internal/checkpoint"
	"blendflow/internal/job"
	"blendflow/internal/logging"
	"blendflow/internal/preflight"
	"blendflow/internal/telemetry"
	"blendflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var fresh bool
	var runID string

	cmd := &cobra.Command{
		Use:   "run BATCH",
		Short: "Execute a batch descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers < 0 {
				return fmt.Errorf("--workers must be positive")
			}
			out := cmd.OutOrStdout()

			desc, err := batch.Load(args[0])
			if err != nil {
				printValidation(cmd.ErrOrStderr(), err)
				return &exitError{code: 1}
			}

			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				for _, r := range failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", r.Name, r.Detail)
				}
				return &exitError{code: 1, err: errors.New("preflight checks failed; run `blendflow doctor` for details")}
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another blendflow run holds %s", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := checkpoint.Open(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}
			defer store.Close()

			metrics, err := telemetry.NewMetrics()
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() { _ = metrics.Shutdown(context.Background()) }()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			p, err := newPipeline(signalCtx, cfg, store, logger, desc.Mode().Includes(job.StagePublish),
				workflow.WithRecorder(metrics),
				workflow.WithWorkers(workers),
			)
			if err != nil {
				return err
			}

			result, err := p.orch.Run(signalCtx, desc, workflow.RunOptions{Fresh: fresh, RunID: strings.TrimSpace(runID)})
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			summary, err := metrics.Collect(context.Background())
			if err != nil {
				logger.Warn("telemetry collection failed", logging.Error(err))
			}
			renderBatchSummary(out, result, summary, shouldColorize(out))

			if code := result.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override worker_pool_size for this run")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore checkpoints and run every stage again")
	cmd.Flags().StringVar(&runID, "run-id", "", "Correlation id for this run (default: random UUID)")
	return cmd
}
