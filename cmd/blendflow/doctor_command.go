package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"blendflow/internal/checkpoint"
	"blendflow/internal/logging"
	"blendflow/internal/preflight"
	"blendflow/internal/stage"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, storage, stage handlers, and breakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			checks := preflight.RunAll(cmd.Context(), cfg)

			store, err := checkpoint.Open(cfg)
			if err != nil {
				checks = append(checks, preflight.Result{Name: "Checkpoint store", Detail: err.Error()})
			} else {
				defer store.Close()
				checks = append(checks, preflight.CheckStateStore(cmd.Context(), store))
			}

			var health []stage.Health
			p, err := newPipeline(cmd.Context(), cfg, nil, logging.NewNop(), true)
			if err != nil {
				checks = append(checks, preflight.Result{Name: "Storage", Detail: err.Error()})
			} else {
				checks = append(checks, preflight.CheckStorage(cmd.Context(), p.backend))
				health = p.orch.StageHealth(cmd.Context())
			}

			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			rows := make([][]string, 0, len(checks)+len(health))
			failures := 0
			for _, c := range checks {
				if !c.Passed {
					failures++
				}
				rows = append(rows, []string{c.Name, passFail(c.Passed), c.Detail})
			}
			for _, h := range health {
				if !h.Ready {
					failures++
				}
				rows = append(rows, []string{"Stage " + h.Name, passFail(h.Ready), h.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if p != nil {
				breakerRows := make([][]string, 0, 3)
				for _, dep := range []string{stage.DependencyAssetSource, stage.DependencyMotionBlend, stage.DependencyStorage} {
					snap := p.orch.Breakers().Get(dep).Snapshot()
					breakerRows = append(breakerRows, []string{
						dep,
						label(string(snap.State)),
						strconv.Itoa(snap.Threshold),
						snap.Cooldown.String(),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Dependency", "Breaker", "Threshold", "Cooldown"},
					breakerRows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
			}

			if failures > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d checks failed", failures)}
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func passFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
