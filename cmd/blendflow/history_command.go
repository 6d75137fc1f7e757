package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blendflow/internal/checkpoint"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jobKey string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent checkpoints, or the attempt log for one job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if key := strings.TrimSpace(jobKey); key != "" {
				attempts, err := store.History(cmd.Context(), key, limit)
				if err != nil {
					return err
				}
				if len(attempts) == 0 {
					fmt.Fprintf(out, "No attempts recorded for job %s\n", key)
					return nil
				}
				rows := make([][]string, 0, len(attempts))
				for _, a := range attempts {
					rows = append(rows, []string{
						a.StartedAt.Local().Format(time.DateTime),
						string(a.Stage),
						strconv.Itoa(a.Number),
						label(string(a.Outcome)),
						a.Elapsed.Round(time.Millisecond).String(),
						a.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Started", "Stage", "Attempt", "Outcome", "Elapsed", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			}

			checkpoints, err := store.RecentCheckpoints(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(checkpoints) == 0 {
				fmt.Fprintln(out, "No checkpoints recorded")
				return nil
			}
			rows := make([][]string, 0, len(checkpoints))
			for _, cp := range checkpoints {
				rows = append(rows, []string{
					cp.CompletedAt.Local().Format(time.DateTime),
					cp.JobKey,
					cp.JobName,
					string(cp.Stage),
					cp.Artifact,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Completed", "Job Key", "Job", "Stage", "Artifact"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	cmd.Flags().StringVar(&jobKey, "job", "", "Show the attempt log for this job key")
	return cmd
}
