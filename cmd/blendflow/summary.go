package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"blendflow/internal/job"
	"blendflow/internal/telemetry"
)

const (
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

var titleCaser = cases.Title(language.Und)

// label turns snake_case identifiers into display text ("partial_failure"
// becomes "Partial Failure").
func label(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func renderBatchSummary(out io.Writer, result *job.BatchResult, summary telemetry.Summary, colorize bool) {
	if result == nil {
		return
	}
	status := label(string(result.Status))
	if colorize {
		color := ansiRed
		if result.Status == job.BatchSuccess {
			color = ansiGreen
		}
		status = color + status + ansiReset
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Batch %s (%s)\n", status, label(result.Mode))
	fmt.Fprintf(out, "Run ID: %s\n", result.RunID)
	fmt.Fprintf(out, "Jobs: %d total, %d succeeded, %d failed, %d cancelled in %s\n",
		result.Total(), result.Succeeded, result.Failed, result.Cancelled, result.Duration.Round(time.Millisecond))

	rows := make([][]string, 0, len(result.Jobs))
	for _, r := range result.Jobs {
		rows = append(rows, []string{
			strconv.Itoa(r.Index + 1),
			r.Name,
			label(string(r.Status)),
			stageSummary(r.Outcomes),
			strconv.Itoa(attemptCount(r.Outcomes)),
			resultDetail(r),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Job", "Status", "Stages", "Attempts", "Output / Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	if len(summary.Counters) > 0 {
		fmt.Fprintf(out, "Attempts: %d succeeded, %d transient failures, %d permanent failures, %d circuit open\n",
			summary.Count("blendflow.stage.attempts", map[string]string{"outcome": string(job.OutcomeSuccess)}),
			summary.Count("blendflow.stage.attempts", map[string]string{"outcome": string(job.OutcomeTransientFailure)}),
			summary.Count("blendflow.stage.attempts", map[string]string{"outcome": string(job.OutcomePermanentFailure)}),
			summary.Count("blendflow.stage.attempts", map[string]string{"outcome": string(job.OutcomeCircuitOpen)}),
		)
	}
}

func stageSummary(outcomes []job.StageOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%s:%s", o.Stage, o.Status))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func attemptCount(outcomes []job.StageOutcome) int {
	total := 0
	for _, o := range outcomes {
		total += len(o.Attempts)
	}
	return total
}

func resultDetail(r job.Result) string {
	if r.Status == job.StatusSuccess {
		return r.Output
	}
	reason := strings.TrimSpace(r.Reason)
	const limit = 80
	if len(reason) > limit {
		reason = reason[:limit-3] + "..."
	}
	return reason
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
