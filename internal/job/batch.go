package job

import "time"

// BatchStatus aggregates per-job statuses.
type BatchStatus string

const (
	BatchSuccess        BatchStatus = "success"
	BatchPartialFailure BatchStatus = "partial_failure"
	BatchFailed         BatchStatus = "failed"
	BatchCancelled      BatchStatus = "cancelled"
)

// BatchResult is read-only after construction.
type BatchResult struct {
	RunID     string
	Mode      string
	Jobs      []Result
	Succeeded int
	Failed    int
	Cancelled int
	Status    BatchStatus
	Duration  time.Duration
}

// NewBatchResult orders results by submission index and derives the
// aggregate counts and status.
func NewBatchResult(runID, mode string, results []Result, cancelled bool, duration time.Duration) *BatchResult {
	ordered := make([]Result, len(results))
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(ordered) {
			ordered[r.Index] = r
		}
	}
	out := &BatchResult{RunID: runID, Mode: mode, Jobs: ordered, Duration: duration}
	for _, r := range ordered {
		switch r.Status {
		case StatusSuccess:
			out.Succeeded++
		case StatusCancelled:
			out.Cancelled++
		default:
			out.Failed++
		}
	}
	switch {
	case cancelled || out.Cancelled > 0:
		out.Status = BatchCancelled
	case out.Failed == 0:
		out.Status = BatchSuccess
	case out.Succeeded == 0:
		out.Status = BatchFailed
	default:
		out.Status = BatchPartialFailure
	}
	return out
}

// Total reports the number of jobs in the batch.
func (b *BatchResult) Total() int {
	if b == nil {
		return 0
	}
	return len(b.Jobs)
}

// ExitCode maps the aggregate status onto the process exit code.
func (b *BatchResult) ExitCode() int {
	if b == nil {
		return 1
	}
	switch b.Status {
	case BatchSuccess:
		return 0
	case BatchCancelled:
		return 130
	default:
		return 1
	}
}
