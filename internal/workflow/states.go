package workflow

import (
	"fmt"

	"blendflow/internal/job"
)

// transitions lists the states reachable from each non-terminal state.
// Resumed jobs may enter the first stage that still has work, so pending
// reaches every running state.
var transitions = map[job.State][]job.State{
	job.StatePending: {
		job.StateFetchRunning, job.StateTransformRunning, job.StatePublishRunning,
		job.StateDone, job.StateFailed, job.StateCancelled,
	},
	job.StateFetchRunning: {
		job.StateTransformRunning, job.StateDone, job.StateFailed, job.StateCancelled,
	},
	job.StateTransformRunning: {
		job.StatePublishRunning, job.StateDone, job.StateFailed, job.StateCancelled,
	},
	job.StatePublishRunning: {
		job.StateDone, job.StateFailed, job.StateCancelled,
	},
}

// canTransition reports whether a job may move from one state to another.
func canTransition(from, to job.State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func transition(j *job.Job, to job.State) error {
	if !canTransition(j.State, to) {
		return fmt.Errorf("invalid job transition %s -> %s", j.State, to)
	}
	j.State = to
	return nil
}
