package workflow

import (
	"testing"

	"blendflow/internal/job"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to job.State
		ok       bool
	}{
		{job.StatePending, job.StateFetchRunning, true},
		{job.StateFetchRunning, job.StateTransformRunning, true},
		{job.StateTransformRunning, job.StatePublishRunning, true},
		{job.StatePublishRunning, job.StateDone, true},
		{job.StatePending, job.StatePublishRunning, true},
		{job.StateTransformRunning, job.StateFetchRunning, false},
		{job.StateDone, job.StateFailed, false},
		{job.StateFailed, job.StateFetchRunning, false},
		{job.StateCancelled, job.StateDone, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTransitionRejectsLeavingTerminal(t *testing.T) {
	j := job.New("k", 0, job.Input{}, nil)
	if err := transition(j, job.StateDone); err != nil {
		t.Fatalf("pending -> done: %v", err)
	}
	if err := transition(j, job.StateFetchRunning); err == nil {
		t.Fatal("expected error leaving done")
	}
	if j.State != job.StateDone {
		t.Fatalf("state changed to %s", j.State)
	}
}
