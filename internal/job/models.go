package job

import (
	"time"
)

// StageName identifies one step of the per-job workflow.
type StageName string

const (
	StageFetch     StageName = "fetch"
	StageTransform StageName = "transform"
	StagePublish   StageName = "publish"
)

// State tracks where a job sits in its stage state machine.
type State string

const (
	StatePending          State = "pending"
	StateFetchRunning     State = "fetch_running"
	StateTransformRunning State = "transform_running"
	StatePublishRunning   State = "publish_running"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// RunningState maps a stage to the state a job occupies while it executes.
func RunningState(stage StageName) State {
	switch stage {
	case StageFetch:
		return StateFetchRunning
	case StageTransform:
		return StateTransformRunning
	case StagePublish:
		return StatePublishRunning
	default:
		return StatePending
	}
}

// Outcome classifies a single attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
	OutcomeCircuitOpen      Outcome = "circuit_open"
	OutcomeCancelled        Outcome = "cancelled"
)

// Attempt records one try of a stage. Attempts are immutable once appended.
type Attempt struct {
	Job        string
	Stage      StageName
	Dependency string
	Number     int
	StartedAt  time.Time
	Elapsed    time.Duration
	Outcome    Outcome
	Error      string
}

// StageStatus is the final verdict for one stage invocation.
type StageStatus string

const (
	StageSucceeded   StageStatus = "succeeded"
	StageFailed      StageStatus = "failed"
	StageCircuitOpen StageStatus = "circuit_open"
	StageCancelled   StageStatus = "cancelled"
	StageSkipped     StageStatus = "skipped"
)

// StageOutcome summarises one stage invocation, including every attempt made.
type StageOutcome struct {
	Stage    StageName
	Status   StageStatus
	Attempts []Attempt
	Artifact string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether later stages may run.
func (o StageOutcome) Succeeded() bool {
	return o.Status == StageSucceeded || o.Status == StageSkipped
}

// Status is the terminal status for a job.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Input carries the descriptor fields a job's stages consume.
type Input struct {
	Name     string
	Source1  string
	Source2  string
	Ratio    float64
	Method   string
	Output   string
	Folder   string
	Metadata map[string]string
}

// Job is one independent unit of work in a batch. A job is owned by exactly
// one goroutine while it executes.
type Job struct {
	ID        string
	Index     int
	Input     Input
	Stages    []StageName
	State     State
	Status    Status
	Outcomes  []StageOutcome
	Artifacts map[StageName]string
	Reason    string
	StartedAt time.Time
	Finished  time.Time
}

// New constructs a pending job.
func New(id string, index int, input Input, stages []StageName) *Job {
	copied := make([]StageName, len(stages))
	copy(copied, stages)
	return &Job{
		ID:        id,
		Index:     index,
		Input:     input,
		Stages:    copied,
		State:     StatePending,
		Artifacts: make(map[StageName]string),
	}
}

// Artifact returns the artifact produced by the given stage, if any.
func (j *Job) Artifact(stage StageName) string {
	if j == nil || j.Artifacts == nil {
		return ""
	}
	return j.Artifacts[stage]
}

// Attempts flattens the attempt history across all stages in order.
func (j *Job) Attempts() []Attempt {
	if j == nil {
		return nil
	}
	var out []Attempt
	for _, outcome := range j.Outcomes {
		out = append(out, outcome.Attempts...)
	}
	return out
}

// Result is the read-only per-job view placed in a batch result.
type Result struct {
	JobID    string
	Index    int
	Name     string
	Status   Status
	State    State
	Reason   string
	Outcomes []StageOutcome
	Output   string
	Duration time.Duration
}

// Snapshot captures the job's terminal view.
func (j *Job) Snapshot() Result {
	outcomes := make([]StageOutcome, len(j.Outcomes))
	copy(outcomes, j.Outcomes)
	var output string
	if len(j.Stages) > 0 {
		output = j.Artifact(j.Stages[len(j.Stages)-1])
	}
	var duration time.Duration
	if !j.StartedAt.IsZero() && !j.Finished.IsZero() {
		duration = j.Finished.Sub(j.StartedAt)
	}
	return Result{
		JobID:    j.ID,
		Index:    j.Index,
		Name:     j.Input.Name,
		Status:   j.Status,
		State:    j.State,
		Reason:   j.Reason,
		Outcomes: outcomes,
		Output:   output,
		Duration: duration,
	}
}

// Fetched input file names inside the fetch stage's artifact directory.
const (
	FetchedFirst  = "input1.bvh"
	FetchedSecond = "input2.bvh"
)
