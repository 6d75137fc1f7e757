package workflow_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blendflow/internal/batch"
	"blendflow/internal/job"
	"blendflow/internal/testsupport"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// descriptor builds a batch with n jobs named job1..jobN.
func descriptor(t *testing.T, workflowName string, n int) *batch.Descriptor {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "version: \"1.0\"\nworkflow: %s\nupload:\n  folder: blends/\njobs:\n", workflowName)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "  - name: job%d\n    input1: https://example.com/walk%d.bvh\n    input2: https://example.com/run%d.bvh\n    ratio: 0.5\n", i, i, i)
	}
	desc, err := batch.Parse([]byte(b.String()))
	if err != nil {
		t.Fatalf("parse descriptor: %v", err)
	}
	return desc
}

// fileStub returns a handler whose artifacts are real files, so checkpoint
// resume finds them on disk. The fetch stub lays out a directory holding both
// inputs, as the real fetch stage does.
func fileStub(t *testing.T, name string) *testsupport.StubHandler {
	t.Helper()
	dir := t.TempDir()
	return &testsupport.StubHandler{
		Name: name,
		ExecuteFn: func(_ context.Context, j *job.Job, _ int) (string, error) {
			path := filepath.Join(dir, j.ID+"-"+name)
			if name != "fetch" {
				return path, os.WriteFile(path, []byte(name), 0o644)
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return "", err
			}
			for _, input := range []string{job.FetchedFirst, job.FetchedSecond} {
				if err := os.WriteFile(filepath.Join(path, input), []byte(input), 0o644); err != nil {
					return "", err
				}
			}
			return path, nil
		},
	}
}

func uploadStub(fail func(j *job.Job, call int) error) *testsupport.StubHandler {
	return &testsupport.StubHandler{
		Name: "publish",
		ExecuteFn: func(_ context.Context, j *job.Job, call int) (string, error) {
			if fail != nil {
				if err := fail(j, call); err != nil {
					return "", err
				}
			}
			return "gs://bucket/blends/" + j.Input.Output, nil
		},
	}
}

func resultByName(t *testing.T, result *job.BatchResult, name string) job.Result {
	t.Helper()
	for _, r := range result.Jobs {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for job %q", name)
	return job.Result{}
}

func lastOutcome(r job.Result) job.StageOutcome {
	return r.Outcomes[len(r.Outcomes)-1]
}
