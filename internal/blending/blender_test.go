package blending_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blendflow/internal/blending"
	"blendflow/internal/job"
	"blendflow/internal/services"
	"blendflow/internal/services/blend"
	"blendflow/internal/testsupport"
)

const motionA = `HIERARCHY
ROOT Hips
{
	OFFSET 0.0 0.0 0.0
	CHANNELS 3 Xposition Yposition Zposition
	End Site
	{
		OFFSET 0.0 1.0 0.0
	}
}
MOTION
Frames: 2
Frame Time: 0.033333
0.0 0.0 0.0
1.0 1.0 1.0
`

const motionB = `HIERARCHY
ROOT Hips
{
	OFFSET 0.0 0.0 0.0
	CHANNELS 3 Xposition Yposition Zposition
	End Site
	{
		OFFSET 0.0 1.0 0.0
	}
}
MOTION
Frames: 2
Frame Time: 0.033333
2.0 2.0 2.0
3.0 3.0 3.0
`

func writeFetched(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, job.FetchedFirst), []byte(motionA), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, job.FetchedSecond), []byte(motionB), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBlenderUsesFetchArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetchDir := filepath.Join(cfg.Paths.WorkDir, "key1", "fetch")
	writeFetched(t, fetchDir)

	j := job.New("key1", 0, job.Input{Ratio: 0.5, Method: blend.MethodLinear, Output: "walk_run_blend.bvh"}, job.ModeFull.Stages())
	j.Artifacts[job.StageFetch] = fetchDir

	blender := blending.NewBlender(cfg, nil)
	if err := blender.Prepare(context.Background(), j); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	out, err := blender.Execute(context.Background(), j)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := filepath.Join(cfg.Paths.WorkDir, "key1", "transform", "walk_run_blend.bvh"); out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	motion, err := blend.Parse(f)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(motion.Frames) != 2 || motion.Frames[0][0] != 1 || motion.Frames[1][0] != 2 {
		t.Fatalf("unexpected blended frames %v", motion.Frames)
	}
}

func TestBlenderTransformOnlyReadsLocalSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := filepath.Join(testsupport.BaseDir(cfg), "local")
	writeFetched(t, dir)
	j := job.New("key2", 0, job.Input{
		Source1: filepath.Join(dir, job.FetchedFirst),
		Source2: filepath.Join(dir, job.FetchedSecond),
		Ratio:   0.25,
		Output:  "out.bvh",
	}, job.ModeTransformOnly.Stages())

	blender := blending.NewBlender(cfg, nil)
	if err := blender.Prepare(context.Background(), j); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := blender.Execute(context.Background(), j); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestBlenderPrepareRequiresFetchArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := job.New("key3", 0, job.Input{Ratio: 0.5}, job.ModeFull.Stages())
	err := blending.NewBlender(cfg, nil).Prepare(context.Background(), j)
	if services.Classify(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBlenderModelMethodsFailPermanently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetchDir := filepath.Join(cfg.Paths.WorkDir, "key4", "fetch")
	writeFetched(t, fetchDir)
	j := job.New("key4", 0, job.Input{Ratio: 0.5, Method: blend.MethodSNN, Output: "x.bvh"}, job.ModeFull.Stages())
	j.Artifacts[job.StageFetch] = fetchDir

	_, err := blending.NewBlender(cfg, nil).Execute(context.Background(), j)
	if err == nil || services.IsTransient(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if services.Hint(err) == "" {
		t.Fatal("expected hint on model-backed method failure")
	}
}
