package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMotion = `HIERARCHY
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
Frames: 3
Frame Time: 0.033333
%[1]v %[1]v %[1]v
%[2]v %[2]v %[2]v
%[3]v %[3]v %[3]v
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	publishDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"MAX_RETRIES", "RETRY_BACKOFF_MULTIPLIER", "WORKER_POOL_SIZE", "UPLOAD_TIMEOUT_SECONDS", "GCS_BUCKET", "MAX_UPLOAD_SIZE_MB"} {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		publishDir: filepath.Join(base, "published"),
	}
	cfg := fmt.Sprintf(`[paths]
work_dir = %q
state_dir = %q
log_dir = ""

[retry]
max_retries = 1
base_delay_ms = 1
max_delay_ms = 5
jitter = 0.0

[pool]
worker_pool_size = 2

[fetch]
min_file_size_bytes = 16

[storage]
backend = "local"
local_dir = %q

[logging]
format = "json"
level = "error"
`, filepath.Join(base, "work"), filepath.Join(base, "state"), env.publishDir)
	if err := os.WriteFile(env.configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) writeMotion(t *testing.T, name string, a, b, c float64) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "sources", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(testMotion, a, b, c)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *cliTestEnv) writeDescriptor(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "batch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", env.configPath}, args...)
	code := execute(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
