package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"blendflow/internal/checkpoint"
	"blendflow/internal/services/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCredentials verifies that an explicitly configured service account
// file is readable. Application default credentials from gcloud or the
// metadata server are accepted without inspection.
func CheckCredentials() Result {
	const name = "GCS credentials"
	path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	if path == "" {
		return Result{Name: name, Passed: true, Detail: "application default credentials"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unreadable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckStorage asks the publish backend to confirm its destination exists.
// It uses a 10-second timeout and a single attempt.
func CheckStorage(ctx context.Context, backend storage.Publisher) Result {
	const name = "Storage"
	if backend == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := backend.Check(checkCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: check timed out)", backend.Describe())}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", backend.Describe(), err)}
	}
	return Result{Name: name, Passed: true, Detail: backend.Describe()}
}

// CheckStateStore reports the checkpoint database schema and row counts.
func CheckStateStore(ctx context.Context, store *checkpoint.Store) Result {
	const name = "Checkpoint store"
	if store == nil {
		return Result{Name: name, Detail: "not open"}
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", store.Path(), err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (schema v%d, %d checkpoints, %d attempts)", health.Path, health.SchemaVersion, health.Checkpoints, health.Attempts),
	}
}
