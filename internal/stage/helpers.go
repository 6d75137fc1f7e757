package stage

import (
	"os"
	"strings"

	"blendflow/internal/job"
	"blendflow/internal/services"
)

// RequireArtifact returns the artifact an earlier stage produced, failing with
// a validation error when it is missing from the job or from disk.
func RequireArtifact(j *job.Job, from job.StageName, consumer job.StageName) (string, error) {
	path := strings.TrimSpace(j.Artifact(from))
	if path == "" {
		return "", services.Wrap(
			services.ErrValidation, string(consumer), "prepare",
			"missing "+string(from)+" artifact; rerun without --fresh or in full mode", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(
			services.ErrValidation, string(consumer), "prepare",
			string(from)+" artifact unreadable", err)
	}
	return path, nil
}
