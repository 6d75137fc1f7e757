package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"blendflow/internal/job"
)

// Checkpoint marks a stage that completed for a job key.
type Checkpoint struct {
	JobKey      string
	JobName     string
	Stage       job.StageName
	RunID       string
	Artifact    string
	CompletedAt time.Time
}

// MarkStageComplete records a successful stage. Re-marking the same stage
// replaces the previous artifact.
func (s *Store) MarkStageComplete(ctx context.Context, cp Checkpoint) error {
	if strings.TrimSpace(cp.JobKey) == "" || cp.Stage == "" {
		return fmt.Errorf("mark stage complete: job key and stage are required")
	}
	completed := cp.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO stage_checkpoints (job_key, stage, job_name, run_id, artifact, completed_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_key, stage) DO UPDATE SET
            job_name = excluded.job_name,
            run_id = excluded.run_id,
            artifact = excluded.artifact,
            completed_at = excluded.completed_at`,
		cp.JobKey,
		string(cp.Stage),
		nullableString(cp.JobName),
		cp.RunID,
		nullableString(cp.Artifact),
		completed.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("mark stage complete: %w", err)
	}
	return nil
}

// CompletedStages returns the artifacts of every completed stage for jobKey.
func (s *Store) CompletedStages(ctx context.Context, jobKey string) (map[job.StageName]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, artifact FROM stage_checkpoints WHERE job_key = ?`, jobKey)
	if err != nil {
		return nil, fmt.Errorf("completed stages: %w", err)
	}
	defer rows.Close()

	out := make(map[job.StageName]string)
	for rows.Next() {
		var stage string
		var artifact sql.NullString
		if err := rows.Scan(&stage, &artifact); err != nil {
			return nil, err
		}
		out[job.StageName(stage)] = artifact.String
	}
	return out, rows.Err()
}

// Forget removes every checkpoint for jobKey.
func (s *Store) Forget(ctx context.Context, jobKey string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM stage_checkpoints WHERE job_key = ?`, jobKey); err != nil {
		return fmt.Errorf("forget checkpoints: %w", err)
	}
	return nil
}

// RecentCheckpoints lists checkpoints newest first.
func (s *Store) RecentCheckpoints(ctx context.Context, limit int) ([]Checkpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_key, job_name, stage, run_id, artifact, completed_at
         FROM stage_checkpoints ORDER BY completed_at DESC, job_key LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var (
			cp        Checkpoint
			name      sql.NullString
			stage     string
			artifact  sql.NullString
			completed string
		)
		if err := rows.Scan(&cp.JobKey, &name, &stage, &cp.RunID, &artifact, &completed); err != nil {
			return nil, err
		}
		cp.JobName = name.String
		cp.Stage = job.StageName(stage)
		cp.Artifact = artifact.String
		if ts, err := parseTimeString(completed); err == nil {
			cp.CompletedAt = ts
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
