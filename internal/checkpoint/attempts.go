package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blendflow/internal/job"
)

// AttemptRecord is a persisted attempt tagged with the run that made it.
type AttemptRecord struct {
	RunID string
	job.Attempt
}

// RecordAttempts appends the attempts of one stage invocation in a single
// transaction.
func (s *Store) RecordAttempts(ctx context.Context, runID string, attempts []job.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin attempts tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, a := range attempts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attempts (run_id, job_key, stage, dependency, number, outcome, started_at, elapsed_ms, error)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID,
				a.Job,
				string(a.Stage),
				nullableString(a.Dependency),
				a.Number,
				string(a.Outcome),
				a.StartedAt.UTC().Format(time.RFC3339Nano),
				a.Elapsed.Milliseconds(),
				nullableString(a.Error),
			); err != nil {
				return fmt.Errorf("insert attempt: %w", err)
			}
		}
		return tx.Commit()
	})
}

// History returns recent attempts newest first, optionally filtered to a job key.
func (s *Store) History(ctx context.Context, jobKey string, limit int) ([]AttemptRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT run_id, job_key, stage, dependency, number, outcome, started_at, elapsed_ms, error FROM attempts`
	args := []any{}
	if jobKey != "" {
		query += ` WHERE job_key = ?`
		args = append(args, jobKey)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attempt history: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var (
			rec        AttemptRecord
			stage      string
			dependency sql.NullString
			outcome    string
			started    string
			elapsedMS  int64
			errText    sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.Job, &stage, &dependency, &rec.Number, &outcome, &started, &elapsedMS, &errText); err != nil {
			return nil, err
		}
		rec.Stage = job.StageName(stage)
		rec.Dependency = dependency.String
		rec.Outcome = job.Outcome(outcome)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.Error = errText.String
		if ts, err := parseTimeString(started); err == nil {
			rec.StartedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
