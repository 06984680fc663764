package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StageRun is one recorded stage outcome for a day.
type StageRun struct {
	RunID        string
	Stage        string
	Day          string
	Status       string
	ErrorKind    string
	ErrorMessage string
	RecordedAt   time.Time
}

// RecordStageRuns appends runs to the history table.
func (s *Store) RecordStageRuns(ctx context.Context, runs []StageRun) error {
	if len(runs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, run := range runs {
			recorded := run.RecordedAt
			if recorded.IsZero() {
				recorded = now
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stage_runs (run_id, stage, day, status, error_kind, error_message, recorded_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, run.Stage, run.Day, run.Status, run.ErrorKind, run.ErrorMessage,
				recorded.Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("insert stage run %s/%s: %w", run.Stage, run.Day, err)
			}
		}
		return nil
	})
}

// LatestStageRuns returns the most recent outcome per stage and day.
func (s *Store) LatestStageRuns(ctx context.Context) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.stage, r.day, r.status, r.error_kind, r.error_message, r.recorded_at
		FROM stage_runs r
		JOIN (SELECT stage, day, MAX(id) AS id FROM stage_runs GROUP BY stage, day) latest
		  ON latest.id = r.id
		ORDER BY r.stage, r.day`)
	if err != nil {
		return nil, fmt.Errorf("query latest stage runs: %w", err)
	}
	defer rows.Close()

	var runs []StageRun
	for rows.Next() {
		var run StageRun
		var recorded string
		if err := rows.Scan(&run.RunID, &run.Stage, &run.Day, &run.Status, &run.ErrorKind, &run.ErrorMessage, &recorded); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			run.RecordedAt = ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
