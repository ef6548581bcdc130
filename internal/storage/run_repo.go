package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"patentflow/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// CreateRun registers a run. Re-registering an existing run ID resets its
// status and keeps created_at.
func (r *RunRepo) CreateRun(ctx context.Context, run models.Run) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO pipeline_runs (run_id, input_path, backend, task_prompt, max_stage_retries, status, output_dir)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7)
ON CONFLICT (run_id)
DO UPDATE SET
  input_path = EXCLUDED.input_path,
  backend = EXCLUDED.backend,
  task_prompt = EXCLUDED.task_prompt,
  max_stage_retries = EXCLUDED.max_stage_retries,
  status = EXCLUDED.status,
  output_dir = EXCLUDED.output_dir,
  failed_stage = NULL,
  error = NULL,
  updated_at = NOW()`,
		run.RunID, run.InputPath, run.Backend, run.TaskPrompt, run.MaxStageRetries, string(run.Status), run.OutputDir,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRunStatus(ctx context.Context, runID string, status models.RunStatus, failedStage, errMsg string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE pipeline_runs
SET status=$2, failed_stage=NULLIF($3,''), error=NULLIF($4,''), updated_at=NOW()
WHERE run_id=$1`, runID, string(status), failedStage, errMsg)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run status %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `run_id, input_path, backend, COALESCE(task_prompt,''), max_stage_retries, status,
       COALESCE(failed_stage,''), COALESCE(error,''), output_dir, created_at, updated_at`

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.Run, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE run_id=$1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (models.Run, error) {
	var run models.Run
	var status string
	err := row.Scan(&run.RunID, &run.InputPath, &run.Backend, &run.TaskPrompt, &run.MaxStageRetries, &status,
		&run.FailedStage, &run.Error, &run.OutputDir, &run.CreatedAt, &run.UpdatedAt)
	run.Status = models.RunStatus(status)
	return run, err
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
