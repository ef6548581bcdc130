package storage

import (
	"context"
	"fmt"

	"patentflow/internal/models"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) InsertLLMCall(ctx context.Context, c models.LLMCall) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, run_id, operation, provider_name, model, status, error_type, prompt_chars, output_chars, latency_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9, $10)`,
		c.CallID, c.RunID, c.Operation, c.ProviderName, c.Model, c.Status, c.ErrorType, c.PromptChars, c.OutputChars, c.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// ListLLMCalls returns the audit rows of one run in call order.
func (r *LLMAuditRepo) ListLLMCalls(ctx context.Context, runID string) ([]models.LLMCall, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT call_id::text, run_id, operation, provider_name, model, status, COALESCE(error_type,''), prompt_chars, output_chars, latency_ms
FROM llm_calls
WHERE run_id=$1
ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list llm calls: %w", err)
	}
	defer rows.Close()

	out := make([]models.LLMCall, 0)
	for rows.Next() {
		var c models.LLMCall
		var latencyMS int64
		if err := rows.Scan(&c.CallID, &c.RunID, &c.Operation, &c.ProviderName, &c.Model, &c.Status, &c.ErrorType, &c.PromptChars, &c.OutputChars, &latencyMS); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		c.Latency = msDuration(latencyMS)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm calls: %w", err)
	}
	return out, nil
}
