package storage

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"patentflow/internal/models"
)

func TestEmbeddedMigrationsAreGooseFiles(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"migrations/00001_pipeline_runs.sql", "migrations/00002_llm_calls.sql"}, names)
	for _, name := range names {
		raw, err := migrationFiles.ReadFile(name)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(string(raw), "-- +goose Up"), name)
		require.Contains(t, string(raw), "-- +goose Down", name)
	}
}

// openTestDB connects to PATENTFLOW_TEST_POSTGRES_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("PATENTFLOW_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("PATENTFLOW_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestRunRepoLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRunRepo(db)
	runID := "it-" + uuid.NewString()

	require.NoError(t, repo.CreateRun(ctx, models.Run{
		RunID:           runID,
		InputPath:       "/tmp/disclosure.docx",
		Backend:         "mock",
		MaxStageRetries: 3,
		Status:          models.RunRunning,
		OutputDir:       "/tmp/output/temp_" + runID,
	}))
	require.NoError(t, repo.UpdateRunStatus(ctx, runID, models.RunFailed, "claims-writer", "boom"))

	got, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, models.RunFailed, got.Status)
	require.Equal(t, "claims-writer", got.FailedStage)
	require.Equal(t, "boom", got.Error)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)

	_, err = repo.GetRun(ctx, "it-missing-"+uuid.NewString())
	require.ErrorIs(t, err, ErrRunNotFound)
	require.ErrorIs(t, repo.UpdateRunStatus(ctx, "it-missing", models.RunFailed, "", ""), ErrRunNotFound)
}

func TestLLMAuditRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewLLMAuditRepo(db)
	runID := "it-" + uuid.NewString()

	require.NoError(t, repo.InsertLLMCall(ctx, models.LLMCall{
		RunID:        runID,
		Operation:    "abstract-writer",
		ProviderName: "mock",
		Model:        "mock-patent-v1",
		Status:       "success",
		PromptChars:  120,
		OutputChars:  80,
		Latency:      1500 * time.Millisecond,
	}))
	calls, err := repo.ListLLMCalls(ctx, runID)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.NotEmpty(t, calls[0].CallID)
	require.Equal(t, 1500*time.Millisecond, calls[0].Latency)
}
