package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"patentflow/internal/stages"
	"patentflow/internal/workspace"
)

func TestMain(m *testing.M) {
	// genai links in opencensus, whose init starts a stats worker.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newStageContext(t *testing.T) *stages.RunContext {
	t.Helper()
	store, err := workspace.Create(workspace.RunRoot(t.TempDir(), "exec"))
	require.NoError(t, err)
	return &stages.RunContext{
		RunID:   "exec",
		Store:   store,
		Options: stages.DefaultOptions(),
		Now:     func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) },
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	rc := newStageContext(t)
	calls := 0
	fn := func(context.Context, *stages.RunContext) error {
		calls++
		return errors.New("model said no")
	}

	out := Execute(context.Background(), stages.AbstractWriter, fn, rc, 3)
	require.Equal(t, StageExhausted, out.Status)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, 3, calls)
	require.EqualError(t, out.Err, "model said no")

	log := rc.Store.ReadText(workspace.ErrorLog(stages.AbstractWriter), "")
	require.Equal(t, 3, strings.Count(log, "\n=== [2025-03-01T09:30:00] attempt "))
	for _, header := range []string{"attempt 1/3 ===", "attempt 2/3 ===", "attempt 3/3 ==="} {
		require.Contains(t, log, header)
	}
	require.Contains(t, log, "error: model said no")
	require.Contains(t, log, "  #0 *errors.errorString: model said no")
	require.NotContains(t, log, "goroutine")
}

func TestExecuteRetriesMissingOutputs(t *testing.T) {
	rc := newStageContext(t)
	calls := 0
	fn := func(_ context.Context, rc *stages.RunContext) error {
		calls++
		if calls == 1 {
			return nil
		}
		return rc.Store.WriteText(workspace.Abstract, "本申请公开了一种方法。")
	}

	out := Execute(context.Background(), stages.AbstractWriter, fn, rc, 3)
	require.True(t, out.Succeeded())
	require.Equal(t, 2, out.Attempts)

	log := rc.Store.ReadText(workspace.ErrorLog(stages.AbstractWriter), "")
	require.Equal(t, 1, strings.Count(log, "=== ["))
	require.Contains(t, log, "missing outputs: 04_content/abstract.md")
	require.Contains(t, log, "*pipeline.StageContractError")
}

func TestExecuteStopsOnStorageError(t *testing.T) {
	rc := newStageContext(t)
	calls := 0
	fn := func(context.Context, *stages.RunContext) error {
		calls++
		return &workspace.StorageError{Op: "write", Path: "x", Err: errors.New("disk full")}
	}

	out := Execute(context.Background(), stages.ClaimsWriter, fn, rc, 5)
	require.Equal(t, StageAborted, out.Status)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, 1, calls)
	require.True(t, workspace.IsStorageError(out.Err))
	require.Equal(t, 1, strings.Count(rc.Store.ReadText(workspace.ErrorLog(stages.ClaimsWriter), ""), "=== ["))
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	rc := newStageContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context, _ *stages.RunContext) error {
		cancel()
		return ctx.Err()
	}

	out := Execute(ctx, stages.ClaimsWriter, fn, rc, 3)
	require.Equal(t, StageAborted, out.Status)
	require.Equal(t, 1, out.Attempts)
	require.ErrorIs(t, out.Err, context.Canceled)
}

func TestExecuteRecoversPanics(t *testing.T) {
	rc := newStageContext(t)
	fn := func(context.Context, *stages.RunContext) error {
		panic("boom")
	}

	out := Execute(context.Background(), stages.OutlineGenerator, fn, rc, 2)
	require.Equal(t, StageExhausted, out.Status)
	require.Equal(t, 2, out.Attempts)
	require.EqualError(t, out.Err, "panic: boom")

	log := rc.Store.ReadText(workspace.ErrorLog(stages.OutlineGenerator), "")
	require.Equal(t, 2, strings.Count(log, "=== ["))
	require.Contains(t, log, "panic: boom")
	require.Contains(t, log, "runtime/debug.Stack")
}

func TestExecuteTreatsZeroAttemptsAsOne(t *testing.T) {
	rc := newStageContext(t)
	out := Execute(context.Background(), stages.ClaimsWriter, func(context.Context, *stages.RunContext) error {
		return errors.New("nope")
	}, rc, 0)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, StageExhausted, out.Status)
}
