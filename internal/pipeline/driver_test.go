package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"patentflow/internal/models"
	"patentflow/internal/providers"
	"patentflow/internal/stages"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

type modelFunc func(ctx context.Context, req providers.GenerateRequest) (string, error)

func (f modelFunc) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	text, err := f(ctx, req)
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "stub", Model: "stub-1"}, err
}

type runRegistry struct {
	mu       sync.Mutex
	created  []models.Run
	statuses []models.RunStatus
	failed   string
}

func (r *runRegistry) CreateRun(_ context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return nil
}

func (r *runRegistry) UpdateRunStatus(_ context.Context, _ string, status models.RunStatus, failedStage, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.failed = failedStage
	return nil
}

type callLog struct {
	mu    sync.Mutex
	calls []models.LLMCall
}

func (c *callLog) InsertLLMCall(_ context.Context, call models.LLMCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return nil
}

func testOptions(t *testing.T, input string) Options {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "disclosure.md")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o644))
	return Options{
		RunID:           "run-1",
		InputPath:       path,
		Backend:         "mock",
		OutputRoot:      filepath.Join(dir, "output"),
		MaxStageRetries: 2,
		Stage:           stages.DefaultOptions(),
	}
}

func fixedClock() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }

func TestDriverHappyPath(t *testing.T) {
	opts := testOptions(t, "# 一种数据处理方法\n\n通过特征分析确定处理策略。")
	runs := &runRegistry{}
	audit := &callLog{}
	d := &Driver{Model: providers.NewMockProvider(), Runs: runs, Calls: audit, Now: fixedClock}

	res, err := d.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, models.RunSucceeded, res.Status)
	require.Len(t, res.Outcomes, len(stages.Plan()))
	for _, out := range res.Outcomes {
		require.True(t, out.Succeeded(), out.Stage)
		require.Equal(t, 1, out.Attempts, out.Stage)
	}

	store := workspace.Open(res.OutputDir)
	final := store.ReadText(workspace.CompletePatent, "")
	require.True(t, strings.HasPrefix(final, "# 一种基于特征分析的数据处理方法"))
	require.Contains(t, final, "本申请公开了")
	require.Regexp(t, `(?m)^1\.`, final)
	require.Equal(t, 3, strings.Count(final, "```mermaid"))
	require.True(t, store.Exists(workspace.CompletePatentHTML))

	summary := store.ReadText(workspace.SummaryReport, "")
	require.Contains(t, summary, "- session_id: run-1")
	require.Contains(t, summary, "- meets_description_requirement: yes")

	md, ok := LoadMetadata(store)
	require.True(t, ok)
	require.Equal(t, models.RunSucceeded, md.Status)
	require.Len(t, md.Stages, len(stages.Plan()))
	require.Equal(t, stages.InputParser, md.Stages[0].Stage)
	require.Len(t, md.InputSHA256, 64)

	require.Len(t, runs.created, 1)
	require.Equal(t, []models.RunStatus{models.RunSucceeded}, runs.statuses)
	require.NotEmpty(t, audit.calls)
	for _, c := range audit.calls {
		require.Equal(t, "run-1", c.RunID)
	}
}

func TestDriverNoisyModelStillCompletes(t *testing.T) {
	opts := testOptions(t, "一种数据处理方法")
	noisy := modelFunc(func(context.Context, providers.GenerateRequest) (string, error) {
		return "Sorry, here is some unstructured chatter without any of the expected markers.", nil
	})
	d := &Driver{Model: noisy, Now: fixedClock}

	res, err := d.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, models.RunSucceeded, res.Status)

	store := workspace.Open(res.OutputDir)
	final := store.ReadText(workspace.CompletePatent, "")
	require.Regexp(t, `(?m)^1\.`, final)
	require.Equal(t, 3, strings.Count(final, "```mermaid"))
	require.True(t, strings.HasPrefix(store.ReadText(workspace.Abstract, ""), "本申请公开了"))
	require.Contains(t, store.ReadText(workspace.SummaryReport, ""), "- meets_description_requirement: no")
}

func TestDriverAbortsOnExhaustedStage(t *testing.T) {
	opts := testOptions(t, "一种数据处理方法")
	opts.MaxStageRetries = 3
	var mu sync.Mutex
	calls := 0
	down := modelFunc(func(context.Context, providers.GenerateRequest) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", fmt.Errorf("%w: upstream 503", providers.ErrModelCallFailed)
	})
	runs := &runRegistry{}
	d := &Driver{Model: down, Runs: runs, Now: fixedClock}

	res, err := d.Run(context.Background(), opts)
	var failed *StageFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, stages.InputParser, failed.Stage)
	require.Equal(t, 3, failed.Attempts)
	require.ErrorIs(t, err, providers.ErrModelCallFailed)
	require.Equal(t, models.RunFailed, res.Status)
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, 3, calls)

	store := workspace.Open(res.OutputDir)
	require.Equal(t, 3, strings.Count(store.ReadText(workspace.ErrorLog(stages.InputParser), ""), "=== ["))
	require.False(t, store.Exists(workspace.SimilarPatents))

	md, ok := LoadMetadata(store)
	require.True(t, ok)
	require.Equal(t, models.RunFailed, md.Status)
	require.Equal(t, string(StageExhausted), md.Stages[0].Status)
	require.Equal(t, stages.InputParser, runs.failed)
}

func TestDriverRejectsBadInputs(t *testing.T) {
	d := &Driver{Model: providers.NewMockProvider()}

	opts := testOptions(t, "x")
	opts.RunID = "../escape"
	_, err := d.Run(context.Background(), opts)
	require.ErrorIs(t, err, util.ErrInvalidRunID)

	opts = testOptions(t, "x")
	opts.InputPath = filepath.Join(t.TempDir(), "missing.md")
	_, err = d.Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrInputNotFound)

	opts = testOptions(t, "x")
	odd := filepath.Join(t.TempDir(), "disclosure.rtf")
	require.NoError(t, os.WriteFile(odd, []byte("x"), 0o644))
	opts.InputPath = odd
	_, err = d.Run(context.Background(), opts)
	require.ErrorIs(t, err, util.ErrUnsupportedInput)
}

func TestPrepareGeneratesRunID(t *testing.T) {
	opts := testOptions(t, "x")
	opts.RunID = ""
	opts.MaxStageRetries = 0
	opts.Stage = stages.Options{DescriptionParallelism: 99}

	got, store, err := (&Driver{}).Prepare(opts)
	require.NoError(t, err)
	require.Len(t, got.RunID, 36)
	require.Equal(t, 1, got.MaxStageRetries)
	require.Equal(t, 6, got.Stage.DescriptionParallelism)
	require.Equal(t, stages.DefaultOptions().InputBudget, got.Stage.InputBudget)
	require.Equal(t, filepath.Join(opts.OutputRoot, "temp_"+got.RunID), store.Root)
	require.True(t, store.Exists(workspace.RunMetadata))
}

func TestRunWithReusedIDStartsFresh(t *testing.T) {
	opts := testOptions(t, "# 第一份交底书")
	failing := &Driver{Model: modelFunc(func(context.Context, providers.GenerateRequest) (string, error) {
		return "", errors.New("backend down")
	}), Now: fixedClock}
	_, err := failing.Run(context.Background(), opts)
	require.Error(t, err)

	second := filepath.Join(t.TempDir(), "second.md")
	require.NoError(t, os.WriteFile(second, []byte("# 第二份交底书"), 0o644))
	opts.InputPath = second
	opts.Backend = "mock|mock"
	res, err := (&Driver{Model: providers.NewMockProvider(), Now: fixedClock}).Run(context.Background(), opts)
	require.NoError(t, err)

	store := workspace.Open(res.OutputDir)
	md, ok := LoadMetadata(store)
	require.True(t, ok)
	require.Equal(t, second, md.InputPath)
	require.Equal(t, "mock|mock", md.Backend)
	require.Equal(t, models.RunSucceeded, md.Status)
	require.False(t, store.Exists(workspace.ErrorLog(stages.InputParser)))
}

func TestOpenKeepsPreparedWorkspace(t *testing.T) {
	opts := testOptions(t, "x")
	d := &Driver{Now: fixedClock}
	_, store, err := d.Prepare(opts)
	require.NoError(t, err)
	require.NoError(t, store.WriteText(workspace.Abstract, "摘要"))

	_, reopened, err := d.Open(opts)
	require.NoError(t, err)
	require.Equal(t, "摘要", reopened.ReadText(workspace.Abstract, ""))
	md, ok := LoadMetadata(reopened)
	require.True(t, ok)
	require.Equal(t, opts.InputPath, md.InputPath)
}
