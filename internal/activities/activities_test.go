package activities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"patentflow/internal/config"
	"patentflow/internal/models"
	"patentflow/internal/pipeline"
	"patentflow/internal/stages"
	"patentflow/internal/workspace"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		Backend:                "mock",
		OutputRoot:             filepath.Join(t.TempDir(), "output"),
		MaxStageRetries:        2,
		DescriptionParallelism: 2,
	}
	return cfg.Normalize()
}

func writeDisclosure(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disclosure.txt")
	require.NoError(t, os.WriteFile(path, []byte("一种基于特征分析的数据处理方法"), 0o644))
	return path
}

func TestStageActivitiesProduceFinalDocument(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := New(testConfig(t), nil, nil)
	env.RegisterActivity(a)

	run := RunRequest{RunID: "act-1", InputPath: writeDisclosure(t)}
	val, err := env.ExecuteActivity(a.PrepareRunActivity, PrepareRunInput{Run: run})
	require.NoError(t, err)
	var prep PrepareRunOutput
	require.NoError(t, val.Get(&prep))
	require.Equal(t, "act-1", prep.RunID)

	for _, name := range stages.Names() {
		val, err := env.ExecuteActivity(a.RunStageActivity, RunStageInput{Run: run, Stage: name})
		require.NoError(t, err, name)
		var out RunStageOutput
		require.NoError(t, val.Get(&out))
		require.Equal(t, string(pipeline.StageSucceeded), out.Status, name)
		require.Equal(t, 1, out.Attempts, name)
	}

	_, err = env.ExecuteActivity(a.FinishRunActivity, FinishRunInput{Run: run, Status: string(models.RunSucceeded)})
	require.NoError(t, err)

	store := workspace.Open(prep.OutputDir)
	require.True(t, store.Exists(workspace.CompletePatent))
	md, ok := pipeline.LoadMetadata(store)
	require.True(t, ok)
	require.Equal(t, models.RunSucceeded, md.Status)
	require.Len(t, md.Stages, len(stages.Plan()))
}

func TestRunStageActivityRejectsUnknownStage(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := New(testConfig(t), nil, nil)
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.RunStageActivity, RunStageInput{
		Run:   RunRequest{RunID: "act-2", InputPath: writeDisclosure(t)},
		Stage: "translate-to-klingon",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown stage")
}

func TestPrepareRunActivityReportsMissingInput(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := New(testConfig(t), nil, nil)
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.PrepareRunActivity, PrepareRunInput{Run: RunRequest{
		RunID:     "act-3",
		InputPath: filepath.Join(t.TempDir(), "missing.pdf"),
	}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "input document not found")
}
