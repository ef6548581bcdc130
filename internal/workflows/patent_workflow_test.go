package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"patentflow/internal/activities"
	"patentflow/internal/stages"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PatentDraftWorkflow)
	registerActivityName(env, "PrepareRunActivity", func(context.Context, activities.PrepareRunInput) (activities.PrepareRunOutput, error) {
		return activities.PrepareRunOutput{}, nil
	})
	registerActivityName(env, "RunStageActivity", func(context.Context, activities.RunStageInput) (activities.RunStageOutput, error) {
		return activities.RunStageOutput{}, nil
	})
	registerActivityName(env, "FinishRunActivity", func(context.Context, activities.FinishRunInput) error { return nil })
	return env
}

func stageInput(name string) activities.RunStageInput {
	return activities.RunStageInput{
		Run:   activities.RunRequest{RunID: "r1", InputPath: "/tmp/d.docx", Backend: "mock"},
		Stage: name,
	}
}

func TestPatentDraftWorkflowSuccess(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("PrepareRunActivity", mock.Anything, mock.Anything).Return(activities.PrepareRunOutput{RunID: "r1", OutputDir: "/tmp/out/temp_r1"}, nil)
	for _, name := range stages.Names() {
		env.OnActivity("RunStageActivity", mock.Anything, stageInput(name)).Return(activities.RunStageOutput{Stage: name, Status: "succeeded", Attempts: 1}, nil).Once()
	}
	env.OnActivity("FinishRunActivity", mock.Anything, activities.FinishRunInput{
		Run:    activities.RunRequest{RunID: "r1", InputPath: "/tmp/d.docx", Backend: "mock"},
		Status: "succeeded",
	}).Return(nil).Once()

	env.ExecuteWorkflow(PatentDraftWorkflow, PatentDraftInput{RunID: "r1", InputPath: "/tmp/d.docx", Backend: "mock"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "succeeded", out)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress RunProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, len(stages.Names()), progress.Completed)
	require.Equal(t, "/tmp/out/temp_r1", progress.OutputDir)
	require.Empty(t, progress.FailedStage)
	env.AssertExpectations(t)
}

func TestPatentDraftWorkflowStopsAtExhaustedStage(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("PrepareRunActivity", mock.Anything, mock.Anything).Return(activities.PrepareRunOutput{RunID: "r1", OutputDir: "/tmp/out/temp_r1"}, nil)
	for _, name := range stages.Names()[:4] {
		env.OnActivity("RunStageActivity", mock.Anything, stageInput(name)).Return(activities.RunStageOutput{Stage: name, Status: "succeeded", Attempts: 1}, nil).Once()
	}
	env.OnActivity("RunStageActivity", mock.Anything, stageInput(stages.ClaimsWriter)).Return(activities.RunStageOutput{
		Stage:    stages.ClaimsWriter,
		Status:   "exhausted",
		Attempts: 3,
		Error:    "model call failed",
	}, nil).Once()
	env.OnActivity("FinishRunActivity", mock.Anything, mock.MatchedBy(func(in activities.FinishRunInput) bool {
		return in.Status == "failed" && in.FailedStage == stages.ClaimsWriter && in.Error == "model call failed"
	})).Return(nil).Once()

	env.ExecuteWorkflow(PatentDraftWorkflow, PatentDraftInput{RunID: "r1", InputPath: "/tmp/d.docx", Backend: "mock"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress RunProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, 4, progress.Completed)
	require.Equal(t, stages.ClaimsWriter, progress.FailedStage)
	require.Equal(t, 3, progress.Stages[stages.ClaimsWriter].Attempts)
	_, ranDescription := progress.Stages[stages.DescriptionWriter]
	require.False(t, ranDescription)
	env.AssertExpectations(t)
}

func TestPatentDraftWorkflowPrepareFailure(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("PrepareRunActivity", mock.Anything, mock.Anything).Return(activities.PrepareRunOutput{}, errors.New("input document not found"))

	env.ExecuteWorkflow(PatentDraftWorkflow, PatentDraftInput{RunID: "r1", InputPath: "/tmp/missing.docx"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "patent-run-2025-01", WorkflowID("Run_2025.01"))
}
