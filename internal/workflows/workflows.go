package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"patentflow/internal/activities"
	"patentflow/internal/models"
	"patentflow/internal/pipeline"
	"patentflow/internal/stages"
)

const QueryGetProgress = "GetProgress"

// WorkflowID is the Temporal workflow ID of a run.
func WorkflowID(runID string) string {
	return "patent-" + sanitizeID(runID)
}

// PatentDraftWorkflow runs the stage plan as one activity per stage. Retries
// happen inside RunStageActivity, so Temporal never re-runs a stage.
func PatentDraftWorkflow(ctx workflow.Context, input PatentDraftInput) (string, error) {
	plan := stages.Names()
	progress := RunProgress{
		RunID:  input.RunID,
		Status: string(models.RunPending),
		Total:  len(plan),
		Stages: map[string]StageProgress{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (RunProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}
	logger := workflow.GetLogger(ctx)

	bookkeeping := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.StageTimeoutMinutes, 120),
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	run := activities.RunRequest{
		RunID:      input.RunID,
		InputPath:  input.InputPath,
		Backend:    input.Backend,
		TaskPrompt: input.TaskPrompt,
	}
	var prep activities.PrepareRunOutput
	if err := workflow.ExecuteActivity(bookkeeping, "PrepareRunActivity", activities.PrepareRunInput{Run: run}).Get(ctx, &prep); err != nil {
		progress.Status = string(models.RunFailed)
		progress.Error = err.Error()
		return "", err
	}
	run.RunID = prep.RunID
	progress.RunID = prep.RunID
	progress.OutputDir = prep.OutputDir
	progress.Status = string(models.RunRunning)

	for _, name := range plan {
		progress.CurrentStage = name
		progress.Stages[name] = StageProgress{Status: string(models.RunRunning)}

		var out activities.RunStageOutput
		if err := workflow.ExecuteActivity(stageCtx, "RunStageActivity", activities.RunStageInput{Run: run, Stage: name}).Get(ctx, &out); err != nil {
			out = activities.RunStageOutput{Stage: name, Status: string(pipeline.StageAborted), Error: err.Error()}
		}
		progress.Stages[name] = StageProgress{Status: out.Status, Attempts: out.Attempts, Error: out.Error}
		if out.Status != string(pipeline.StageSucceeded) {
			progress.Status = string(models.RunFailed)
			progress.FailedStage = name
			progress.Error = out.Error
			break
		}
		progress.Completed++
	}
	if progress.Status != string(models.RunFailed) {
		progress.Status = string(models.RunSucceeded)
		progress.CurrentStage = ""
	}

	err := workflow.ExecuteActivity(bookkeeping, "FinishRunActivity", activities.FinishRunInput{
		Run:         run,
		Status:      progress.Status,
		FailedStage: progress.FailedStage,
		Error:       progress.Error,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("finish run bookkeeping failed", "run_id", run.RunID, "error", err)
	}
	return progress.Status, nil
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(minutes int, fallback int) time.Duration {
	if minutes <= 0 {
		minutes = fallback
	}
	return time.Duration(minutes) * time.Minute
}
