package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"patentflow/internal/config"
	"patentflow/internal/models"
	"patentflow/internal/pipeline"
	"patentflow/internal/providers"
	"patentflow/internal/stages"
	"patentflow/internal/storage"
	"patentflow/internal/workspace"
)

// Activities expose the pipeline to Temporal one stage at a time. The
// workspace on disk carries state between activities.
type Activities struct {
	cfg       config.Config
	providers *providers.Manager
	runs      pipeline.RunRecorder
	calls     providers.CallRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// New wires the activities. db may be nil, which disables the run registry
// and the LLM call audit.
func New(cfg config.Config, db *storage.DB, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Activities{
		cfg:       cfg,
		providers: providers.NewManager(cfg),
		logger:    logger,
		now:       time.Now,
	}
	if db != nil {
		a.runs = storage.NewRunRepo(db)
		a.calls = storage.NewLLMAuditRepo(db)
	}
	return a
}

func (a *Activities) options(r RunRequest) pipeline.Options {
	opts := pipeline.OptionsFromConfig(a.cfg)
	opts.RunID = r.RunID
	opts.InputPath = r.InputPath
	if r.Backend != "" {
		opts.Backend = r.Backend
	}
	if r.TaskPrompt != "" {
		opts.TaskPrompt = r.TaskPrompt
	}
	return opts
}

func (a *Activities) driver(model providers.LLMProvider) *pipeline.Driver {
	return &pipeline.Driver{Model: model, Logger: a.logger, Runs: a.runs, Calls: a.calls, Now: a.now}
}

// PrepareRunActivity checks the backend, creates the workspace and registers
// the run.
func (a *Activities) PrepareRunActivity(ctx context.Context, in PrepareRunInput) (PrepareRunOutput, error) {
	opts := a.options(in.Run)
	if err := a.providers.Ready(opts.Backend); err != nil {
		return PrepareRunOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "ModelUnavailable", err)
	}
	opts, store, err := a.driver(nil).Prepare(opts)
	if err != nil {
		return PrepareRunOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRun", err)
	}
	if a.runs != nil {
		now := a.now()
		if err := a.runs.CreateRun(ctx, models.Run{
			RunID:           opts.RunID,
			InputPath:       opts.InputPath,
			Backend:         opts.Backend,
			TaskPrompt:      opts.TaskPrompt,
			MaxStageRetries: opts.MaxStageRetries,
			Status:          models.RunRunning,
			OutputDir:       store.Root,
			CreatedAt:       now,
			UpdatedAt:       now,
		}); err != nil {
			a.logger.Warn("register run", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}
	return PrepareRunOutput{RunID: opts.RunID, OutputDir: store.Root}, nil
}

// RunStageActivity runs one stage through the retrying executor.
func (a *Activities) RunStageActivity(ctx context.Context, in RunStageInput) (RunStageOutput, error) {
	st, ok := stages.ByName(in.Stage)
	if !ok {
		return RunStageOutput{}, temporal.NewNonRetryableApplicationError(fmt.Sprintf("unknown stage %q", in.Stage), "UnknownStage", nil)
	}
	opts := a.options(in.Run)
	model, err := a.providers.Provider(opts.Backend)
	if err != nil {
		return RunStageOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "ModelUnavailable", err)
	}
	d := a.driver(model)
	opts, store, err := d.Open(opts)
	if err != nil {
		return RunStageOutput{}, err
	}
	rc := d.RunContext(opts, store)

	out := pipeline.Execute(ctx, st.Name, st.Run, rc, opts.MaxStageRetries)
	if err := pipeline.RecordStage(store, out); err != nil {
		rc.Logger.Warn("record stage metadata", zap.String("stage", st.Name), zap.Error(err))
	}
	res := RunStageOutput{Stage: out.Stage, Status: string(out.Status), Attempts: out.Attempts}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res, nil
}

// FinishRunActivity stamps the terminal status in run.json and the registry.
func (a *Activities) FinishRunActivity(ctx context.Context, in FinishRunInput) error {
	opts := a.options(in.Run)
	store := workspace.Open(opts.OutputDir())
	status := models.RunStatus(in.Status)
	if err := pipeline.FinishRun(store, status, a.now()); err != nil {
		return err
	}
	if a.runs == nil {
		return nil
	}
	return a.runs.UpdateRunStatus(ctx, in.Run.RunID, status, in.FailedStage, in.Error)
}
