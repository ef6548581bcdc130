// Package pipeline runs the stage plan against one run workspace: each stage
// goes through a bounded retry loop and its output contract is validated
// before the next stage starts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"patentflow/internal/config"
	"patentflow/internal/ingest"
	"patentflow/internal/models"
	"patentflow/internal/providers"
	"patentflow/internal/stages"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

var ErrInputNotFound = errors.New("input document not found")

// StageFailedError reports the stage that ended the run.
type StageFailedError struct {
	Stage    string
	Status   OutcomeStatus
	Attempts int
	Err      error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %s %s after %d attempt(s): %v", e.Stage, e.Status, e.Attempts, e.Err)
}

func (e *StageFailedError) Unwrap() error { return e.Err }

// Options is everything one run needs. It is built once and passed down.
type Options struct {
	RunID           string
	InputPath       string
	Backend         string
	TaskPrompt      string
	OutputRoot      string
	ReferenceDir    string
	MaxStageRetries int
	Stage           stages.Options
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Backend:         cfg.Backend,
		TaskPrompt:      cfg.TaskPrompt,
		OutputRoot:      cfg.OutputRoot,
		ReferenceDir:    cfg.ReferenceDir,
		MaxStageRetries: cfg.MaxStageRetries,
		Stage: stages.Options{
			InputBudget:            cfg.InputBudget,
			ContextBudget:          cfg.ContextBudget,
			TaskBudget:             cfg.TaskBudget,
			DescriptionMinChars:    cfg.DescriptionMinChars,
			DescriptionParallelism: cfg.DescriptionParallelism,
			ModelTimeout:           time.Duration(cfg.ModelTimeoutSecs) * time.Second,
			LongModelTimeout:       time.Duration(cfg.LongModelTimeoutSecs) * time.Second,
		},
	}
}

// OutputDir is the workspace root of the run.
func (o Options) OutputDir() string {
	return workspace.RunRoot(o.OutputRoot, o.RunID)
}

// RunRecorder keeps the run registry. Implemented by storage.RunRepo.
type RunRecorder interface {
	CreateRun(ctx context.Context, run models.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status models.RunStatus, failedStage, errMsg string) error
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	OutputDir string
	Status    models.RunStatus
	Outcomes  []Outcome
}

type Driver struct {
	Model  providers.LLMProvider
	Logger *zap.Logger
	// Runs and Calls are optional; nil disables the registry and the audit.
	Runs  RunRecorder
	Calls providers.CallRecorder
	// Stages overrides the default plan.
	Stages []stages.Stage
	Now    func() time.Time
}

func New(model providers.LLMProvider, logger *zap.Logger) *Driver {
	return &Driver{Model: model, Logger: logger}
}

func (d *Driver) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Driver) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Driver) plan() []stages.Stage {
	if d.Stages != nil {
		return d.Stages
	}
	return stages.Plan()
}

// Prepare fills in defaults, checks the input document and starts a fresh
// workspace for the run. Artifacts and metadata left by an earlier run with
// the same ID are discarded. The returned options carry the final run ID.
func (d *Driver) Prepare(opts Options) (Options, *workspace.Store, error) {
	opts, err := d.check(opts)
	if err != nil {
		return opts, nil, err
	}
	store, err := workspace.Reset(opts.OutputDir())
	if err != nil {
		return opts, nil, err
	}
	if err := initMetadata(store, opts, d.now()); err != nil {
		return opts, nil, err
	}
	return opts, store, nil
}

// Open checks opts like Prepare but keeps the existing workspace, so each
// stage of a prepared run can reopen it.
func (d *Driver) Open(opts Options) (Options, *workspace.Store, error) {
	opts, err := d.check(opts)
	if err != nil {
		return opts, nil, err
	}
	store, err := workspace.Create(opts.OutputDir())
	if err != nil {
		return opts, nil, err
	}
	return opts, store, nil
}

func (d *Driver) check(opts Options) (Options, error) {
	opts = normalize(opts)
	if err := util.ValidateRunID(opts.RunID); err != nil {
		return opts, err
	}
	info, err := os.Stat(opts.InputPath)
	if err != nil || info.IsDir() {
		return opts, fmt.Errorf("%w: %s", ErrInputNotFound, opts.InputPath)
	}
	if !ingest.Supported(opts.InputPath) {
		return opts, fmt.Errorf("%w: %s", util.ErrUnsupportedInput, filepath.Ext(opts.InputPath))
	}
	return opts, nil
}

// RunContext builds the shared stage context for one run.
func (d *Driver) RunContext(opts Options, store *workspace.Store) *stages.RunContext {
	logger := d.logger().With(zap.String("run_id", opts.RunID))
	model := providers.NewAudited(d.Model, d.Calls, opts.RunID, logger)
	return &stages.RunContext{
		RunID:      opts.RunID,
		InputPath:  opts.InputPath,
		Backend:    opts.Backend,
		TaskPrompt: opts.TaskPrompt,
		Store:      store,
		Model:      model,
		Reference:  stages.Reference{Dir: opts.ReferenceDir},
		Options:    opts.Stage,
		Logger:     logger,
		Now:        d.Now,
	}
}

// Run executes every stage in order and stops at the first one that does
// not succeed.
func (d *Driver) Run(ctx context.Context, opts Options) (Result, error) {
	opts, store, err := d.Prepare(opts)
	if err != nil {
		return Result{RunID: opts.RunID}, err
	}
	res := Result{RunID: opts.RunID, OutputDir: store.Root, Status: models.RunRunning}
	rc := d.RunContext(opts, store)
	logger := rc.Logger
	d.recordRun(ctx, opts, store.Root)
	logger.Info("run started", zap.String("backend", opts.Backend), zap.String("input", opts.InputPath), zap.String("output_dir", store.Root))

	for _, st := range d.plan() {
		out := Execute(ctx, st.Name, st.Run, rc, opts.MaxStageRetries)
		res.Outcomes = append(res.Outcomes, out)
		if err := RecordStage(store, out); err != nil {
			logger.Warn("record stage metadata", zap.String("stage", st.Name), zap.Error(err))
		}
		if out.Succeeded() {
			continue
		}
		failure := &StageFailedError{Stage: out.Stage, Status: out.Status, Attempts: out.Attempts, Err: out.Err}
		res.Status = models.RunFailed
		d.finish(ctx, store, opts.RunID, models.RunFailed, out.Stage, failure)
		logger.Error("run failed", zap.String("stage", out.Stage), zap.Int("attempts", out.Attempts), zap.Error(out.Err))
		return res, failure
	}

	res.Status = models.RunSucceeded
	d.finish(ctx, store, opts.RunID, models.RunSucceeded, "", nil)
	logger.Info("run completed", zap.String("final_document", store.Abs(workspace.CompletePatent)))
	return res, nil
}

func (d *Driver) recordRun(ctx context.Context, opts Options, outputDir string) {
	if d.Runs == nil {
		return
	}
	now := d.now()
	err := d.Runs.CreateRun(ctx, models.Run{
		RunID:           opts.RunID,
		InputPath:       opts.InputPath,
		Backend:         opts.Backend,
		TaskPrompt:      opts.TaskPrompt,
		MaxStageRetries: opts.MaxStageRetries,
		Status:          models.RunRunning,
		OutputDir:       outputDir,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		d.logger().Warn("register run", zap.String("run_id", opts.RunID), zap.Error(err))
	}
}

func (d *Driver) finish(ctx context.Context, store *workspace.Store, runID string, status models.RunStatus, stage string, cause error) {
	if err := FinishRun(store, status, d.now()); err != nil {
		d.logger().Warn("finish run metadata", zap.String("run_id", runID), zap.Error(err))
	}
	if d.Runs == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := d.Runs.UpdateRunStatus(context.WithoutCancel(ctx), runID, status, stage, msg); err != nil {
		d.logger().Warn("update run status", zap.String("run_id", runID), zap.Error(err))
	}
}

func normalize(opts Options) Options {
	opts.RunID = strings.TrimSpace(opts.RunID)
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.MaxStageRetries < 1 {
		opts.MaxStageRetries = 1
	}
	if strings.TrimSpace(opts.OutputRoot) == "" {
		opts.OutputRoot = "./output"
	}
	def := stages.DefaultOptions()
	if opts.Stage.InputBudget <= 0 {
		opts.Stage.InputBudget = def.InputBudget
	}
	if opts.Stage.ContextBudget <= 0 {
		opts.Stage.ContextBudget = def.ContextBudget
	}
	if opts.Stage.TaskBudget <= 0 {
		opts.Stage.TaskBudget = def.TaskBudget
	}
	if opts.Stage.DescriptionMinChars <= 0 {
		opts.Stage.DescriptionMinChars = def.DescriptionMinChars
	}
	opts.Stage.DescriptionParallelism = config.ClampParallelism(opts.Stage.DescriptionParallelism)
	if opts.Stage.ModelTimeout <= 0 {
		opts.Stage.ModelTimeout = def.ModelTimeout
	}
	if opts.Stage.LongModelTimeout <= 0 {
		opts.Stage.LongModelTimeout = def.LongModelTimeout
	}
	return opts
}
