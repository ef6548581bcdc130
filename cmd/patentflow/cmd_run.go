package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patentflow/internal/pipeline"
	"patentflow/internal/providers"
	"patentflow/internal/storage"
	"patentflow/internal/workspace"
)

var runFlags struct {
	runID        string
	backend      string
	taskPrompt   string
	outputRoot   string
	referenceDir string
	maxRetries   int
}

var runCmd = &cobra.Command{
	Use:   "run <disclosure>",
	Short: "Run the full pipeline in-process",
	Long: `Runs all eight stages against the disclosure and writes the workspace to
<output-root>/temp_<run-id>. Exit status is 0 on success, 1 when a stage
fails and 2 when the model backend is not configured.

Example:
  patentflow run ./disclosure.docx --backend openai --task-prompt "emphasize the cache layer"`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.runID, "run-id", "", "Run ID (default: random UUID)")
	f.StringVar(&runFlags.backend, "backend", "", "Model backend selector, e.g. anthropic, openai:deepseek, openai|ollama, mock")
	f.StringVar(&runFlags.taskPrompt, "task-prompt", "", "Extra instructions added to every stage prompt")
	f.StringVar(&runFlags.outputRoot, "output-root", "", "Parent directory of run workspaces")
	f.StringVar(&runFlags.referenceDir, "reference-dir", "", "Directory with agents/*.md and writing guides")
	f.IntVar(&runFlags.maxRetries, "max-retries", 0, "Attempts per stage")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	opts := pipeline.OptionsFromConfig(cfg)
	opts.InputPath = args[0]
	opts.RunID = runFlags.runID
	if runFlags.backend != "" {
		opts.Backend = runFlags.backend
	}
	if runFlags.taskPrompt != "" {
		opts.TaskPrompt = runFlags.taskPrompt
	}
	if runFlags.outputRoot != "" {
		opts.OutputRoot = runFlags.outputRoot
	}
	if runFlags.referenceDir != "" {
		opts.ReferenceDir = runFlags.referenceDir
	}
	if runFlags.maxRetries > 0 {
		opts.MaxStageRetries = runFlags.maxRetries
	}

	manager := providers.NewManager(cfg)
	if err := manager.Ready(opts.Backend); err != nil {
		return err
	}
	model, err := manager.Provider(opts.Backend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := pipeline.New(model, logger)
	if cfg.PostgresURL != "" {
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Warn("run registry disabled", zap.Error(err))
		} else {
			defer db.Close()
			driver.Runs = storage.NewRunRepo(db)
			driver.Calls = storage.NewLLMAuditRepo(db)
		}
	}

	logger.Info("starting run", zap.String("backend", providers.Label(providers.BackendName(opts.Backend))), zap.Int("max_stage_retries", opts.MaxStageRetries))
	res, err := driver.Run(ctx, opts)
	if err != nil {
		if res.OutputDir != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "workspace kept at %s\n", res.OutputDir)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), workspace.Open(res.OutputDir).Abs(workspace.CompletePatent))
	return nil
}
