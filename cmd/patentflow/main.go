package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patentflow/internal/config"
	"patentflow/internal/logging"
	"patentflow/internal/pipeline"
	"patentflow/internal/providers"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitUnavailable = 2
)

var (
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patentflow",
	Short: "Draft a patent application from an invention disclosure",
	Long: `patentflow turns an invention disclosure (.docx, .pdf, .md, .txt) into a
complete patent application draft through eight ordered model-driven stages.

Runs execute in-process with "run" or on a Temporal worker with "submit".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(verbose || cfg.Verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Optional YAML config overlay")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

// exitCode maps a command error to the process exit status. A stage that
// gave up is a pipeline failure even when the model was the cause.
func exitCode(err error) int {
	var stageErr *pipeline.StageFailedError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &stageErr):
		return exitFailed
	case errors.Is(err, providers.ErrModelUnavailable):
		return exitUnavailable
	default:
		return exitFailed
	}
}
