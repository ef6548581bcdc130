package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"patentflow/internal/providers"
	"patentflow/internal/util"
	"patentflow/internal/workflows"
)

var submitFlags struct {
	runID      string
	backend    string
	taskPrompt string
	wait       bool
}

var submitCmd = &cobra.Command{
	Use:   "submit <disclosure>",
	Short: "Start the pipeline as a Temporal workflow",
	Long: `Starts PatentDraftWorkflow on the configured task queue. The disclosure path
must be readable by the worker.`,
	Args: cobra.ExactArgs(1),
	RunE: submitRun,
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show workflow status and stage progress of a submitted run",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.runID, "run-id", "", "Run ID (default: random UUID)")
	f.StringVar(&submitFlags.backend, "backend", "", "Model backend selector")
	f.StringVar(&submitFlags.taskPrompt, "task-prompt", "", "Extra instructions added to every stage prompt")
	f.BoolVar(&submitFlags.wait, "wait", false, "Block until the workflow completes")
}

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.TemporalAddress, err)
	}
	return c, nil
}

func submitRun(cmd *cobra.Command, args []string) error {
	runID := submitFlags.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := util.ValidateRunID(runID); err != nil {
		return err
	}
	backend := cfg.Backend
	if submitFlags.backend != "" {
		backend = submitFlags.backend
	}
	if err := providers.NewManager(cfg).Ready(backend); err != nil {
		return err
	}

	c, err := dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(runID),
		TaskQueue: cfg.TemporalTaskQueue,
	}, workflows.PatentDraftWorkflow, workflows.PatentDraftInput{
		RunID:      runID,
		InputPath:  args[0],
		Backend:    backend,
		TaskPrompt: submitFlags.taskPrompt,
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	logger.Info("run submitted", zap.String("run_id", runID), zap.String("workflow_id", we.GetID()), zap.String("temporal_run_id", we.GetRunID()))
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	if !submitFlags.wait {
		return nil
	}

	var status string
	if err := we.Get(ctx, &status); err != nil {
		return fmt.Errorf("workflow %s: %w", we.GetID(), err)
	}
	if status != "succeeded" {
		return fmt.Errorf("run %s finished with status %s", runID, status)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	c, err := dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	workflowID := workflows.WorkflowID(args[0])
	desc, err := c.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return fmt.Errorf("describe %s: %w", workflowID, err)
	}
	state := desc.GetWorkflowExecutionInfo().GetStatus()
	out := map[string]any{
		"workflow_id":     workflowID,
		"workflow_status": state.String(),
	}
	if state == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING || state == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		val, err := c.QueryWorkflow(ctx, workflowID, "", workflows.QueryGetProgress)
		if err != nil {
			logger.Warn("progress query failed", zap.String("workflow_id", workflowID), zap.Error(err))
		} else {
			var progress workflows.RunProgress
			if err := val.Get(&progress); err != nil {
				return fmt.Errorf("decode progress: %w", err)
			}
			out["progress"] = progress
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
