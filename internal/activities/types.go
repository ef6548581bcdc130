package activities

// RunRequest identifies a run and the per-run overrides of the worker
// configuration. Empty fields keep the configured defaults.
type RunRequest struct {
	RunID      string `json:"run_id"`
	InputPath  string `json:"input_path"`
	Backend    string `json:"backend,omitempty"`
	TaskPrompt string `json:"task_prompt,omitempty"`
}

type PrepareRunInput struct {
	Run RunRequest `json:"run"`
}

type PrepareRunOutput struct {
	RunID     string `json:"run_id"`
	OutputDir string `json:"output_dir"`
}

type RunStageInput struct {
	Run   RunRequest `json:"run"`
	Stage string     `json:"stage"`
}

// RunStageOutput is the executor outcome. A stage that ran out of attempts
// is reported here, not as an activity error.
type RunStageOutput struct {
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type FinishRunInput struct {
	Run         RunRequest `json:"run"`
	Status      string     `json:"status"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
}
