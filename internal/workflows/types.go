package workflows

type PatentDraftInput struct {
	RunID      string `json:"run_id"`
	InputPath  string `json:"input_path"`
	Backend    string `json:"backend,omitempty"`
	TaskPrompt string `json:"task_prompt,omitempty"`
	// StageTimeoutMinutes bounds one stage including its in-stage retries.
	StageTimeoutMinutes int `json:"stage_timeout_minutes,omitempty"`
}

type StageProgress struct {
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

type RunProgress struct {
	RunID        string                   `json:"run_id"`
	OutputDir    string                   `json:"output_dir,omitempty"`
	Status       string                   `json:"status"`
	CurrentStage string                   `json:"current_stage,omitempty"`
	Total        int                      `json:"total"`
	Completed    int                      `json:"completed"`
	FailedStage  string                   `json:"failed_stage,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Stages       map[string]StageProgress `json:"stages"`
}
