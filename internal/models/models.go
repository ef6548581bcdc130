package models

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one end-to-end pipeline execution for one input document.
type Run struct {
	RunID           string    `json:"run_id"`
	InputPath       string    `json:"input_path"`
	Backend         string    `json:"backend"`
	TaskPrompt      string    `json:"task_prompt,omitempty"`
	MaxStageRetries int       `json:"max_stage_retries"`
	Status          RunStatus `json:"status"`
	FailedStage     string    `json:"failed_stage,omitempty"`
	Error           string    `json:"error,omitempty"`
	OutputDir       string    `json:"output_dir"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ParsedDisclosure is written to 01_input/parsed_info.json.
type ParsedDisclosure struct {
	Title             string   `json:"title"`
	TechnicalProblem  string   `json:"technical_problem"`
	ExistingSolutions []string `json:"existing_solutions"`
	ExistingDrawbacks []string `json:"existing_drawbacks"`
	TechnicalSolution string   `json:"technical_solution"`
	Benefits          []string `json:"benefits"`
	Keywords          []string `json:"keywords"`
}

// PriorArtReference is one entry of 02_research/similar_patents.json.
type PriorArtReference struct {
	Title         string   `json:"title"`
	PublicationNo string   `json:"publication_no"`
	Country       string   `json:"country"`
	Relevance     float64  `json:"relevance"`
	KeyPoints     []string `json:"key_points"`
	Analysis      string   `json:"analysis"`
}

type Section struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	MinWords     int      `json:"min_words,omitempty"`
	MaxWords     int      `json:"max_words,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// StructureMapping is written to 03_outline/structure_mapping.json.
type StructureMapping struct {
	PatentTitle string    `json:"patent_title"`
	Sections    []Section `json:"sections"`
}

type StageState struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// RunMetadata is written to metadata/run.json and rewritten after each stage.
type RunMetadata struct {
	RunID       string       `json:"run_id"`
	Backend     string       `json:"backend"`
	InputPath   string       `json:"input_path"`
	InputSHA256 string       `json:"input_sha256,omitempty"`
	TaskPrompt  string       `json:"task_prompt,omitempty"`
	Status      RunStatus    `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at,omitempty"`
	Stages      []StageState `json:"stages"`
}

// LLMCall is one audited model invocation.
type LLMCall struct {
	CallID       string        `json:"call_id"`
	RunID        string        `json:"run_id"`
	Operation    string        `json:"operation"`
	ProviderName string        `json:"provider_name"`
	Model        string        `json:"model"`
	Status       string        `json:"status"`
	ErrorType    string        `json:"error_type,omitempty"`
	PromptChars  int           `json:"prompt_chars"`
	OutputChars  int           `json:"output_chars"`
	Latency      time.Duration `json:"latency"`
}
