package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DescriptionParallelismMin = 1
	DescriptionParallelismMax = 6
)

type Config struct {
	APIAddr           string `yaml:"api_addr"`
	TemporalAddress   string `yaml:"temporal_address"`
	TemporalTaskQueue string `yaml:"temporal_task_queue"`
	PostgresURL       string `yaml:"postgres_url"`
	OutputRoot        string `yaml:"output_root"`
	ReferenceDir      string `yaml:"reference_dir"`

	Backend                string `yaml:"backend"`
	MaxStageRetries        int    `yaml:"max_stage_retries"`
	TaskPrompt             string `yaml:"task_prompt"`
	DescriptionParallelism int    `yaml:"description_parallelism"`
	InputBudget            int    `yaml:"input_budget"`
	ContextBudget          int    `yaml:"context_budget"`
	TaskBudget             int    `yaml:"task_budget"`
	DescriptionMinChars    int    `yaml:"description_min_chars"`
	ModelTimeoutSecs       int    `yaml:"model_timeout_secs"`
	LongModelTimeoutSecs   int    `yaml:"long_model_timeout_secs"`

	AnthropicModel   string `yaml:"anthropic_model"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	OpenAIModel      string `yaml:"openai_model"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	GeminiModel      string `yaml:"gemini_model"`
	GroqModel        string `yaml:"groq_model"`
	OllamaModel      string `yaml:"ollama_model"`
	OllamaBaseURL    string `yaml:"ollama_base_url"`

	Verbose bool `yaml:"verbose"`
}

func Load() Config {
	cfg := Config{
		APIAddr:                getenv("PATENTFLOW_API_ADDR", ":8080"),
		TemporalAddress:        getenv("PATENTFLOW_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:      getenv("PATENTFLOW_TEMPORAL_TASK_QUEUE", "patentflow"),
		PostgresURL:            getenv("PATENTFLOW_POSTGRES_URL", ""),
		OutputRoot:             getenv("PATENTFLOW_OUTPUT_ROOT", "./output"),
		ReferenceDir:           getenv("PATENTFLOW_REFERENCE_DIR", ""),
		Backend:                strings.ToLower(getenv("PATENTFLOW_BACKEND", getenv("PATENT_RUNTIME_BACKEND", "anthropic"))),
		MaxStageRetries:        getenvInt("PATENTFLOW_MAX_STAGE_RETRIES", 3),
		TaskPrompt:             getenv("PATENTFLOW_TASK_PROMPT", ""),
		DescriptionParallelism: getenvInt("PATENTFLOW_DESCRIPTION_PARALLELISM", getenvInt("PATENT_DESCRIPTION_PARALLELISM", 2)),
		InputBudget:            getenvInt("PATENTFLOW_INPUT_BUDGET", 30000),
		ContextBudget:          getenvInt("PATENTFLOW_CONTEXT_BUDGET", 30000),
		TaskBudget:             getenvInt("PATENTFLOW_TASK_BUDGET", 2000),
		DescriptionMinChars:    getenvInt("PATENTFLOW_DESCRIPTION_MIN_CHARS", 10000),
		ModelTimeoutSecs:       getenvInt("PATENTFLOW_MODEL_TIMEOUT_SECONDS", 900),
		LongModelTimeoutSecs:   getenvInt("PATENTFLOW_LONG_MODEL_TIMEOUT_SECONDS", 1200),
		AnthropicModel:         getenv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		AnthropicBaseURL:       getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		OpenAIModel:            getenv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:          getenv("OPENAI_BASE_URL", ""),
		GeminiModel:            getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		GroqModel:              getenv("PATENTFLOW_GROQ_MODEL", "llama-3.1-8b-instant"),
		OllamaModel:            getenv("PATENTFLOW_OLLAMA_MODEL", "qwen2.5:14b"),
		OllamaBaseURL:          getenv("PATENTFLOW_OLLAMA_BASE_URL", "http://localhost:11434"),
		Verbose:                getenvBool("PATENTFLOW_VERBOSE", false),
	}
	return cfg.Normalize()
}

// LoadFile overlays a YAML file on top of the environment configuration.
// Keys missing from the file keep their env/default values.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}

// Normalize clamps numeric options into their supported ranges.
func (c Config) Normalize() Config {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "anthropic"
	}
	if c.MaxStageRetries < 1 {
		c.MaxStageRetries = 1
	}
	c.DescriptionParallelism = ClampParallelism(c.DescriptionParallelism)
	c.InputBudget = positiveOr(c.InputBudget, 30000)
	c.ContextBudget = positiveOr(c.ContextBudget, 30000)
	c.TaskBudget = positiveOr(c.TaskBudget, 2000)
	c.DescriptionMinChars = positiveOr(c.DescriptionMinChars, 10000)
	c.ModelTimeoutSecs = positiveOr(c.ModelTimeoutSecs, 900)
	c.LongModelTimeoutSecs = positiveOr(c.LongModelTimeoutSecs, 1200)
	return c
}

func ClampParallelism(n int) int {
	if n < DescriptionParallelismMin {
		return DescriptionParallelismMin
	}
	if n > DescriptionParallelismMax {
		return DescriptionParallelismMax
	}
	return n
}

func positiveOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
