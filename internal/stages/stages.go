// Package stages holds the eight ordered transformation units of a patent
// drafting run. Each stage reads earlier artifacts from the run workspace,
// calls the model at most a bounded number of times and writes its own
// artifacts back.
package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"patentflow/internal/providers"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

const (
	InputParser       = "input-parser"
	PatentSearcher    = "patent-searcher"
	OutlineGenerator  = "outline-generator"
	AbstractWriter    = "abstract-writer"
	ClaimsWriter      = "claims-writer"
	DescriptionWriter = "description-writer"
	DiagramGenerator  = "diagram-generator"
	MarkdownMerger    = "markdown-merger"
)

// Func runs one stage against the shared run context.
type Func func(ctx context.Context, rc *RunContext) error

type Stage struct {
	Name string
	Run  Func
}

// Plan returns the fixed stage order.
func Plan() []Stage {
	return []Stage{
		{Name: InputParser, Run: ParseInput},
		{Name: PatentSearcher, Run: SearchPriorArt},
		{Name: OutlineGenerator, Run: GenerateOutline},
		{Name: AbstractWriter, Run: WriteAbstract},
		{Name: ClaimsWriter, Run: WriteClaims},
		{Name: DescriptionWriter, Run: WriteDescription},
		{Name: DiagramGenerator, Run: GenerateDiagrams},
		{Name: MarkdownMerger, Run: MergeDocument},
	}
}

func ByName(name string) (Stage, bool) {
	for _, s := range Plan() {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

func Names() []string {
	plan := Plan()
	out := make([]string, len(plan))
	for i, s := range plan {
		out[i] = s.Name
	}
	return out
}

// Options are the character budgets and limits applied by every stage.
type Options struct {
	InputBudget            int
	ContextBudget          int
	TaskBudget             int
	DescriptionMinChars    int
	DescriptionParallelism int
	ModelTimeout           time.Duration
	LongModelTimeout       time.Duration
}

func DefaultOptions() Options {
	return Options{
		InputBudget:            30000,
		ContextBudget:          30000,
		TaskBudget:             2000,
		DescriptionMinChars:    10000,
		DescriptionParallelism: 2,
		ModelTimeout:           900 * time.Second,
		LongModelTimeout:       1200 * time.Second,
	}
}

// RunContext is shared by all stages of one run. Stages keep artifacts in
// Store and nowhere else.
type RunContext struct {
	RunID      string
	InputPath  string
	Backend    string
	TaskPrompt string

	Store     *workspace.Store
	Model     providers.LLMProvider
	Reference Reference
	Options   Options
	Logger    *zap.Logger
	Now       func() time.Time
}

func (rc *RunContext) now() time.Time {
	if rc.Now == nil {
		return time.Now()
	}
	return rc.Now()
}

func (rc *RunContext) logger() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}

// task returns the budgeted task prompt or the "none" placeholder.
func (rc *RunContext) task(limit int) string {
	if limit <= 0 || limit > rc.Options.TaskBudget {
		limit = rc.Options.TaskBudget
	}
	if t := util.TrimContext(rc.TaskPrompt, limit); t != "" {
		return t
	}
	return "无"
}

type call struct {
	op          string
	prompt      string
	maxTokens   int
	temperature float64
	long        bool
}

func (rc *RunContext) generate(ctx context.Context, c call) (string, error) {
	timeout := rc.Options.ModelTimeout
	if c.long {
		timeout = rc.Options.LongModelTimeout
	}
	resp, info, err := rc.Model.Generate(ctx, providers.GenerateRequest{
		Operation:   c.op,
		Prompt:      c.prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Timeout:     timeout,
	})
	if err != nil {
		return "", err
	}
	rc.logger().Debug("model call",
		zap.String("operation", c.op),
		zap.String("provider", info.Name),
		zap.Int("output_chars", len([]rune(resp.Text))),
	)
	return strings.TrimSpace(resp.Text), nil
}

// Reference locates optional guidance material: per-stage agent
// instructions under agents/, the skill guide and the writing guide.
type Reference struct {
	Dir string
}

func (r Reference) read(rel string) string {
	if r.Dir == "" {
		return ""
	}
	b, err := os.ReadFile(filepath.Join(r.Dir, rel))
	if err != nil {
		return ""
	}
	return string(b)
}

func (r Reference) Agent(stage string, limit int) string {
	return util.TrimContext(r.read(filepath.Join("agents", stage+".md")), limit)
}

func (r Reference) Skill(limit int) string {
	return util.TrimContext(r.read("PATENT_SKILL.md"), limit)
}

func (r Reference) Guide(limit int) string {
	return util.TrimContext(r.read("patent-writing-guide.md"), limit)
}

func trim(text string, limit int) string {
	return util.TrimContext(text, limit)
}
