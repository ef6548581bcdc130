package stages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"patentflow/internal/config"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

const (
	OpDescriptionSection = "description-section"
	OpSectionExpand      = "description-section-expand"
	OpDescriptionExpand  = "description-expand"
)

// DescriptionSection is one independently generated part of the
// description.
type DescriptionSection struct {
	Heading   string
	MinChars  int
	MaxTokens int
}

// DescriptionSections lists the parts in document order. The two
// embodiment parts share the "具体实施方式" heading.
var DescriptionSections = []DescriptionSection{
	{Heading: "技术领域", MinChars: 220, MaxTokens: 1200},
	{Heading: "背景技术", MinChars: 1600, MaxTokens: 2600},
	{Heading: "发明内容", MinChars: 2000, MaxTokens: 3000},
	{Heading: "附图说明", MinChars: 380, MaxTokens: 1400},
	{Heading: "具体实施方式（实施例一）", MinChars: 3800, MaxTokens: 3600},
	{Heading: "具体实施方式（实施例二及变体）", MinChars: 3800, MaxTokens: 3600},
}

// WriteDescription generates every section through the length-enforcing
// helper, joins them in order and, if the whole text is still short, asks
// once for a whole-document expansion.
func WriteDescription(ctx context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	common := trim(strings.Join([]string{
		"parsed_info:\n" + jsonText(info),
		"outline:\n" + rc.Store.ReadText(workspace.PatentOutline, ""),
		"abstract:\n" + rc.Store.ReadText(workspace.Abstract, ""),
		"claims:\n" + rc.Store.ReadText(workspace.Claims, ""),
		"prior_art:\n" + rc.Store.ReadText(workspace.PriorArtAnalysis, ""),
		"task_prompt:\n" + rc.task(0),
		"instruction:\n" + rc.Reference.Agent(DescriptionWriter, 9000),
		"guide:\n" + rc.Reference.Guide(18000),
		"skill_guide:\n" + rc.Reference.Skill(14000),
	}, "\n\n"), rc.Options.ContextBudget)

	bodies := make([]string, len(DescriptionSections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.ClampParallelism(rc.Options.DescriptionParallelism))
	for i, sec := range DescriptionSections {
		g.Go(func() error {
			text, err := rc.LongSection(gctx, sec, common)
			if err != nil {
				return fmt.Errorf("section %s: %w", sec.Heading, err)
			}
			bodies[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	description := AssembleDescription(bodies)
	if n := util.CompactLen(description); n < rc.Options.DescriptionMinChars {
		rc.logger().Info("description below threshold, expanding",
			zap.Int("characters", n),
			zap.Int("required", rc.Options.DescriptionMinChars),
		)
		prompt := fmt.Sprintf("以下是专利说明书草稿，当前长度不足 %d 字。请在保持术语一致、逻辑完整的前提下扩写“具体实施方式”部分，输出完整的说明书 Markdown。\n\n%s\n", rc.Options.DescriptionMinChars, description)
		expanded, err := rc.generate(ctx, call{op: OpDescriptionExpand, prompt: prompt, maxTokens: 3800, temperature: 0.25, long: true})
		if err != nil {
			return err
		}
		if expanded != "" {
			description = expanded
		}
	}
	return rc.Store.WriteText(workspace.Description, strings.TrimSpace(description)+"\n")
}

// LongSection issues one generation call for a section and, when the
// result is shorter than sec.MinChars (whitespace excluded), exactly one
// expansion call whose output replaces it.
func (rc *RunContext) LongSection(ctx context.Context, sec DescriptionSection, common string) (string, error) {
	prompt := fmt.Sprintf(`只输出“%s”章节正文，不要输出其他标题。
要求：中文技术写作风格，客观、可实施；术语与上下文一致；不少于 %d 个中文字符。

上下文：
%s
`, sec.Heading, sec.MinChars, common)
	text, err := rc.generate(ctx, call{op: OpDescriptionSection, prompt: prompt, maxTokens: sec.MaxTokens, temperature: 0.25, long: true})
	if err != nil {
		return "", err
	}
	if util.CompactLen(text) >= sec.MinChars {
		return text, nil
	}
	expand := fmt.Sprintf("在不改变原有技术逻辑的前提下扩写以下内容，补足到不少于 %d 个中文字符。只输出扩写后的完整正文：\n%s\n", sec.MinChars, text)
	return rc.generate(ctx, call{op: OpSectionExpand, prompt: expand, maxTokens: sec.MaxTokens, temperature: 0.3, long: true})
}

// AssembleDescription joins the section bodies under their headings.
// bodies must be in DescriptionSections order.
func AssembleDescription(bodies []string) string {
	var b strings.Builder
	for i, sec := range DescriptionSections {
		body := ""
		if i < len(bodies) {
			body = strings.TrimSpace(bodies[i])
		}
		switch {
		case strings.HasPrefix(sec.Heading, "具体实施方式（实施例一）"):
			b.WriteString("## 具体实施方式\n\n")
		case strings.HasPrefix(sec.Heading, "具体实施方式"):
		default:
			b.WriteString("## " + sec.Heading + "\n\n")
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()) + "\n"
}
