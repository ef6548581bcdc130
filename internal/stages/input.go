package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"patentflow/internal/extract"
	"patentflow/internal/ingest"
	"patentflow/internal/models"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

const (
	defaultTitle             = "一种数据处理方法、装置、设备及存储介质"
	defaultTechnicalProblem  = "提升处理效率并降低资源消耗。"
	defaultTechnicalSolution = "通过模块化流程和参数化策略实现目标任务处理。"
)

var (
	defaultExistingSolutions = []string{"基于单一规则引擎的处理方案", "基于集中式调度的处理方案"}
	defaultExistingDrawbacks = []string{"扩展性不足", "异常场景处理能力弱"}
	defaultBenefits          = []string{"提高处理吞吐能力", "降低系统资源占用", "增强异常处理稳定性"}
	defaultKeywords          = []string{"数据处理", "调度", "异常恢复", "并发", "参数优化"}
)

// ParseInput converts the disclosure to text and extracts ParsedDisclosure.
func ParseInput(ctx context.Context, rc *RunContext) error {
	if err := rc.Store.CopyIn(rc.InputPath, workspace.RawDocumentCopy(filepath.Ext(rc.InputPath))); err != nil {
		return err
	}
	text, err := ingest.Convert(ctx, rc.InputPath)
	if err != nil {
		return err
	}
	if err := rc.Store.WriteText(workspace.RawDocumentText, text); err != nil {
		return err
	}

	prompt := fmt.Sprintf(`你是专利文档解析器，只输出一个 JSON 对象，不要附加说明。

字段：
{
  "title": "",
  "technical_problem": "",
  "existing_solutions": [""],
  "existing_drawbacks": [""],
  "technical_solution": "",
  "benefits": [""],
  "keywords": [""]
}

规则：
1. 只依据文档内容抽取，缺失信息可做最小合理补全。
2. existing_solutions、existing_drawbacks、benefits、keywords 均为数组。
3. keywords 给出 5 到 10 个专业术语。

附加任务要求：
%s

执行指令：
%s

文档内容：
%s
`, rc.task(0), rc.Reference.Agent(InputParser, 8000), util.TrimContext(text, rc.Options.InputBudget))

	resp, err := rc.generate(ctx, call{op: InputParser, prompt: prompt, maxTokens: 2400, temperature: 0.1})
	if err != nil {
		return err
	}
	payload, ok := extract.JSON(resp).Object()
	if !ok {
		rc.logger().Warn("input-parser response has no JSON object, using defaults", zap.Int("response_chars", len([]rune(resp))))
	}
	return rc.Store.WriteJSON(workspace.ParsedInfo, NormalizeParsedInfo(payload))
}

// NormalizeParsedInfo fills every field of the disclosure record; a nil or
// garbage payload yields the complete default record.
func NormalizeParsedInfo(payload map[string]any) models.ParsedDisclosure {
	return models.ParsedDisclosure{
		Title:             textOr(payload["title"], defaultTitle),
		TechnicalProblem:  textOr(payload["technical_problem"], defaultTechnicalProblem),
		ExistingSolutions: listOr(payload["existing_solutions"], defaultExistingSolutions),
		ExistingDrawbacks: listOr(payload["existing_drawbacks"], defaultExistingDrawbacks),
		TechnicalSolution: textOr(payload["technical_solution"], defaultTechnicalSolution),
		Benefits:          listOr(payload["benefits"], defaultBenefits),
		Keywords:          listOr(payload["keywords"], defaultKeywords),
	}
}

// readParsedInfo loads the disclosure record, normalized so later stages
// never see empty fields even if the file is missing.
func readParsedInfo(rc *RunContext) models.ParsedDisclosure {
	var raw map[string]any
	rc.Store.ReadJSON(workspace.ParsedInfo, &raw)
	return NormalizeParsedInfo(raw)
}

func textOr(v any, def string) string {
	if s := extract.Text(v); s != "" {
		return s
	}
	return def
}

func listOr(v any, def []string) []string {
	if l := extract.List(v); len(l) > 0 {
		return l
	}
	return append([]string(nil), def...)
}

func jsonText(v any) string {
	b, err := util.MarshalJSONIndent(v)
	if err != nil {
		return "{}"
	}
	return strings.TrimSpace(string(b))
}
