package stages

import (
	"context"
	"fmt"
	"math"

	"patentflow/internal/extract"
	"patentflow/internal/models"
	"patentflow/internal/workspace"
)

const (
	maxReferences         = 10
	maxKeyPoints          = 6
	defaultRelevance      = 0.6
	synthesizedRelevance  = 0.65
	defaultPriorArtMD     = "# 现有技术分析\n\n未获取到外部检索结果，已基于输入技术主题生成检索方向与对比思路。"
	defaultStyleGuideMD   = "# 写作风格建议\n\n- 使用客观、法律化语句\n- 强化步骤编号、模块编号\n- 保持术语前后一致"
	synthesizedAnalysis   = "可用于学习背景技术与有益效果写法。"
	unnamedReferenceTitle = "未命名参考专利"
)

var (
	synthesisTopics      = []string{"数据处理", "系统架构", "异常恢复", "并发控制", "资源调度"}
	synthesizedKeyPoints = []string{"流程模块化", "可扩展处理", "稳定性增强"}
)

// SearchPriorArt derives the prior-art summary from the disclosure.
func SearchPriorArt(ctx context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	prompt := fmt.Sprintf(`你是专利检索分析助手。无法访问外部检索时，请基于技术主题给出建议检索方向和可参考的专利类型。

只按以下格式输出：
<<<SIMILAR_PATENTS_JSON>>>
[{"title":"","publication_no":"","country":"CN","relevance":0.9,"key_points":[""],"analysis":""}]
<<<END_SIMILAR_PATENTS_JSON>>>
<<<PRIOR_ART_ANALYSIS_MD>>>
# 现有技术分析
...
<<<END_PRIOR_ART_ANALYSIS_MD>>>
<<<WRITING_STYLE_GUIDE_MD>>>
# 写作风格建议
...
<<<END_WRITING_STYLE_GUIDE_MD>>>

约束：参考专利 5 到 10 条；不得照抄现有专利原文；结论要能支撑后续权利要求与说明书撰写。

附加任务要求：
%s

执行指令：
%s

parsed_info：
%s
`, rc.task(0), rc.Reference.Agent(PatentSearcher, 8000), jsonText(info))

	resp, err := rc.generate(ctx, call{op: PatentSearcher, prompt: prompt, maxTokens: 3800, temperature: 0.2})
	if err != nil {
		return err
	}

	refs := NormalizeReferences(extract.JSON(extract.Tagged(resp, "SIMILAR_PATENTS_JSON")), info.Keywords)
	analysis := extract.Tagged(resp, "PRIOR_ART_ANALYSIS_MD")
	if analysis == "" {
		analysis = defaultPriorArtMD
	}
	style := extract.Tagged(resp, "WRITING_STYLE_GUIDE_MD")
	if style == "" {
		style = defaultStyleGuideMD
	}

	if err := rc.Store.WriteJSON(workspace.SimilarPatents, refs); err != nil {
		return err
	}
	if err := rc.Store.WriteText(workspace.PriorArtAnalysis, analysis+"\n"); err != nil {
		return err
	}
	return rc.Store.WriteText(workspace.WritingStyleGuide, style+"\n")
}

// NormalizeReferences keeps at most ten well-formed references. When none
// survive, references are synthesized from the keywords.
func NormalizeReferences(r extract.Result, keywords []string) []models.PriorArtReference {
	items, _ := r.Array()
	out := make([]models.PriorArtReference, 0, maxReferences)
	for _, item := range items {
		if len(out) == maxReferences {
			break
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keyPoints := extract.List(m["key_points"])
		if len(keyPoints) > maxKeyPoints {
			keyPoints = keyPoints[:maxKeyPoints]
		}
		out = append(out, models.PriorArtReference{
			Title:         textOr(m["title"], unnamedReferenceTitle),
			PublicationNo: textOr(m["publication_no"], "N/A"),
			Country:       textOr(m["country"], "CN"),
			Relevance:     relevance(m["relevance"]),
			KeyPoints:     keyPoints,
			Analysis:      extract.Text(m["analysis"]),
		})
	}
	if len(out) > 0 {
		return out
	}

	topics := keywords
	if len(topics) > 5 {
		topics = topics[:5]
	}
	if len(topics) == 0 {
		topics = synthesisTopics
	}
	for i, kw := range topics {
		out = append(out, models.PriorArtReference{
			Title:         fmt.Sprintf("面向%s的改进型技术方案", kw),
			PublicationNo: fmt.Sprintf("CN-REF-%03d", i+1),
			Country:       "CN",
			Relevance:     synthesizedRelevance,
			KeyPoints:     append([]string(nil), synthesizedKeyPoints...),
			Analysis:      synthesizedAnalysis,
		})
	}
	return out
}

// relevance parses the self-reported score, clamped to [0,1].
func relevance(v any) float64 {
	f, ok := extract.Float(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultRelevance
	}
	return math.Max(0, math.Min(1, f))
}
