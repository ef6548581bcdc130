package providers

import (
	"context"
	"strings"
	"unicode"
)

// MockProvider returns deterministic, well-formed output for every pipeline
// operation. It never calls the network.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

const mockParagraph = "本实施例中，数据处理装置首先获取待处理数据，并根据预设的特征提取规则对所述待处理数据进行分析，得到特征信息；随后，根据所述特征信息与策略参数进行匹配，确定目标处理策略；最后，按照所述目标处理策略执行处理流程并输出处理结果。"

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-patent-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, callFailed("mock", err)
	}
	var text string
	switch op := strings.ToLower(req.Operation); {
	case op == "input-parser":
		text = mockParsedInfo
	case op == "patent-searcher":
		text = mockResearch
	case op == "outline-generator":
		text = mockOutline
	case op == "abstract-writer":
		text = "本申请公开了一种数据处理方法、装置、设备及存储介质，通过特征分析与策略匹配提升处理效率并降低资源消耗。"
	case op == "claims-writer":
		text = mockClaims
	case strings.HasPrefix(op, "description"):
		text = repeatToLength(mockParagraph, maxTokensOr(req.MaxTokens)*6/5)
	case op == "diagram-generator":
		text = mockDiagrams
	default:
		text = "Mock response."
	}
	return GenerateResponse{Text: text}, info, nil
}

func repeatToLength(unit string, target int) string {
	var b strings.Builder
	n := 0
	for n < target {
		b.WriteString(unit)
		b.WriteString("\n\n")
		for _, r := range unit {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return strings.TrimSpace(b.String())
}

const mockParsedInfo = `{
  "title": "一种基于特征分析的数据处理方法、装置、设备及存储介质",
  "technical_problem": "现有数据处理方案在高并发场景下处理效率低、资源消耗大。",
  "existing_solutions": ["基于单一规则引擎的处理方案", "基于集中式调度的处理方案"],
  "existing_drawbacks": ["扩展性不足", "异常场景处理能力弱"],
  "technical_solution": "通过特征分析确定目标处理策略，并按照目标处理策略执行处理流程。",
  "benefits": ["提高处理吞吐能力", "降低系统资源占用"],
  "keywords": ["数据处理", "特征分析", "策略匹配", "并发调度", "异常恢复"]
}`

const mockResearch = `<<<SIMILAR_PATENTS_JSON>>>
[{"title":"一种分布式数据处理方法","publication_no":"CN100000001A","country":"CN","relevance":0.82,"key_points":["任务分片","结果汇聚"],"analysis":"可参考其背景技术写法。"}]
<<<END_SIMILAR_PATENTS_JSON>>>
<<<PRIOR_ART_ANALYSIS_MD>>>
# 现有技术分析

现有方案多依赖集中式调度，扩展性不足。
<<<END_PRIOR_ART_ANALYSIS_MD>>>
<<<WRITING_STYLE_GUIDE_MD>>>
# 写作风格建议

- 使用客观、法律化语句
<<<END_WRITING_STYLE_GUIDE_MD>>>`

const mockOutline = `<<<PATENT_OUTLINE_MD>>>
# 专利大纲

- 说明书摘要
- 权利要求书
- 说明书
<<<END_PATENT_OUTLINE_MD>>>
<<<STRUCTURE_MAPPING_JSON>>>
{"patent_title":"一种基于特征分析的数据处理方法、装置、设备及存储介质","sections":[{"id":"01_abstract","title":"说明书摘要","min_words":200,"max_words":300}]}
<<<END_STRUCTURE_MAPPING_JSON>>>`

const mockClaims = `1. 一种数据处理方法，其特征在于，包括：
获取待处理数据；
对所述待处理数据进行特征分析，得到特征信息；
根据所述特征信息确定目标处理策略，并输出处理结果。

2. 根据权利要求1所述的方法，其特征在于，所述特征分析包括统计特征提取。`

const mockDiagrams = "<<<FLOWCHART_MERMAID>>>\n```mermaid\ngraph TD\n    A[S101: 获取待处理数据] --> B[S102: 特征分析]\n    B --> C[S103: 输出处理结果]\n```\n<<<END_FLOWCHART_MERMAID>>>\n" +
	"<<<DEVICE_MERMAID>>>\n```mermaid\ngraph TB\n    M201[获取模块 201] --> M202[分析模块 202]\n```\n<<<END_DEVICE_MERMAID>>>\n" +
	"<<<SYSTEM_MERMAID>>>\n```mermaid\ngraph LR\n    C[客户端] --> S[核心处理服务]\n```\n<<<END_SYSTEM_MERMAID>>>"
