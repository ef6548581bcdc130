package stages

import (
	"context"
	"fmt"
	"strings"

	"patentflow/internal/extract"
	"patentflow/internal/models"
	"patentflow/internal/workspace"
)

// EmbodimentsMinWords is the floor for the detailed-embodiments section.
const EmbodimentsMinWords = 10000

type requiredSection struct {
	section models.Section
	match   []string
}

var requiredSections = []requiredSection{
	{models.Section{ID: "01_abstract", Title: "说明书摘要", MinWords: 200, MaxWords: 300}, []string{"abstract", "摘要"}},
	{models.Section{ID: "02_claims", Title: "权利要求书"}, []string{"claim", "权利要求"}},
	{models.Section{ID: "03_technical_field", Title: "技术领域", MinWords: 100}, []string{"technical_field", "技术领域"}},
	{models.Section{ID: "04_background", Title: "背景技术", MinWords: 800}, []string{"background", "背景技术"}},
	{models.Section{ID: "05_invention_content", Title: "发明内容", MinWords: 1500}, []string{"invention_content", "summary", "发明内容"}},
	{models.Section{ID: "06_drawings", Title: "附图说明", MinWords: 300}, []string{"drawing", "附图说明"}},
	{models.Section{ID: "07_embodiments", Title: "具体实施方式", MinWords: EmbodimentsMinWords}, []string{"embodiment", "具体实施方式"}},
}

// GenerateOutline derives the outline narrative and structure mapping.
func GenerateOutline(ctx context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	var refs []models.PriorArtReference
	rc.Store.ReadJSON(workspace.SimilarPatents, &refs)
	if len(refs) > 6 {
		refs = refs[:6]
	}

	prompt := fmt.Sprintf(`你是专利大纲设计专家。只输出下面两个区块：

<<<PATENT_OUTLINE_MD>>>
# 专利大纲
...
<<<END_PATENT_OUTLINE_MD>>>

<<<STRUCTURE_MAPPING_JSON>>>
{"patent_title": "", "sections": [{"id": "01_abstract", "title": "说明书摘要", "min_words": 200, "max_words": 300, "requirements": [""]}]}
<<<END_STRUCTURE_MAPPING_JSON>>>

要求：覆盖摘要、权利要求书及说明书全部章节；“具体实施方式” min_words 不低于 %d；权利要求覆盖方法、装置或系统、设备、存储介质；section id 使用稳定的英文下划线命名。

附加任务要求：
%s

执行指令：
%s

写作指南：
%s

技能规范：
%s

parsed_info：
%s

similar_patents：
%s
`, EmbodimentsMinWords, rc.task(0), rc.Reference.Agent(OutlineGenerator, 8000), rc.Reference.Guide(16000), rc.Reference.Skill(12000), jsonText(info), jsonText(refs))

	resp, err := rc.generate(ctx, call{op: OutlineGenerator, prompt: prompt, maxTokens: 5000, temperature: 0.2})
	if err != nil {
		return err
	}

	outline := extract.Tagged(resp, "PATENT_OUTLINE_MD")
	if outline == "" {
		outline = fmt.Sprintf("# 专利大纲\n\n- 专利名称：%s\n- 包含摘要、权利要求书、说明书及附图。", info.Title)
	}
	mapping, _ := extract.JSON(extract.Tagged(resp, "STRUCTURE_MAPPING_JSON")).Object()

	if err := rc.Store.WriteText(workspace.PatentOutline, outline+"\n"); err != nil {
		return err
	}
	return rc.Store.WriteJSON(workspace.StructureMapping, NormalizeStructureMapping(mapping, info.Title))
}

// NormalizeStructureMapping guarantees the abstract, claims and every
// description subsection are present and that the embodiments section asks
// for at least EmbodimentsMinWords.
func NormalizeStructureMapping(payload map[string]any, title string) models.StructureMapping {
	out := models.StructureMapping{
		PatentTitle: textOr(payload["patent_title"], title),
	}
	if out.PatentTitle == "" {
		out.PatentTitle = defaultTitle
	}
	items, _ := payload["sections"].([]any)
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sec := models.Section{
			ID:           extract.Text(m["id"]),
			Title:        extract.Text(m["title"]),
			MinWords:     intValue(m["min_words"]),
			MaxWords:     intValue(m["max_words"]),
			Requirements: extract.List(m["requirements"]),
		}
		if sec.ID == "" && sec.Title == "" {
			continue
		}
		if sec.ID == "" {
			sec.ID = fmt.Sprintf("section_%02d", i+1)
		}
		if sec.Title == "" {
			sec.Title = sec.ID
		}
		out.Sections = append(out.Sections, sec)
	}

	for _, req := range requiredSections {
		idx := findSection(out.Sections, req.match)
		if idx < 0 {
			out.Sections = append(out.Sections, req.section)
			idx = len(out.Sections) - 1
		}
		if req.section.MinWords == EmbodimentsMinWords && out.Sections[idx].MinWords < EmbodimentsMinWords {
			out.Sections[idx].MinWords = EmbodimentsMinWords
		}
	}
	return out
}

func findSection(sections []models.Section, match []string) int {
	for i, s := range sections {
		id := strings.ToLower(s.ID)
		for _, m := range match {
			if strings.Contains(id, m) || strings.Contains(s.Title, m) {
				return i
			}
		}
	}
	return -1
}

func intValue(v any) int {
	f, ok := extract.Float(v)
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}
