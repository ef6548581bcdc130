package stages

import (
	"context"
	"fmt"
	"strings"

	"patentflow/internal/workspace"
)

const (
	AbstractPrefix   = "本申请公开了"
	AbstractMaxRunes = 320
)

// WriteAbstract drafts the abstract under the lead-in and length contract.
func WriteAbstract(ctx context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	outline := rc.Store.ReadText(workspace.PatentOutline, "")

	prompt := fmt.Sprintf(`撰写中国专利说明书摘要：以“%s”开头，不超过300字，包含技术问题、技术方案和有益效果，用语客观，不作宣传。只输出摘要正文。

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

大纲：
%s
`, AbstractPrefix, rc.task(1500), rc.Reference.Agent(AbstractWriter, 6000), rc.Reference.Guide(12000), rc.Reference.Skill(10000), jsonText(info), trim(outline, 12000))

	resp, err := rc.generate(ctx, call{op: AbstractWriter, prompt: prompt, maxTokens: 900, temperature: 0.1})
	if err != nil {
		return err
	}
	return rc.Store.WriteText(workspace.Abstract, NormalizeAbstract(resp)+"\n")
}

// NormalizeAbstract forces the required lead-in and caps the length at
// AbstractMaxRunes. Truncated text ends with a full stop.
func NormalizeAbstract(raw string) string {
	abstract := strings.TrimSpace(raw)
	if !strings.HasPrefix(abstract, AbstractPrefix) {
		abstract = AbstractPrefix + strings.TrimLeft(abstract, "，,。 .")
	}
	runes := []rune(abstract)
	if len(runes) > AbstractMaxRunes {
		abstract = strings.TrimRight(string(runes[:AbstractMaxRunes-1]), " \t\r\n") + "。"
	}
	return abstract
}
