package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"patentflow/internal/workspace"
)

var firstClaimPattern = regexp.MustCompile(`(?m)^\s*1\.`)

const fallbackClaim = "1. 一种数据处理方法，其特征在于，包括：\n获取输入数据；\n执行目标处理流程；\n输出处理结果。\n\n"

// WriteClaims drafts the claim set.
func WriteClaims(ctx context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	outline := rc.Store.ReadText(workspace.PatentOutline, "")
	abstract := rc.Store.ReadText(workspace.Abstract, "")

	prompt := fmt.Sprintf(`生成专利权利要求书 Markdown：
1. 至少包含方法独立权利要求1项、方法从属权利要求5到10项、装置或系统独立权利要求1项及其从属3到5项、电子设备独立权利要求1项、存储介质独立权利要求1项。
2. 句式示例：“1. 一种……方法，其特征在于，包括：”“2. 根据权利要求1所述的方法，其特征在于，……”。
3. 方法步骤之间使用分号分隔，术语与摘要及大纲一致。
只输出最终 Markdown。

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

摘要：
%s

大纲：
%s
`, rc.task(1500), rc.Reference.Agent(ClaimsWriter, 7000), rc.Reference.Guide(12000), rc.Reference.Skill(10000), jsonText(info), abstract, trim(outline, 12000))

	resp, err := rc.generate(ctx, call{op: ClaimsWriter, prompt: prompt, maxTokens: 4200, temperature: 0.2})
	if err != nil {
		return err
	}
	return rc.Store.WriteText(workspace.Claims, EnsureFirstClaim(resp)+"\n")
}

// EnsureFirstClaim prepends a minimal claim 1 when no line starts with "1.".
func EnsureFirstClaim(claims string) string {
	claims = strings.TrimSpace(claims)
	if firstClaimPattern.MatchString(claims) {
		return claims
	}
	return strings.TrimSpace(fallbackClaim + claims)
}
