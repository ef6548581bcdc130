package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"patentflow/internal/render"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

// MergeDocument assembles the final document and the run summary. It makes
// no model call.
func MergeDocument(_ context.Context, rc *RunContext) error {
	info := readParsedInfo(rc)
	abstract := strings.TrimSpace(rc.Store.ReadText(workspace.Abstract, ""))
	claims := strings.TrimSpace(rc.Store.ReadText(workspace.Claims, ""))
	description := strings.TrimSpace(rc.Store.ReadText(workspace.Description, ""))
	flow := strings.TrimSpace(rc.Store.ReadText(workspace.MethodFlowchart, ""))
	device := strings.TrimSpace(rc.Store.ReadText(workspace.DeviceStructure, ""))
	system := strings.TrimSpace(rc.Store.ReadText(workspace.SystemArchitecture, ""))

	final := FinalDocument(info.Title, abstract, claims, description, flow, device, system)
	if err := rc.Store.WriteText(workspace.CompletePatent, final); err != nil {
		return err
	}

	page, err := render.HTML(info.Title, final)
	if err != nil {
		rc.logger().Warn("html preview skipped", zap.Error(err))
	} else if err := rc.Store.WriteText(workspace.CompletePatentHTML, page); err != nil {
		return err
	}

	return rc.Store.WriteText(workspace.SummaryReport, SummaryReport(SummaryInput{
		RunID:               rc.RunID,
		Backend:             rc.Backend,
		GeneratedAt:         rc.now(),
		AbstractChars:       util.CompactLen(abstract),
		ClaimsChars:         util.CompactLen(claims),
		DescriptionChars:    util.CompactLen(description),
		RequiredDescription: rc.Options.DescriptionMinChars,
	}))
}

// FinalDocument lays out the complete application.
func FinalDocument(title, abstract, claims, description, flow, device, system string) string {
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("## 目录\n1. 说明书摘要\n2. 权利要求书\n3. 说明书\n4. 附图\n\n---\n\n")
	fmt.Fprintf(&b, "## 说明书摘要\n\n%s\n\n---\n\n", abstract)
	fmt.Fprintf(&b, "## 权利要求书\n\n%s\n\n---\n\n", claims)
	fmt.Fprintf(&b, "## 说明书\n\n%s\n\n---\n\n", description)
	b.WriteString("## 附图\n\n")
	fmt.Fprintf(&b, "### 图1 方法流程图\n\n```mermaid\n%s\n```\n\n", flow)
	fmt.Fprintf(&b, "### 图2 装置结构图\n\n```mermaid\n%s\n```\n\n", device)
	fmt.Fprintf(&b, "### 图3 系统架构图\n\n```mermaid\n%s\n```\n", system)
	return b.String()
}

type SummaryInput struct {
	RunID               string
	Backend             string
	GeneratedAt         time.Time
	AbstractChars       int
	ClaimsChars         int
	DescriptionChars    int
	RequiredDescription int
}

func (s SummaryInput) MeetsDescriptionRequirement() bool {
	return s.DescriptionChars >= s.RequiredDescription
}

// SummaryReport renders summary_report.md as "- key: value" lines.
func SummaryReport(s SummaryInput) string {
	meets := "no"
	if s.MeetsDescriptionRequirement() {
		meets = "yes"
	}
	lines := []string{
		"# 生成摘要",
		"",
		"- session_id: " + s.RunID,
		"- runtime_backend: " + s.Backend,
		"- generated_at: " + s.GeneratedAt.Format(time.RFC3339),
		fmt.Sprintf("- abstract_characters: %d", s.AbstractChars),
		fmt.Sprintf("- claims_characters: %d", s.ClaimsChars),
		fmt.Sprintf("- description_characters: %d", s.DescriptionChars),
		fmt.Sprintf("- required_description_characters: %d", s.RequiredDescription),
		"- meets_description_requirement: " + meets,
		"",
	}
	return strings.Join(lines, "\n")
}
