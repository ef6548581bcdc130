package stages

import (
	"context"
	"fmt"
	"strings"

	"patentflow/internal/extract"
	"patentflow/internal/workspace"
)

const (
	fallbackFlowchart = `graph TD
    A[S101: 获取待处理数据] --> B[S102: 执行特征分析]
    B --> C[S103: 进行策略决策]
    C --> D[S104: 输出处理结果]`

	fallbackDevice = `graph TB
    subgraph 数据处理装置 200
        M201[获取模块 201]
        M202[分析模块 202]
        M203[决策模块 203]
        M204[输出模块 204]
    end
    M201 --> M202 --> M203 --> M204`

	fallbackSystem = `graph LR
    C[客户端] --> G[网关服务]
    G --> S[核心处理服务]
    S --> D[(存储系统)]
    S --> M[监控与告警系统]`
)

type diagram struct {
	tag      string
	path     string
	fallback string
}

var diagrams = []diagram{
	{tag: "FLOWCHART_MERMAID", path: workspace.MethodFlowchart, fallback: fallbackFlowchart},
	{tag: "DEVICE_MERMAID", path: workspace.DeviceStructure, fallback: fallbackDevice},
	{tag: "SYSTEM_MERMAID", path: workspace.SystemArchitecture, fallback: fallbackSystem},
}

const figuresMD = "## 附图清单\n\n" +
	"- 图1：方法流程图（`" + workspace.MethodFlowchart + "`）\n" +
	"- 图2：装置结构图（`" + workspace.DeviceStructure + "`）\n" +
	"- 图3：系统架构图（`" + workspace.SystemArchitecture + "`）\n"

// GenerateDiagrams derives the three Mermaid figures.
func GenerateDiagrams(ctx context.Context, rc *RunContext) error {
	description := rc.Store.ReadText(workspace.Description, "")
	var mapping map[string]any
	rc.Store.ReadJSON(workspace.StructureMapping, &mapping)

	fence := "```"
	prompt := fmt.Sprintf(`输出三个 Mermaid 图，只使用以下结构：
<<<FLOWCHART_MERMAID>>>
%[1]smermaid
...
%[1]s
<<<END_FLOWCHART_MERMAID>>>
<<<DEVICE_MERMAID>>>
%[1]smermaid
...
%[1]s
<<<END_DEVICE_MERMAID>>>
<<<SYSTEM_MERMAID>>>
%[1]smermaid
...
%[1]s
<<<END_SYSTEM_MERMAID>>>

要求：流程图用 graph TD，步骤编号 S101、S102……；装置图用 graph TB，模块编号 201、202……；系统图用 graph LR，体现端、服务与存储的协作；术语与说明书一致。

附加任务要求：
%[2]s

执行指令：
%[3]s

技能规范：
%[4]s

structure_mapping：
%[5]s

说明书节选：
%[6]s
`, fence, rc.task(1200), rc.Reference.Agent(DiagramGenerator, 7000), rc.Reference.Skill(8000), jsonText(mapping), trim(description, 18000))

	resp, err := rc.generate(ctx, call{op: DiagramGenerator, prompt: prompt, maxTokens: 2600, temperature: 0.2})
	if err != nil {
		return err
	}
	for _, d := range diagrams {
		if err := rc.Store.WriteText(d.path, DiagramSource(resp, d.tag, d.fallback)+"\n"); err != nil {
			return err
		}
	}
	return rc.Store.WriteText(workspace.Figures, figuresMD)
}

// DiagramSource returns the first mermaid fence inside the tagged block, or
// fallback when there is none.
func DiagramSource(resp, tag, fallback string) string {
	if src := extract.FencedBlock(extract.Tagged(resp, tag), "mermaid"); src != "" {
		return src
	}
	return strings.TrimSpace(fallback)
}
