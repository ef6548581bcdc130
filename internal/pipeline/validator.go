package pipeline

import (
	"fmt"
	"strings"

	"patentflow/internal/stages"
	"patentflow/internal/workspace"
)

var requiredOutputs = map[string][]string{
	stages.InputParser: {workspace.ParsedInfo},
	stages.PatentSearcher: {
		workspace.SimilarPatents,
		workspace.PriorArtAnalysis,
		workspace.WritingStyleGuide,
	},
	stages.OutlineGenerator:  {workspace.PatentOutline, workspace.StructureMapping},
	stages.AbstractWriter:    {workspace.Abstract},
	stages.ClaimsWriter:      {workspace.Claims},
	stages.DescriptionWriter: {workspace.Description},
	stages.DiagramGenerator: {
		workspace.MethodFlowchart,
		workspace.DeviceStructure,
		workspace.SystemArchitecture,
	},
	stages.MarkdownMerger: {workspace.CompletePatent},
}

// StageContractError lists every required artifact a stage failed to
// produce.
type StageContractError struct {
	Stage   string
	Missing []string
}

func (e *StageContractError) Error() string {
	return fmt.Sprintf("stage %s missing outputs: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// RequiredOutputs returns the artifact paths stage must leave behind.
func RequiredOutputs(stage string) []string {
	return append([]string(nil), requiredOutputs[stage]...)
}

// Validate checks the output contract of stage. It only reads the store and
// can be called any number of times.
func Validate(store *workspace.Store, stage string) error {
	var missing []string
	for _, rel := range requiredOutputs[stage] {
		if !store.Exists(rel) {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return &StageContractError{Stage: stage, Missing: missing}
	}
	return nil
}
