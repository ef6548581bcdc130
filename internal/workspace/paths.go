package workspace

import "strings"

// Artifact paths relative to the run root. External tooling previews these
// exact locations.
const (
	ParsedInfo        = "01_input/parsed_info.json"
	RawDocumentPrefix = "01_input/raw_document"
	RawDocumentText   = "01_input/raw_document.md"

	SimilarPatents    = "02_research/similar_patents.json"
	PriorArtAnalysis  = "02_research/prior_art_analysis.md"
	WritingStyleGuide = "02_research/writing_style_guide.md"

	PatentOutline    = "03_outline/patent_outline.md"
	StructureMapping = "03_outline/structure_mapping.json"

	Abstract    = "04_content/abstract.md"
	Claims      = "04_content/claims.md"
	Description = "04_content/description.md"
	Figures     = "04_content/figures.md"

	MethodFlowchart    = "05_diagrams/flowcharts/method_flowchart.mmd"
	DeviceStructure    = "05_diagrams/structural_diagrams/device_structure.mmd"
	SystemArchitecture = "05_diagrams/sequence_diagrams/system_architecture.mmd"

	CompletePatent     = "06_final/complete_patent.md"
	CompletePatentHTML = "06_final/complete_patent.html"
	SummaryReport      = "06_final/summary_report.md"

	RunMetadata = "metadata/run.json"
)

// Phase directories created up front so an empty workspace already has the
// shape external viewers expect.
var phaseDirs = []string{
	"01_input",
	"02_research",
	"03_outline",
	"04_content",
	"05_diagrams/flowcharts",
	"05_diagrams/structural_diagrams",
	"05_diagrams/sequence_diagrams",
	"06_final",
	"metadata",
}

// RawDocumentCopy is where the untouched input is kept. Markdown inputs get
// a distinct name so the extracted raw_document.md does not overwrite them.
func RawDocumentCopy(ext string) string {
	switch ext = strings.ToLower(ext); ext {
	case ".md", ".markdown":
		return RawDocumentPrefix + ".source" + ext
	default:
		return RawDocumentPrefix + ext
	}
}

// ErrorLog is the cumulative failure log for one stage.
func ErrorLog(stage string) string {
	return stage + "_error.log"
}
