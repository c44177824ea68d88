package model

// Stage names, reconciled per SPEC_FULL.md §13: spec.md's vocabulary wins
// over original_source's older names (ingest/validate/factcheck).
const (
	StageRetrieve     = "retrieve"
	StageEvidencePack = "evidence_pack"
	StageOutline      = "outline"
	StageDraft        = "draft"
	StageEvaluate     = "evaluate"
	StageRepair       = "repair"
	StageExport       = "export"
)

// StageOrder is the fixed sequential DAG the Pipeline Coordinator drives a
// run through. Repair is not listed here: it is a conditional single detour
// taken at most once, triggered by the Evaluate stage's verdict, not a
// scheduled member of the base sequence.
var StageOrder = []string{
	StageRetrieve,
	StageEvidencePack,
	StageOutline,
	StageDraft,
	StageEvaluate,
	StageExport,
}

// ValidStages is the membership set stage_start/stage_finish validate
// against, mirroring original_source lifecycle.py's VALID_STAGES.
var ValidStages = map[string]bool{
	StageRetrieve:     true,
	StageEvidencePack: true,
	StageOutline:      true,
	StageDraft:        true,
	StageEvaluate:     true,
	StageRepair:       true,
	StageExport:       true,
}
