package model

import "time"

// RunSection is one outline entry, written by the Outline stage and read by
// Writer and Exporter.
type RunSection struct {
	TenantID     TenantID
	RunID        RunID
	SectionID    string
	Title        string
	Goal         string
	SectionOrder int
}

// OutlineNote carries the structural notes an outline section was built
// from: the key points it must cover and the evidence themes it should
// search for. One per RunSection.
type OutlineNote struct {
	TenantID                TenantID
	RunID                   RunID
	SectionID               string
	KeyPoints               []string
	SuggestedEvidenceThemes []string
}

// SectionEvidence is a membership row: snippet SnippetID is permitted for
// citation within SectionID. Written by Evidence-Pack; read by
// Writer/Evaluator/Repair to validate citation tokens.
type SectionEvidence struct {
	TenantID  TenantID
	RunID     RunID
	SectionID string
	SnippetID SnippetID
}

// DraftSection is the Writer's (and later Repair's) output text for one
// section.
type DraftSection struct {
	TenantID       TenantID
	RunID          RunID
	SectionID      string
	Text           string
	SectionSummary string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReviewVerdict is the Evaluator's per-section pass/fail call.
type ReviewVerdict string

const (
	VerdictPass ReviewVerdict = "pass"
	VerdictFail ReviewVerdict = "fail"
)

// ReviewIssue is one problem the Evaluator found in a DraftSection.
type ReviewIssue struct {
	SentenceIndex int      `json:"sentence_index"`
	Problem       string   `json:"problem"`
	Notes         string   `json:"notes"`
	Citations     []string `json:"citations"`
}

// AllowedReviewProblems is the fixed problem-type vocabulary the Evaluator
// and Repair stages recognize; unknown codes are dropped during
// normalization (SPEC_FULL.md §4.12).
var AllowedReviewProblems = map[string]bool{
	"unsupported":       true,
	"contradicted":      true,
	"missing_citation":  true,
	"invalid_citation":  true,
	"not_in_pack":       true,
	"overstated":        true,
}

// SectionReview is the Evaluator's verdict and issue list for one section.
type SectionReview struct {
	TenantID   TenantID
	RunID      RunID
	SectionID  string
	Verdict    ReviewVerdict
	Issues     []ReviewIssue
	ReviewedAt time.Time
}
