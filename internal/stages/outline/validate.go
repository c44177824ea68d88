package outline

import (
	"fmt"

	"github.com/researchops/runcore/internal/stages/textutil"
)

// sectionPlan is the shape parsed straight out of the LLM JSON response,
// before normalization, grounded on outline.py's OUTLINE_SCHEMA.
type sectionPlan struct {
	SectionID               string   `json:"section_id"`
	Title                   string   `json:"title"`
	Goal                    string   `json:"goal"`
	KeyPoints               []string `json:"key_points"`
	SuggestedEvidenceThemes []string `json:"suggested_evidence_themes"`
	SectionOrder            int      `json:"section_order"`
}

// normalize canonicalizes the first section's id/title to "intro"/
// "Introduction", the last to "conclusion"/"Conclusion", and renumbers
// section_order to a contiguous 1..N matching list order — grounded on
// outline.py's _normalize_outline.
func normalize(sections []sectionPlan) []sectionPlan {
	if len(sections) == 0 {
		return sections
	}
	out := make([]sectionPlan, len(sections))
	copy(out, sections)
	out[0].SectionID = "intro"
	if out[0].Title == "" {
		out[0].Title = "Introduction"
	}
	last := len(out) - 1
	out[last].SectionID = "conclusion"
	if out[last].Title == "" {
		out[last].Title = "Conclusion"
	}
	for i := range out {
		out[i].SectionOrder = i + 1
	}
	return out
}

// validate enforces spec.md §4.10 step 3's structural rules, returning
// every violated rule so a single repair call can be told all of them at
// once, matching outline.py's _validate_outline.
func validate(cfg Config, sections []sectionPlan, sourceCount int) []string {
	var violations []string
	if len(sections) == 0 {
		return []string{"outline must contain at least one section"}
	}

	minSections, maxSections := cfg.MinSectionsFewSources, cfg.MaxSectionsFewSources
	if sourceCount >= cfg.ManySourcesThreshold {
		minSections, maxSections = cfg.MinSectionsManySources, cfg.MaxSectionsManySources
	}
	if len(sections) < minSections || len(sections) > maxSections {
		violations = append(violations, fmt.Sprintf(
			"section count %d outside allowed range [%d, %d]", len(sections), minSections, maxSections))
	}

	if sections[0].SectionID != "intro" {
		violations = append(violations, "first section_id must be \"intro\"")
	}
	if sections[len(sections)-1].SectionID != "conclusion" {
		violations = append(violations, "last section_id must be \"conclusion\"")
	}

	seenTitles := map[string]bool{}
	seenIDs := map[string]bool{}
	for i, s := range sections {
		if seenTitles[s.Title] {
			violations = append(violations, fmt.Sprintf("duplicate section title %q", s.Title))
		}
		seenTitles[s.Title] = true
		if seenIDs[s.SectionID] {
			violations = append(violations, fmt.Sprintf("duplicate section_id %q", s.SectionID))
		}
		seenIDs[s.SectionID] = true

		sentences := len(textutil.SplitSentences(s.Goal))
		if sentences < 2 || sentences > 3 {
			violations = append(violations, fmt.Sprintf(
				"section %q goal must be 2-3 sentences, got %d", s.SectionID, sentences))
		}

		if len(s.KeyPoints) < cfg.MinKeyPoints || len(s.KeyPoints) > cfg.MaxKeyPoints {
			violations = append(violations, fmt.Sprintf(
				"section %q key_points count %d outside [%d, %d]", s.SectionID, len(s.KeyPoints), cfg.MinKeyPoints, cfg.MaxKeyPoints))
		}

		if s.SectionOrder != i+1 {
			violations = append(violations, fmt.Sprintf(
				"section %q order %d does not match contiguous position %d", s.SectionID, s.SectionOrder, i+1))
		}
	}

	return violations
}
