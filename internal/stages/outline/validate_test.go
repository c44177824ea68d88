package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSections() []sectionPlan {
	return []sectionPlan{
		{SectionID: "intro", Title: "Introduction", Goal: "This introduces the topic. It frames the question.", KeyPoints: make([]string, 6), SectionOrder: 1},
		{SectionID: "body", Title: "Body", Goal: "This covers the body. It has two sentences.", KeyPoints: make([]string, 6), SectionOrder: 2},
		{SectionID: "methods", Title: "Methods", Goal: "This covers the methods. It has two sentences.", KeyPoints: make([]string, 6), SectionOrder: 3},
		{SectionID: "conclusion", Title: "Conclusion", Goal: "This wraps up. It restates findings.", KeyPoints: make([]string, 6), SectionOrder: 4},
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("accepts a well-formed outline", func(t *testing.T) {
		violations := validate(cfg, validSections(), 5)
		assert.Empty(t, violations)
	})

	t.Run("flags non-intro first section", func(t *testing.T) {
		sections := validSections()
		sections[0].SectionID = "overview"
		violations := validate(cfg, sections, 5)
		assert.Contains(t, violations, `first section_id must be "intro"`)
	})

	t.Run("flags duplicate titles", func(t *testing.T) {
		sections := validSections()
		sections[1].Title = sections[0].Title
		violations := validate(cfg, sections, 5)
		found := false
		for _, v := range violations {
			if v == `duplicate section title "Introduction"` {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("flags out-of-range section count for many sources", func(t *testing.T) {
		violations := validate(cfg, validSections(), 50)
		assert.NotEmpty(t, violations)
	})

	t.Run("flags goal sentence count outside 2-3", func(t *testing.T) {
		sections := validSections()
		sections[0].Goal = "Only one sentence here"
		violations := validate(cfg, sections, 5)
		found := false
		for _, v := range violations {
			if v == `section "intro" goal must be 2-3 sentences, got 1` {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("renumbers section_order to contiguous positions", func(t *testing.T) {
		sections := []sectionPlan{
			{SectionID: "a", SectionOrder: 5},
			{SectionID: "b", SectionOrder: 9},
		}
		out := normalize(sections)
		assert.Equal(t, 1, out[0].SectionOrder)
		assert.Equal(t, 2, out[1].SectionOrder)
		assert.Equal(t, "intro", out[0].SectionID)
		assert.Equal(t, "conclusion", out[1].SectionID)
	})
}
