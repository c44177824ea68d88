package writer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/model"
)

func mustUUID(s string) model.SnippetID {
	return model.SnippetID(uuid.MustParse(s))
}

func TestResolveCitationIDs(t *testing.T) {
	full := mustUUID("aaaaaaaa-0000-0000-0000-000000000000")
	other := mustUUID("bbbbbbbb-0000-0000-0000-000000000000")
	allowed := []model.SnippetID{full, other}

	t.Run("resolves a unique prefix", func(t *testing.T) {
		out, err := resolveCitationIDs("Evidence shows this. [CITE:aaaaaaaa]", allowed)
		assert.NoError(t, err)
		assert.Contains(t, out, "[CITE:"+full.String()+"]")
	})

	t.Run("fails on unmatched id", func(t *testing.T) {
		_, err := resolveCitationIDs("Claim here. [CITE:ffffffff]", allowed)
		assert.Error(t, err)
	})

	t.Run("fails on ambiguous shared prefix", func(t *testing.T) {
		ambiguousA := mustUUID("cccccccc-1111-0000-0000-000000000000")
		ambiguousB := mustUUID("cccccccc-2222-0000-0000-000000000000")
		_, err := resolveCitationIDs("Claim. [CITE:cccccccc]", []model.SnippetID{ambiguousA, ambiguousB})
		assert.Error(t, err)
	})
}

func TestValidateSectionText(t *testing.T) {
	full := mustUUID("aaaaaaaa-0000-0000-0000-000000000000")
	allowed := []model.SnippetID{full}

	t.Run("accepts citation at sentence end", func(t *testing.T) {
		_, err := validateSectionText("This is supported. [CITE:aaaaaaaa]", allowed)
		assert.NoError(t, err)
	})

	t.Run("rejects citation mid-sentence", func(t *testing.T) {
		_, err := validateSectionText("This [CITE:aaaaaaaa] is supported.", allowed)
		assert.Error(t, err)
	})
}
