package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/researchops/runcore/internal/model"
)

func TestFootnoteBookSubstitute(t *testing.T) {
	t.Run("assigns sequential numbers in first-seen order", func(t *testing.T) {
		book := newFootnoteBook()
		out := book.substitute("Claim one [CITE:aaa]. Claim two [CITE:bbb].")
		assert.Equal(t, "Claim one [^1]. Claim two [^2].", out)
		assert.Equal(t, []string{"aaa", "bbb"}, book.orderedSnippetIDs())
	})

	t.Run("reuses the same number for a repeated citation", func(t *testing.T) {
		book := newFootnoteBook()
		out := book.substitute("First [CITE:aaa]. Later again [CITE:aaa].")
		assert.Equal(t, "First [^1]. Later again [^1].", out)
		assert.Equal(t, []string{"aaa"}, book.orderedSnippetIDs())
	})

	t.Run("numbering carries across multiple substitute calls", func(t *testing.T) {
		book := newFootnoteBook()
		book.substitute("Section one [CITE:aaa].")
		out := book.substitute("Section two [CITE:bbb], also [CITE:aaa].")
		assert.Equal(t, "Section two [^2], also [^1].", out)
	})

	t.Run("text without citation tokens passes through unchanged", func(t *testing.T) {
		book := newFootnoteBook()
		out := book.substitute("Nothing cited here.")
		assert.Equal(t, "Nothing cited here.", out)
		assert.Empty(t, book.orderedSnippetIDs())
	})
}

func TestRenderReferences(t *testing.T) {
	t.Run("empty book renders nothing", func(t *testing.T) {
		book := newFootnoteBook()
		assert.Equal(t, "", renderReferences(book, nil))
	})

	t.Run("renders one line per footnote with a source", func(t *testing.T) {
		book := newFootnoteBook()
		book.substitute("Claim [CITE:aaa].")
		year := 2021
		sources := map[string]model.Source{
			"aaa": {Title: "A Study", Authors: []string{"Ada Lovelace"}, Year: &year, URL: "https://example.org/a"},
		}
		out := renderReferences(book, sources)
		assert.Contains(t, out, "## References")
		assert.Contains(t, out, "[^1]: Ada Lovelace, A Study, 2021. https://example.org/a")
	})

	t.Run("falls back gracefully when the source is missing", func(t *testing.T) {
		book := newFootnoteBook()
		book.substitute("Claim [CITE:missing].")
		out := renderReferences(book, map[string]model.Source{})
		assert.Contains(t, out, "[^1]: Unknown source.")
	})
}

func TestRenderCitation(t *testing.T) {
	t.Run("falls back to doi-derived url when url is absent", func(t *testing.T) {
		out := renderCitation(model.Source{Title: "Paper", DOI: "10.1/xyz"})
		assert.Contains(t, out, "https://doi.org/10.1/xyz")
	})

	t.Run("handles multiple authors with et al.", func(t *testing.T) {
		out := renderCitation(model.Source{Title: "Paper", Authors: []string{"A", "B", "C"}})
		assert.Contains(t, out, "A et al.")
	})

	t.Run("uses placeholders when fields are entirely absent", func(t *testing.T) {
		out := renderCitation(model.Source{})
		assert.Equal(t, "Unknown author, Untitled, n.d.", out)
	})
}
