// Package exporter implements the Exporter stage: Markdown assembly,
// citation-token-to-footnote substitution, and artifact upsert (spec.md
// §4.14), grounded on original_source/.../nodes/exporter.py.
package exporter

import (
	"fmt"
	"strings"

	"github.com/researchops/runcore/internal/model"
)

// footnoteBook accumulates the citation -> footnote-number mapping in
// first-seen order across the whole report, so a snippet cited in section
// 2 and again in section 5 gets exactly one footnote number, matching
// exporter.py's _assign_footnotes.
type footnoteBook struct {
	numberBySnippet map[string]int
	order           []string
}

func newFootnoteBook() *footnoteBook {
	return &footnoteBook{numberBySnippet: make(map[string]int)}
}

// substitute rewrites every [CITE:id] token in text to a Markdown footnote
// reference [^n], assigning n the next sequential number the first time id
// is seen and reusing it thereafter.
func (b *footnoteBook) substitute(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "[CITE:")
		if start == -1 {
			out.WriteString(text[i:])
			break
		}
		start += i
		out.WriteString(text[i:start])
		end := strings.Index(text[start:], "]")
		if end == -1 {
			out.WriteString(text[start:])
			break
		}
		end += start
		id := text[start+len("[CITE:") : end]
		out.WriteString(fmt.Sprintf("[^%d]", b.numberFor(id)))
		i = end + 1
	}
	return out.String()
}

func (b *footnoteBook) numberFor(snippetID string) int {
	if n, ok := b.numberBySnippet[snippetID]; ok {
		return n
	}
	n := len(b.order) + 1
	b.numberBySnippet[snippetID] = n
	b.order = append(b.order, snippetID)
	return n
}

// orderedSnippetIDs returns the snippet ids in first-seen (footnote
// number) order.
func (b *footnoteBook) orderedSnippetIDs() []string {
	return b.order
}

// renderReferences builds the "## References" block, one `[^n]: ...` line
// per footnote in number order, matching exporter.py's citation rendering
// (`Author, Title, Year. URL`, falling back gracefully when a field is
// missing).
func renderReferences(book *footnoteBook, sourceBySnippet map[string]model.Source) string {
	if len(book.order) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## References\n\n")
	for i, snippetID := range book.orderedSnippetIDs() {
		source, ok := sourceBySnippet[snippetID]
		n := i + 1
		if !ok {
			fmt.Fprintf(&b, "[^%d]: Unknown source.\n", n)
			continue
		}
		fmt.Fprintf(&b, "[^%d]: %s\n", n, renderCitation(source))
	}
	return b.String()
}

func renderCitation(source model.Source) string {
	author := "Unknown author"
	if len(source.Authors) > 0 {
		author = source.Authors[0]
		if len(source.Authors) > 1 {
			author += " et al."
		}
	}
	title := source.Title
	if title == "" {
		title = "Untitled"
	}
	year := "n.d."
	if source.Year != nil {
		year = fmt.Sprintf("%d", *source.Year)
	}
	url := source.URL
	if url == "" && source.DOI != "" {
		url = "https://doi.org/" + source.DOI
	}
	if url == "" {
		return fmt.Sprintf("%s, %s, %s.", author, title, year)
	}
	return fmt.Sprintf("%s, %s, %s. %s", author, title, year, url)
}
