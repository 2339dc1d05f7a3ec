package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matsen/citenet/internal/network"
)

// ToBibTeX formats one network node as a BibTeX entry keyed by its DOI.
func ToBibTeX(n *network.PaperNode) string {
	entryType := determineEntryType(n.Journal)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, citationKey(n.DOI)))

	if len(n.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(strings.Join(n.Authors, " and "))))
	}

	if n.Title != "" {
		b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(n.Title)))
	}

	if n.Journal != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(n.Journal)))
	}

	if n.Year != nil {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", *n.Year))
	}

	b.WriteString(fmt.Sprintf("  doi = {%s},\n", n.DOI))
	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList formats every node of a graph in interchange order. Nodes
// whose DOI is already in skip are left out.
func ToBibTeXList(g *network.CitationGraph, skip *BibTeXIndex) string {
	return strings.Join(BibTeXEntries(g, skip), "\n")
}

// BibTeXEntries returns one entry per node in display order, leaving out
// those skip already holds.
func BibTeXEntries(g *network.CitationGraph, skip *BibTeXIndex) []string {
	var entries []string
	for _, n := range g.SortedNodes() {
		if skip != nil && skip.HasEntry(citationKey(n.DOI), n.DOI) {
			continue
		}
		entries = append(entries, ToBibTeX(n))
	}
	return entries
}

// citationKey derives a BibTeX-safe key from a DOI.
func citationKey(doi string) string {
	var b strings.Builder
	b.WriteString("doi_")
	for _, r := range doi {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// determineEntryType returns the BibTeX entry type for a container title.
func determineEntryType(journal string) string {
	venue := strings.ToLower(journal)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	return "article"
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// & first, so later replacements are not re-escaped
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
