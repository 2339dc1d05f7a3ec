package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matsen/citenet/internal/doi"
)

// crossrefRecord is the subset of a CrossRef work message we read.
type crossrefRecord struct {
	DOI            string     `json:"DOI"`
	Title          []string   `json:"title"`
	Author         []Author   `json:"author"`
	ContainerTitle []string   `json:"container-title"`
	Published      dateParts  `json:"published"`
	Issued         dateParts  `json:"issued"`
	Reference      []crossRef `json:"reference"`
}

type dateParts struct {
	Parts [][]*int `json:"date-parts"`
}

type crossRef struct {
	DOI string `json:"DOI"`
}

// year returns the first date component, or nil when absent.
func (d dateParts) year() *int {
	if len(d.Parts) == 0 || len(d.Parts[0]) == 0 || d.Parts[0][0] == nil {
		return nil
	}
	y := *d.Parts[0][0]
	return &y
}

// ParseCrossRef decodes a CrossRef metadata document into a Work. fallbackDOI
// is used when the document itself carries no DOI.
func ParseCrossRef(fallbackDOI string, data []byte) (*Work, error) {
	var rec crossrefRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing crossref metadata: %w", err)
	}

	w := &Work{DOI: doi.Normalize(rec.DOI)}
	if w.DOI == "" {
		w.DOI = doi.Normalize(fallbackDOI)
	}
	if len(rec.Title) > 0 {
		w.Title = strings.TrimSpace(rec.Title[0])
	}
	if len(rec.ContainerTitle) > 0 {
		w.Journal = strings.TrimSpace(rec.ContainerTitle[0])
	}
	w.Year = rec.Published.year()
	if w.Year == nil {
		w.Year = rec.Issued.year()
	}
	for _, a := range rec.Author {
		if a.DisplayName() != "" {
			w.Authors = append(w.Authors, a)
		}
	}
	return w, nil
}

// CrossRefReferences returns the normalized DOIs a CrossRef document cites.
// Unlinked references (no DOI) are skipped.
func CrossRefReferences(data []byte) ([]string, error) {
	var rec crossrefRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing crossref references: %w", err)
	}
	raw := make([]string, 0, len(rec.Reference))
	for _, r := range rec.Reference {
		raw = append(raw, r.DOI)
	}
	return doi.NormalizeAll(raw), nil
}

// CrossRefDOI returns the normalized DOI field of a CrossRef document.
func CrossRefDOI(data []byte) (string, error) {
	var rec struct {
		DOI string `json:"DOI"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("parsing crossref doi: %w", err)
	}
	return doi.Normalize(rec.DOI), nil
}
