package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/citenet/internal/network"
)

func TestToBibTeX_BasicArticle(t *testing.T) {
	n := &network.PaperNode{
		DOI:     "10.1038/nature12373",
		Title:   "Nanometre-scale thermometry in a living cell",
		Year:    intPtr(2013),
		Authors: []string{"G. Kucsko", "P. C. Maurer"},
		Journal: "Nature",
	}

	got := ToBibTeX(n)

	checks := []string{
		"@article{doi_10_1038_nature12373,",
		"author = {G. Kucsko and P. C. Maurer}",
		"title = {Nanometre-scale thermometry in a living cell}",
		"journal = {Nature}",
		"year = {2013}",
		"doi = {10.1038/nature12373}",
	}
	for _, want := range checks {
		if !strings.Contains(got, want) {
			t.Errorf("ToBibTeX() missing %q, got:\n%s", want, got)
		}
	}
}

func TestToBibTeX_Inproceedings(t *testing.T) {
	n := &network.PaperNode{DOI: "10.1/p", Title: "T", Journal: "Proceedings of ICML"}

	got := ToBibTeX(n)
	if !strings.HasPrefix(got, "@inproceedings{") {
		t.Errorf("expected inproceedings entry, got:\n%s", got)
	}
	if !strings.Contains(got, "booktitle = {Proceedings of ICML}") {
		t.Errorf("expected booktitle field, got:\n%s", got)
	}
}

func TestToBibTeX_MissingMetadata(t *testing.T) {
	got := ToBibTeX(&network.PaperNode{DOI: "10.1/bare"})

	for _, field := range []string{"author", "title", "journal", "year"} {
		if strings.Contains(got, field+" = ") {
			t.Errorf("unexpected %s field for bare node:\n%s", field, got)
		}
	}
	if !strings.Contains(got, "doi = {10.1/bare}") {
		t.Errorf("missing doi field:\n%s", got)
	}
}

func TestEscapeLatex(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Simple title", "Simple title"},
		{"A & B", `A \& B`},
		{"100% accuracy", `100\% accuracy`},
		{"f_1 score", `f\_1 score`},
		{"{braces}", `\{braces\}`},
	}

	for _, tt := range tests {
		if got := escapeLatex(tt.input); got != tt.want {
			t.Errorf("escapeLatex(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToBibTeXList_SkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bib")
	existing := "@article{Kucsko2013,\n  doi = {https://doi.org/10.1/X},\n}\n"
	if err := os.WriteFile(path, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := ParseBibTeXFile(path)
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if !idx.Keys["Kucsko2013"] {
		t.Errorf("expected key Kucsko2013 in index")
	}

	got := ToBibTeXList(sampleGraph(), idx)
	if strings.Contains(got, "doi = {10.1/x}") {
		t.Errorf("entry already in file should be skipped:\n%s", got)
	}
	if n := strings.Count(got, "@"); n != 4 {
		t.Errorf("got %d entries, want 4", n)
	}
	if !strings.HasPrefix(got, "@article{doi_10_1_s,") {
		t.Errorf("seed entry should come first:\n%s", got)
	}

	if err := AppendToBibFile(path, got); err != nil {
		t.Fatalf("AppendToBibFile() error = %v", err)
	}
	idx, err = ParseBibTeXFile(path)
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if !idx.HasEntry("", "10.1/z") {
		t.Errorf("appended entry not indexed")
	}
}

func TestParseBibTeXFile_Missing(t *testing.T) {
	idx, err := ParseBibTeXFile(filepath.Join(t.TempDir(), "none.bib"))
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if len(idx.Keys) != 0 {
		t.Errorf("expected empty index")
	}
}
