package reference

import (
	"reflect"
	"testing"
)

const sampleRecord = `{
  "DOI": "10.1038/Nature12373",
  "title": ["Nanometre-scale thermometry in a living cell"],
  "author": [
    {"given": "G.", "family": "Kucsko"},
    {"family": "Maurer"},
    {"name": "The Consortium"},
    {}
  ],
  "container-title": ["Nature"],
  "published": {"date-parts": [[2013, 7, 31]]},
  "reference": [
    {"DOI": "10.1103/PhysRevB.1"},
    {"unstructured": "no doi here"},
    {"DOI": "10.1103/physrevb.1"},
    {"DOI": "10.1126/science.2"}
  ]
}`

func TestParseCrossRef(t *testing.T) {
	w, err := ParseCrossRef("", []byte(sampleRecord))
	if err != nil {
		t.Fatalf("ParseCrossRef() error = %v", err)
	}

	if w.DOI != "10.1038/nature12373" {
		t.Errorf("DOI = %q", w.DOI)
	}
	if w.Title != "Nanometre-scale thermometry in a living cell" {
		t.Errorf("Title = %q", w.Title)
	}
	if w.Journal != "Nature" {
		t.Errorf("Journal = %q", w.Journal)
	}
	if w.Year == nil || *w.Year != 2013 {
		t.Errorf("Year = %v, want 2013", w.Year)
	}

	wantNames := []string{"G. Kucsko", "Maurer", "The Consortium"}
	if got := w.AuthorNames(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("AuthorNames() = %v, want %v", got, wantNames)
	}
}

func TestParseCrossRef_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantYear *int
	}{
		{"no dates", `{"title": []}`, nil},
		{"empty date parts", `{"published": {"date-parts": [[]]}}`, nil},
		{"null year", `{"published": {"date-parts": [[null]]}}`, nil},
		{"issued fallback", `{"issued": {"date-parts": [[1999]]}}`, intPtr(1999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseCrossRef("DOI:10.1/X", []byte(tt.data))
			if err != nil {
				t.Fatalf("ParseCrossRef() error = %v", err)
			}
			if w.DOI != "10.1/x" {
				t.Errorf("DOI = %q, want fallback", w.DOI)
			}
			if !reflect.DeepEqual(w.Year, tt.wantYear) {
				t.Errorf("Year = %v, want %v", w.Year, tt.wantYear)
			}
			if w.Title != "" || w.Journal != "" {
				t.Errorf("expected empty title/journal, got %q/%q", w.Title, w.Journal)
			}
		})
	}
}

func TestCrossRefReferences(t *testing.T) {
	got, err := CrossRefReferences([]byte(sampleRecord))
	if err != nil {
		t.Fatalf("CrossRefReferences() error = %v", err)
	}
	want := []string{"10.1103/physrevb.1", "10.1126/science.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CrossRefReferences() = %v, want %v", got, want)
	}
}

func TestParseCrossRef_Invalid(t *testing.T) {
	if _, err := ParseCrossRef("10.1/x", []byte("{not json")); err == nil {
		t.Error("expected error for malformed metadata")
	}
}

func intPtr(v int) *int { return &v }
