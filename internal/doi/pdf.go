package doi

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// maxScanPages bounds how far into a PDF we look; the DOI is almost always
// on the first page.
const maxScanPages = 3

// FromPDF extracts the first DOI found in the leading pages of a PDF file.
// Returns "" with a nil error when the document carries no DOI.
func FromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages := maxScanPages
	if r.NumPage() < pages {
		pages = r.NumPage()
	}

	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if d := Find(text); d != "" {
			return d, nil
		}
	}
	return "", nil
}
