// Package reference defines bibliographic record types resolved from the store.
package reference

// Work is the metadata for one publication. Only the fields needed to
// render a network node are kept.
type Work struct {
	DOI     string   `json:"doi"`
	Title   string   `json:"title"`
	Authors []Author `json:"authors"`
	Year    *int     `json:"year,omitempty"` // nil when the record has no date
	Journal string   `json:"journal"`        // container title
}

// AuthorNames returns the display names of all authors in record order.
func (w *Work) AuthorNames() []string {
	names := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		if n := a.DisplayName(); n != "" {
			names = append(names, n)
		}
	}
	return names
}
