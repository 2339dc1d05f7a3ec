package reference

// Author is a contributor as recorded by CrossRef. Organisations and
// consortia carry only Name.
type Author struct {
	First string `json:"given,omitempty"`
	Last  string `json:"family,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DisplayName formats an author as "First Last", falling back to the
// family name alone and then to the literal name.
func (a Author) DisplayName() string {
	switch {
	case a.First != "" && a.Last != "":
		return a.First + " " + a.Last
	case a.Last != "":
		return a.Last
	default:
		return a.Name
	}
}
