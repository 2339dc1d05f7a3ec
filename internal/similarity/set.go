// Package similarity computes citation-topology relatedness signals between a
// seed work and candidate works. All functions are pure and operate on
// neighbor sets that have already been fetched.
package similarity

// Set is a set of DOIs.
type Set map[string]struct{}

// NewSet builds a set from a slice of DOIs.
func NewSet(dois []string) Set {
	s := make(Set, len(dois))
	for _, d := range dois {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether doi is in the set. A nil set contains nothing.
func (s Set) Contains(doi string) bool {
	_, ok := s[doi]
	return ok
}

// IntersectionSize returns |s ∩ other|, iterating over the smaller set.
func (s Set) IntersectionSize(other Set) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for d := range small {
		if large.Contains(d) {
			n++
		}
	}
	return n
}
