package similarity

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Weights scales each signal in the combined score.
type Weights struct {
	Direct     float64 `yaml:"direct" json:"direct"`
	CoCitation float64 `yaml:"co_citation" json:"co_citation"`
	Coupling   float64 `yaml:"coupling" json:"coupling"`
}

// DefaultWeights upweights co-citation and coupling over a single direct link.
func DefaultWeights() Weights {
	return Weights{Direct: 1.0, CoCitation: 2.0, Coupling: 2.0}
}

// ErrInvalidWeights is returned by Validate.
var ErrInvalidWeights = errors.New("invalid similarity weights")

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Direct < 0 || w.CoCitation < 0 || w.Coupling < 0 {
		return fmt.Errorf("%w: direct=%g co_citation=%g coupling=%g",
			ErrInvalidWeights, w.Direct, w.CoCitation, w.Coupling)
	}
	return nil
}

// DirectScore is 1 when the candidate is cited by or cites the seed.
func DirectScore(seedForward, seedReverse Set, candidate string) float64 {
	if seedForward.Contains(candidate) || seedReverse.Contains(candidate) {
		return 1.0
	}
	return 0.0
}

// CoCitationScore counts works citing both the candidate and the seed.
func CoCitationScore(candidateReverse, seedReverse Set) int {
	return candidateReverse.IntersectionSize(seedReverse)
}

// CouplingScore counts references shared by the candidate and the seed.
func CouplingScore(candidateForward, seedForward Set) int {
	return candidateForward.IntersectionSize(seedForward)
}

// Scores holds the raw signals for one candidate.
type Scores struct {
	Direct     float64 `json:"direct"`
	CoCitation int     `json:"co_citation"`
	Coupling   int     `json:"coupling"`
}

// Combined returns the weighted sum of the signals. It is not normalized.
func Combined(s Scores, w Weights) float64 {
	return w.Direct*s.Direct + w.CoCitation*float64(s.CoCitation) + w.Coupling*float64(s.Coupling)
}

// Candidate is a scored work considered for inclusion in a network.
type Candidate struct {
	DOI      string  `json:"doi"`
	Scores   Scores  `json:"scores"`
	Combined float64 `json:"combined"`
}

// Compare orders candidates by combined score descending, then DOI ascending.
func Compare(a, b Candidate) int {
	if c := cmp.Compare(b.Combined, a.Combined); c != 0 {
		return c
	}
	return cmp.Compare(a.DOI, b.DOI)
}

// Rank sorts candidates in place into their deterministic ranking order.
func Rank(cands []Candidate) {
	slices.SortFunc(cands, Compare)
}
