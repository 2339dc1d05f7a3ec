// Package network builds ranked related-paper networks around a seed work
// from a citation relation.
package network

import (
	"cmp"
	"slices"

	"github.com/matsen/citenet/internal/similarity"
)

// SeedScore is the similarity score of the seed node.
const SeedScore = 100.0

// MaxCandidateScore is the score given to the best-ranked candidate.
const MaxCandidateScore = 99.0

// PaperNode is one publication in a network.
type PaperNode struct {
	DOI             string
	Title           string
	Year            *int // nil when unknown
	Authors         []string
	Journal         string
	SimilarityScore float64
}

// EdgeType names the relationship an edge records.
type EdgeType string

const (
	EdgeCites   EdgeType = "cites"
	EdgeCoCited EdgeType = "co-cited"
	EdgeCoupled EdgeType = "coupled"
)

// CitationEdge is a typed relation between two nodes. A pair may carry
// several edges of different types.
type CitationEdge struct {
	Source string
	Target string
	Type   EdgeType
	Weight float64
}

// Metadata describes how a graph was built and what was degraded.
type Metadata struct {
	TopN    int
	Weights similarity.Weights

	// Truncated is set when the candidate pool exceeded PoolCap, when
	// expansion lookups were skipped to stay within it, or when the source
	// clipped a neighbor list.
	Truncated bool

	// PoolSize is the number of distinct candidates discovered, before
	// capping.
	PoolSize int
	PoolCap  int

	// PartialMetadata is set when any node's record could not be resolved.
	// MissingMetadata lists those DOIs in ascending order.
	PartialMetadata bool
	MissingMetadata []string

	// LookupFailures counts relation lookups that failed and contributed
	// nothing.
	LookupFailures int
}

// CitationGraph is the result of one Build call. It is a value owned by the
// caller.
type CitationGraph struct {
	Seed  string
	Nodes map[string]*PaperNode
	Edges []CitationEdge
	Meta  Metadata

	// Ranked lists the selected candidates in ranking order.
	Ranked []similarity.Candidate
}

// IsEmpty returns true if the graph has no candidates beyond the seed.
func (g *CitationGraph) IsEmpty() bool {
	return len(g.Nodes) <= 1
}

// SortedNodes returns the seed first, then the ranked candidates in ranking
// order (combined score descending, DOI ascending). Nodes not in Ranked
// follow by similarity descending and DOI ascending.
func (g *CitationGraph) SortedNodes() []*PaperNode {
	nodes := make([]*PaperNode, 0, len(g.Nodes))
	placed := make(map[string]bool, len(g.Nodes))
	place := func(d string) {
		if n, ok := g.Nodes[d]; ok && !placed[d] {
			nodes = append(nodes, n)
			placed[d] = true
		}
	}

	place(g.Seed)
	for _, c := range g.Ranked {
		place(c.DOI)
	}

	var rest []*PaperNode
	for d, n := range g.Nodes {
		if !placed[d] {
			rest = append(rest, n)
		}
	}
	slices.SortFunc(rest, func(a, b *PaperNode) int {
		if c := cmp.Compare(b.SimilarityScore, a.SimilarityScore); c != 0 {
			return c
		}
		return cmp.Compare(a.DOI, b.DOI)
	})
	return append(nodes, rest...)
}
