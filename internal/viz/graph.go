package viz

import (
	"fmt"
	"strings"

	"github.com/matsen/citenet/internal/network"
)

// FromGraph converts a citation graph to render data. Nodes are ordered seed
// first, then by similarity.
func FromGraph(g *network.CitationGraph) *GraphData {
	data := &GraphData{
		Seed:  g.Seed,
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}

	for _, n := range g.SortedNodes() {
		data.Nodes = append(data.Nodes, newPaperNode(n, n.DOI == g.Seed))
	}
	for _, e := range g.Edges {
		data.Edges = append(data.Edges, Edge{
			Source: e.Source,
			Target: e.Target,
			Type:   string(e.Type),
			Weight: e.Weight,
		})
	}
	return data
}

// newPaperNode creates a visualization node from a network node.
func newPaperNode(n *network.PaperNode, seed bool) Node {
	node := Node{
		ID:      n.DOI,
		Label:   nodeLabel(n),
		Seed:    seed,
		Title:   n.Title,
		Authors: strings.Join(n.Authors, ", "),
		Journal: n.Journal,
		Score:   n.SimilarityScore,
	}
	if n.Year != nil {
		node.Year = *n.Year
	}
	return node
}

// nodeLabel returns "Surname Year" in the usual citation style, falling back
// to the DOI when the record is incomplete.
func nodeLabel(n *network.PaperNode) string {
	if len(n.Authors) == 0 || n.Year == nil {
		return n.DOI
	}
	parts := strings.Fields(n.Authors[0])
	if len(parts) == 0 {
		return n.DOI
	}
	surname := parts[len(parts)-1]
	if len(n.Authors) > 1 {
		return fmt.Sprintf("%s et al. %d", surname, *n.Year)
	}
	return fmt.Sprintf("%s %d", surname, *n.Year)
}
