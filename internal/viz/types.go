// Package viz renders citation networks with Cytoscape.js.
package viz

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Seed  string `json:"seed"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents a paper in the graph.
type Node struct {
	ID string `json:"id"`

	// Display
	Label string `json:"label"`
	Seed  bool   `json:"seed"`

	// Tooltip fields
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"` // "First Last, First Last"
	Year    int    `json:"year,omitempty"`
	Journal string `json:"journal,omitempty"`

	// Sizing
	Score float64 `json:"score"`
}

// Edge represents one typed relation between papers.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// IsEmpty returns true if the graph has nothing beyond the seed.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) <= 1
}
