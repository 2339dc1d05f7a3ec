package viz

import (
	"encoding/json"
	"fmt"
)

// CytoscapeElements represents the Cytoscape.js data format.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// CytoscapeNode represents a node in Cytoscape.js format.
type CytoscapeNode struct {
	Data Node `json:"data"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format.
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains the edge data fields.
type CytoscapeEdgeData struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// ToCytoscapeJSON converts GraphData to Cytoscape.js JSON format.
func (g *GraphData) ToCytoscapeJSON() (string, error) {
	elements := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, len(g.Nodes)),
		Edges: make([]CytoscapeEdge, 0, len(g.Edges)),
	}

	for _, n := range g.Nodes {
		elements.Nodes = append(elements.Nodes, CytoscapeNode{Data: n})
	}

	for i, e := range g.Edges {
		elements.Edges = append(elements.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:     edgeID(e.Source, e.Target, e.Type, i),
				Source: e.Source,
				Target: e.Target,
				Type:   e.Type,
				Weight: e.Weight,
			},
		})
	}

	jsonBytes, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// edgeID generates a unique edge ID. Edges of different types may join the
// same pair, so the type and position are part of the ID.
func edgeID(source, target, edgeType string, index int) string {
	return fmt.Sprintf("%s-%s-%s-%d", source, target, edgeType, index)
}
