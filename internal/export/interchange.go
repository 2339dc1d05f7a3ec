// Package export converts citation graphs into the interchange document
// consumed by visualization front ends.
package export

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/matsen/citenet/internal/network"
)

// Document is the interchange form of a CitationGraph.
type Document struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// Node is one paper.
type Node struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Year            *int     `json:"year"`
	Authors         []string `json:"authors"`
	Journal         string   `json:"journal"`
	SimilarityScore float64  `json:"similarity_score"`
}

// Edge is one typed relation.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// Weights are the signal weights a graph was built with.
type Weights struct {
	Direct     float64 `json:"direct"`
	CoCitation float64 `json:"co_citation"`
	Coupling   float64 `json:"coupling"`
}

// Metadata summarizes the build.
type Metadata struct {
	Seed            string  `json:"seed"`
	TopN            int     `json:"top_n"`
	Weights         Weights `json:"weights"`
	Truncated       bool    `json:"truncated"`
	PartialMetadata bool    `json:"partial_metadata"`
	PoolSize        int     `json:"pool_size"`
	PoolCap         int     `json:"pool_cap"`
}

// ToInterchange maps a graph to its document. Nodes are ordered seed first,
// then by similarity descending and DOI ascending; edges keep graph order.
// Scores are rounded to two decimals.
func ToInterchange(g *network.CitationGraph) Document {
	doc := Document{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
		Metadata: Metadata{
			Seed: g.Seed,
			TopN: g.Meta.TopN,
			Weights: Weights{
				Direct:     g.Meta.Weights.Direct,
				CoCitation: g.Meta.Weights.CoCitation,
				Coupling:   g.Meta.Weights.Coupling,
			},
			Truncated:       g.Meta.Truncated,
			PartialMetadata: g.Meta.PartialMetadata,
			PoolSize:        g.Meta.PoolSize,
			PoolCap:         g.Meta.PoolCap,
		},
	}

	for _, n := range g.SortedNodes() {
		authors := n.Authors
		if authors == nil {
			authors = []string{}
		}
		doc.Nodes = append(doc.Nodes, Node{
			ID:              n.DOI,
			Title:           n.Title,
			Year:            n.Year,
			Authors:         authors,
			Journal:         n.Journal,
			SimilarityScore: round2(n.SimilarityScore),
		})
	}

	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, Edge{
			Source: e.Source,
			Target: e.Target,
			Type:   string(e.Type),
			Weight: round2(e.Weight),
		})
	}
	return doc
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Marshal encodes a document as indented JSON with a trailing newline.
// Equal documents always produce identical bytes.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshaling interchange document: %w", err)
	}
	return buf.Bytes(), nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of an encoded document, for
// use as a cache key or ETag.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
