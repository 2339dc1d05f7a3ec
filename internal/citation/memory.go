package citation

import (
	"context"
	"slices"
	"sync"

	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/reference"
)

// Memory is an Accessor over an in-process citation relation. It is used for
// fixtures and tests, and for small stores that fit in memory.
type Memory struct {
	mu      sync.RWMutex
	works   map[string]*reference.Work
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
}

// NewMemory creates an empty in-memory relation.
func NewMemory() *Memory {
	return &Memory{
		works:   make(map[string]*reference.Work),
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// NewMemoryFromWorks creates a relation from a slice of works and the
// references each one makes, keyed by citing DOI.
func NewMemoryFromWorks(works []reference.Work, refs map[string][]string) *Memory {
	m := NewMemory()
	for i := range works {
		m.AddWork(works[i])
	}
	for citing, cited := range refs {
		for _, c := range cited {
			m.AddCitation(citing, c)
		}
	}
	return m
}

// AddWork registers the metadata for a work. The DOI is normalized.
func (m *Memory) AddWork(w reference.Work) {
	w.DOI = doi.Normalize(w.DOI)
	if w.DOI == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.works[w.DOI] = &w
}

// AddCitation records that citing references cited. Both DOIs are
// normalized; self-citations and empty DOIs are ignored.
func (m *Memory) AddCitation(citing, cited string) {
	citing, cited = doi.Normalize(citing), doi.Normalize(cited)
	if citing == "" || cited == "" || citing == cited {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	addEdge(m.forward, citing, cited)
	addEdge(m.reverse, cited, citing)
}

func addEdge(index map[string]map[string]struct{}, from, to string) {
	set, ok := index[from]
	if !ok {
		set = make(map[string]struct{})
		index[from] = set
	}
	set[to] = struct{}{}
}

// known reports whether doi appears anywhere in the relation. Must be called
// with mu held.
func (m *Memory) known(key string) bool {
	if _, ok := m.works[key]; ok {
		return true
	}
	if _, ok := m.forward[key]; ok {
		return true
	}
	_, ok := m.reverse[key]
	return ok
}

// Forward returns the references made by the work.
func (m *Memory) Forward(ctx context.Context, id string) ([]string, error) {
	return m.lookup(ctx, m.forward, id)
}

// Reverse returns the works citing the work.
func (m *Memory) Reverse(ctx context.Context, id string) ([]string, error) {
	return m.lookup(ctx, m.reverse, id)
}

func (m *Memory) lookup(ctx context.Context, index map[string]map[string]struct{}, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := doi.Normalize(id)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.known(key) {
		return nil, NotFound(key)
	}
	out := make([]string, 0, len(index[key]))
	for d := range index[key] {
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}

// Metadata returns a copy of the registered record.
func (m *Memory) Metadata(ctx context.Context, id string) (*reference.Work, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := doi.Normalize(id)

	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.works[key]
	if !ok {
		return nil, NotFound(key)
	}
	out := *w
	out.Authors = slices.Clone(w.Authors)
	return &out, nil
}

// Len returns the number of works with registered metadata.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.works)
}
