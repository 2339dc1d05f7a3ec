package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/reference"
)

const seedDOI = "10.1/s"

// smallFixture is a relation around seedDOI:
//
//	s cites r1 r2 r3; c1 and c2 cite s
//	c1 cites r1 (coupled with s, and co-cites r1 with s)
//	c2 cites z  (z co-cited with s)
//	x cites r1 r2, y cites r3 (coupled with s)
//
// Expected ranking with default weights: x(4) c1(3) r1(3) y(2) z(2) c2(1)
// r2(1) r3(1).
func smallFixture(withMetadata bool) *citation.Memory {
	m := citation.NewMemory()
	links := map[string][]string{
		"10.1/s":  {"10.1/r1", "10.1/r2", "10.1/r3"},
		"10.1/c1": {"10.1/s", "10.1/r1"},
		"10.1/c2": {"10.1/s", "10.1/z"},
		"10.1/x":  {"10.1/r1", "10.1/r2"},
		"10.1/y":  {"10.1/r3"},
	}
	for citing, cited := range links {
		for _, c := range cited {
			m.AddCitation(citing, c)
		}
	}

	year := 2013
	m.AddWork(reference.Work{
		DOI:     seedDOI,
		Title:   "Seed",
		Year:    &year,
		Authors: []reference.Author{{First: "Ada", Last: "Lovelace"}},
		Journal: "Nature",
	})
	if withMetadata {
		for _, d := range []string{"r1", "r2", "r3", "c1", "c2", "x", "y", "z"} {
			m.AddWork(reference.Work{DOI: "10.1/" + d, Title: "Paper " + d})
		}
	}
	return m
}

var smallRanking = []string{
	"10.1/x", "10.1/c1", "10.1/r1", "10.1/y", "10.1/z", "10.1/c2", "10.1/r2", "10.1/r3",
}

// natureFixture surrounds 10.1038/nature12373 with a dozen related works of
// varying strength.
func natureFixture() *citation.Memory {
	const seed = "10.1038/nature12373"
	m := citation.NewMemory()
	m.AddWork(reference.Work{DOI: seed, Title: "Nanometre-scale thermometry in a living cell"})

	for i := 0; i < 6; i++ {
		ref := fmt.Sprintf("10.1103/ref%d", i)
		m.AddCitation(seed, ref)
		m.AddWork(reference.Work{DOI: ref, Title: "Reference " + ref})
	}
	for i := 0; i < 8; i++ {
		citer := fmt.Sprintf("10.1126/citer%d", i)
		m.AddCitation(citer, seed)
		// Each citer shares i%4 references with the seed.
		for j := 0; j < i%4; j++ {
			m.AddCitation(citer, fmt.Sprintf("10.1103/ref%d", j))
		}
	}
	for i := 0; i < 5; i++ {
		peer := fmt.Sprintf("10.1021/peer%d", i)
		for j := 0; j <= i; j++ {
			m.AddCitation(peer, fmt.Sprintf("10.1103/ref%d", j))
		}
	}
	return m
}

// flakyAccessor fails selected lookups.
type flakyAccessor struct {
	citation.Accessor
	failForward map[string]bool
	failReverse map[string]bool
	failMeta    map[string]bool
}

var errFlaky = errors.New("store timeout")

func (f *flakyAccessor) Forward(ctx context.Context, d string) ([]string, error) {
	if f.failForward[d] {
		return nil, errFlaky
	}
	return f.Accessor.Forward(ctx, d)
}

func (f *flakyAccessor) Reverse(ctx context.Context, d string) ([]string, error) {
	if f.failReverse[d] {
		return nil, errFlaky
	}
	return f.Accessor.Reverse(ctx, d)
}

func (f *flakyAccessor) Metadata(ctx context.Context, d string) (*reference.Work, error) {
	if f.failMeta[d] {
		return nil, errFlaky
	}
	return f.Accessor.Metadata(ctx, d)
}

// stuckAccessor blocks Reverse until released, ignoring ctx.
type stuckAccessor struct {
	citation.Accessor
	release chan struct{}
	once    sync.Once
}

func (s *stuckAccessor) Reverse(ctx context.Context, d string) ([]string, error) {
	<-s.release
	return s.Accessor.Reverse(ctx, d)
}

func (s *stuckAccessor) Release() {
	s.once.Do(func() { close(s.release) })
}

// countingAccessor counts Forward and Reverse lookups.
type countingAccessor struct {
	citation.Accessor
	forward atomic.Int64
	reverse atomic.Int64
}

func (c *countingAccessor) Forward(ctx context.Context, d string) ([]string, error) {
	c.forward.Add(1)
	return c.Accessor.Forward(ctx, d)
}

func (c *countingAccessor) Reverse(ctx context.Context, d string) ([]string, error) {
	c.reverse.Add(1)
	return c.Accessor.Reverse(ctx, d)
}

// limitedAccessor reports a list limit the way a paginated remote source
// does. It does not clip results itself.
type limitedAccessor struct {
	citation.Accessor
	limit int
}

func (l *limitedAccessor) MaxResults() int { return l.limit }
