package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/reference"
	"github.com/matsen/citenet/internal/similarity"
)

func rankedDOIs(g *CitationGraph) []string {
	out := make([]string, len(g.Ranked))
	for i, c := range g.Ranked {
		out[i] = c.DOI
	}
	return out
}

func TestBuild_Ranking(t *testing.T) {
	g, err := NewBuilder(smallFixture(true)).Build(context.Background(), "DOI:10.1/S", 20)
	require.NoError(t, err)

	assert.Equal(t, seedDOI, g.Seed)
	assert.Equal(t, smallRanking, rankedDOIs(g))
	assert.Len(t, g.Nodes, len(smallRanking)+1)

	want := map[string]similarity.Scores{
		"10.1/x":  {Coupling: 2},
		"10.1/c1": {Direct: 1, Coupling: 1},
		"10.1/r1": {Direct: 1, CoCitation: 1},
		"10.1/z":  {CoCitation: 1},
		"10.1/r3": {Direct: 1},
	}
	for _, c := range g.Ranked {
		if s, ok := want[c.DOI]; ok {
			assert.Equal(t, s, c.Scores, c.DOI)
		}
	}

	scores := map[string]float64{
		seedDOI:   100,
		"10.1/x":  99,
		"10.1/c1": 74.25,
		"10.1/r1": 74.25,
		"10.1/y":  49.5,
		"10.1/z":  49.5,
		"10.1/c2": 24.75,
		"10.1/r2": 24.75,
		"10.1/r3": 24.75,
	}
	for d, s := range scores {
		require.Contains(t, g.Nodes, d)
		assert.InDelta(t, s, g.Nodes[d].SimilarityScore, 1e-9, d)
	}

	assert.False(t, g.Meta.Truncated)
	assert.False(t, g.Meta.PartialMetadata)
	assert.Equal(t, 8, g.Meta.PoolSize)
	assert.Equal(t, DefaultPoolCap, g.Meta.PoolCap)
	assert.Equal(t, 20, g.Meta.TopN)
	assert.Equal(t, similarity.DefaultWeights(), g.Meta.Weights)
	assert.Zero(t, g.Meta.LookupFailures)
}

func TestBuild_Edges(t *testing.T) {
	g, err := NewBuilder(smallFixture(true)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	want := []CitationEdge{
		{seedDOI, "10.1/x", EdgeCoupled, 2},
		{"10.1/c1", seedDOI, EdgeCites, 1},
		{seedDOI, "10.1/c1", EdgeCoupled, 1},
		{seedDOI, "10.1/r1", EdgeCites, 1},
		{seedDOI, "10.1/r1", EdgeCoCited, 1},
		{seedDOI, "10.1/y", EdgeCoupled, 1},
		{seedDOI, "10.1/z", EdgeCoCited, 1},
		{"10.1/c2", seedDOI, EdgeCites, 1},
		{seedDOI, "10.1/r2", EdgeCites, 1},
		{seedDOI, "10.1/r3", EdgeCites, 1},
		{"10.1/c1", "10.1/r1", EdgeCites, 1},
		{"10.1/c2", "10.1/z", EdgeCites, 1},
		{"10.1/x", "10.1/r1", EdgeCites, 1},
		{"10.1/x", "10.1/r2", EdgeCites, 1},
		{"10.1/y", "10.1/r3", EdgeCites, 1},
	}
	assert.Equal(t, want, g.Edges)

	g, err = NewBuilder(smallFixture(true), WithInterCandidateEdges(false)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)
	assert.Equal(t, want[:10], g.Edges)
}

func TestBuild_TopN(t *testing.T) {
	g, err := NewBuilder(smallFixture(true)).Build(context.Background(), seedDOI, 3)
	require.NoError(t, err)

	assert.Equal(t, smallRanking[:3], rankedDOIs(g))
	assert.Len(t, g.Nodes, 4)
	for _, e := range g.Edges {
		assert.Contains(t, g.Nodes, e.Source)
		assert.Contains(t, g.Nodes, e.Target)
	}
}

func TestBuild_IsolatedSeed(t *testing.T) {
	m := citation.NewMemory()
	m.AddWork(reference.Work{DOI: "10.5/alone", Title: "Alone"})

	g, err := NewBuilder(m).Build(context.Background(), "10.5/alone", 20)
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 100.0, g.Nodes["10.5/alone"].SimilarityScore)
	assert.Equal(t, "Alone", g.Nodes["10.5/alone"].Title)
	assert.Empty(t, g.Edges)
	assert.False(t, g.Meta.Truncated)
	assert.True(t, g.IsEmpty())
}

func TestBuild_SeedNotFound(t *testing.T) {
	_, err := NewBuilder(smallFixture(true)).Build(context.Background(), "10.9/unknown", 5)

	require.Error(t, err)
	assert.True(t, IsSeedNotFound(err))
	assert.True(t, citation.IsNotFound(err))
	var snf *SeedNotFoundError
	require.True(t, errors.As(err, &snf))
	assert.Equal(t, "10.9/unknown", snf.DOI)
}

func TestBuild_SeedMetadataError(t *testing.T) {
	acc := &flakyAccessor{Accessor: smallFixture(true), failMeta: map[string]bool{seedDOI: true}}

	_, err := NewBuilder(acc).Build(context.Background(), seedDOI, 5)
	require.ErrorIs(t, err, errFlaky)
	assert.False(t, IsSeedNotFound(err))
}

func TestBuild_InvalidArguments(t *testing.T) {
	b := NewBuilder(smallFixture(true))

	for _, n := range []int{0, -1} {
		_, err := b.Build(context.Background(), seedDOI, n)
		assert.ErrorIs(t, err, ErrInvalidTopN)
	}

	_, err := NewBuilder(smallFixture(true), WithWeights(similarity.Weights{Direct: -1})).
		Build(context.Background(), seedDOI, 5)
	assert.ErrorIs(t, err, similarity.ErrInvalidWeights)
}

func TestBuild_Nature(t *testing.T) {
	g, err := NewBuilder(natureFixture()).Build(context.Background(), "10.1038/nature12373", 5)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(g.Nodes), 6)
	assert.Equal(t, 100.0, g.Nodes["10.1038/nature12373"].SimilarityScore)

	nodes := g.SortedNodes()
	assert.Equal(t, "10.1038/nature12373", nodes[0].DOI)
	for i := 2; i < len(nodes); i++ {
		assert.GreaterOrEqual(t, nodes[i-1].SimilarityScore, nodes[i].SimilarityScore)
	}
	assert.InDelta(t, 99.0, nodes[1].SimilarityScore, 1e-9)
}

func TestBuild_RankingProperties(t *testing.T) {
	g, err := NewBuilder(natureFixture()).Build(context.Background(), "10.1038/nature12373", 50)
	require.NoError(t, err)

	require.NotEmpty(t, g.Ranked)
	for i := 1; i < len(g.Ranked); i++ {
		prev, cur := g.Ranked[i-1], g.Ranked[i]
		assert.GreaterOrEqual(t, prev.Combined, cur.Combined)
		if prev.Combined == cur.Combined {
			assert.Less(t, prev.DOI, cur.DOI, "ties are broken by DOI")
		}
	}
	for _, e := range g.Edges {
		assert.Contains(t, g.Nodes, e.Source)
		assert.Contains(t, g.Nodes, e.Target)
		assert.GreaterOrEqual(t, e.Weight, 0.0)
	}
	assert.LessOrEqual(t, len(g.Nodes), 51)
}

func TestBuild_PoolCap(t *testing.T) {
	const seed = "10.1/popular"
	m := citation.NewMemory()
	m.AddWork(reference.Work{DOI: seed})
	for i := 0; i < 100_000; i++ {
		m.AddCitation(fmt.Sprintf("10.2/c%06d", i), seed)
	}

	g, err := NewBuilder(m, WithPoolCap(2000)).Build(context.Background(), seed, 10)
	require.NoError(t, err)

	assert.True(t, g.Meta.Truncated)
	assert.Equal(t, 100_000, g.Meta.PoolSize)
	assert.Equal(t, 2000, g.Meta.PoolCap)
	assert.Len(t, g.Nodes, 11)
	assert.Equal(t, "10.2/c000000", g.Ranked[0].DOI)
	assert.Equal(t, "10.2/c000009", g.Ranked[9].DOI)

	// Candidates have no metadata; that is disclosed, not fatal.
	assert.True(t, g.Meta.PartialMetadata)
	assert.Len(t, g.Meta.MissingMetadata, 10)
}

func TestBuild_PoolCapPrefersDirectNeighbors(t *testing.T) {
	g, err := NewBuilder(smallFixture(true), WithPoolCap(5)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	assert.True(t, g.Meta.Truncated)
	assert.Equal(t, 8, g.Meta.PoolSize)
	assert.ElementsMatch(t,
		[]string{"10.1/c1", "10.1/c2", "10.1/r1", "10.1/r2", "10.1/r3"},
		rankedDOIs(g))
}

func TestBuild_PoolCapBoundsExpansion(t *testing.T) {
	const (
		seed    = "10.1/hub"
		ref     = "10.1/shared"
		poolCap = 50
	)
	m := citation.NewMemory()
	m.AddWork(reference.Work{DOI: seed})
	m.AddCitation(seed, ref)
	for i := 0; i < 500; i++ {
		citer := fmt.Sprintf("10.2/c%04d", i)
		m.AddCitation(citer, seed)
		m.AddCitation(citer, ref)
	}
	acc := &countingAccessor{Accessor: m}

	g, err := NewBuilder(acc, WithPoolCap(poolCap)).Build(context.Background(), seed, 10)
	require.NoError(t, err)

	assert.True(t, g.Meta.Truncated)
	assert.Len(t, g.Ranked, 10)
	// One seed lookup, then at most poolCap expansion and poolCap scoring
	// lookups in each direction.
	assert.LessOrEqual(t, acc.forward.Load(), int64(1+2*poolCap))
	assert.LessOrEqual(t, acc.reverse.Load(), int64(1+2*poolCap))
}

func TestBuild_ClippedListsAreDisclosed(t *testing.T) {
	// The seed cites exactly three works, which fills a limit of three.
	g, err := NewBuilder(&limitedAccessor{Accessor: smallFixture(true), limit: 3}).
		Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)
	assert.True(t, g.Meta.Truncated)
	assert.Equal(t, smallRanking, rankedDOIs(g))

	g, err = NewBuilder(&limitedAccessor{Accessor: smallFixture(true), limit: 10}).
		Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)
	assert.False(t, g.Meta.Truncated)
}

func TestBuild_RankedMatchesSortedNodes(t *testing.T) {
	// With a high floor, several candidates share the floor score while
	// their combined scores differ.
	g, err := NewBuilder(smallFixture(true), WithScoreFloor(80)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	nodes := g.SortedNodes()
	require.Len(t, nodes, len(g.Ranked)+1)
	assert.Equal(t, seedDOI, nodes[0].DOI)
	for i, c := range g.Ranked {
		assert.Equal(t, c.DOI, nodes[i+1].DOI, "position %d", i+1)
	}
}

func TestBuild_LookupFailureDegrades(t *testing.T) {
	acc := &flakyAccessor{
		Accessor:    smallFixture(true),
		failForward: map[string]bool{"10.1/x": true},
		failReverse: map[string]bool{"10.1/r1": true},
	}

	g, err := NewBuilder(acc).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	// x loses coupling entirely; r1 keeps its direct link only. r1 also failed
	// as an expansion source, so x is found only through r2.
	for _, c := range g.Ranked {
		switch c.DOI {
		case "10.1/x":
			assert.Equal(t, 0.0, c.Combined)
		case "10.1/r1":
			assert.Equal(t, similarity.Scores{Direct: 1}, c.Scores)
		}
	}
	assert.Contains(t, g.Nodes, "10.1/x")
	assert.Positive(t, g.Meta.LookupFailures)
	assert.InDelta(t, DefaultScoreFloor, g.Nodes["10.1/x"].SimilarityScore, 1e-9)
}

func TestBuild_SeedLookupFailureDegrades(t *testing.T) {
	acc := &flakyAccessor{
		Accessor:    smallFixture(true),
		failForward: map[string]bool{seedDOI: true},
		failReverse: map[string]bool{seedDOI: true},
	}

	g, err := NewBuilder(acc).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, 2, g.Meta.LookupFailures)
}

func TestBuild_PartialMetadata(t *testing.T) {
	g, err := NewBuilder(smallFixture(false)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	assert.True(t, g.Meta.PartialMetadata)
	assert.Equal(t, []string{
		"10.1/c1", "10.1/c2", "10.1/r1", "10.1/r2", "10.1/r3", "10.1/x", "10.1/y", "10.1/z",
	}, g.Meta.MissingMetadata)

	x := g.Nodes["10.1/x"]
	assert.Empty(t, x.Title)
	assert.Nil(t, x.Year)
	assert.Empty(t, x.Authors)
	assert.Equal(t, 99.0, x.SimilarityScore)

	seed := g.Nodes[seedDOI]
	assert.Equal(t, []string{"Ada Lovelace"}, seed.Authors)
	require.NotNil(t, seed.Year)
	assert.Equal(t, 2013, *seed.Year)
}

func TestWithScoreFloor_Clamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-3, MinScoreFloor},
		{0, MinScoreFloor},
		{MinScoreFloor, MinScoreFloor},
		{5, 5},
		{150, MaxCandidateScore},
	}
	for _, tt := range tests {
		b := NewBuilder(smallFixture(true), WithScoreFloor(tt.in))
		assert.Equal(t, tt.want, b.floor, "WithScoreFloor(%v)", tt.in)
	}
}

func TestBuild_ZeroScoreFloorStaysPositive(t *testing.T) {
	b := NewBuilder(smallFixture(true),
		WithWeights(similarity.Weights{Direct: 0, CoCitation: 0, Coupling: 0}),
		WithScoreFloor(0))

	g, err := b.Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)
	require.NotEmpty(t, g.Ranked)
	for d, n := range g.Nodes {
		assert.Greater(t, n.SimilarityScore, 0.0, d)
	}
}

func TestBuild_ScoreFloor(t *testing.T) {
	b := NewBuilder(smallFixture(true),
		WithWeights(similarity.Weights{Direct: 0, CoCitation: 0, Coupling: 0}),
		WithScoreFloor(5))

	g, err := b.Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	// All combined scores are zero: order falls back to DOI and every
	// candidate sits on the floor.
	assert.Equal(t, []string{
		"10.1/c1", "10.1/c2", "10.1/r1", "10.1/r2", "10.1/r3", "10.1/x", "10.1/y", "10.1/z",
	}, rankedDOIs(g))
	for d, n := range g.Nodes {
		if d == seedDOI {
			continue
		}
		assert.Equal(t, 5.0, n.SimilarityScore, d)
	}
}

func TestBuild_WithoutCoCitationExpansion(t *testing.T) {
	g, err := NewBuilder(smallFixture(true), WithCoCitationExpansion(false)).Build(context.Background(), seedDOI, 20)
	require.NoError(t, err)

	assert.NotContains(t, g.Nodes, "10.1/z")
	assert.Equal(t, 7, g.Meta.PoolSize)
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(smallFixture(true)).Build(ctx, seedDOI, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_AbandonsStuckLookups(t *testing.T) {
	acc := &stuckAccessor{Accessor: smallFixture(true), release: make(chan struct{})}
	t.Cleanup(acc.Release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewBuilder(acc).Build(ctx, seedDOI, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBuild_ConcurrentBuilds(t *testing.T) {
	b := NewBuilder(smallFixture(true), WithWorkers(4))

	var wg sync.WaitGroup
	graphs := make([]*CitationGraph, 8)
	errs := make([]error, 8)
	for i := range graphs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			graphs[i], errs[i] = b.Build(context.Background(), seedDOI, 20)
		}(i)
	}
	wg.Wait()

	for i := range graphs {
		require.NoError(t, errs[i])
		assert.Equal(t, graphs[0].Edges, graphs[i].Edges)
		assert.Equal(t, graphs[0].Ranked, graphs[i].Ranked)
	}
}

func TestBuild_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, err := NewBuilder(smallFixture(true), WithTracerProvider(tp)).Build(context.Background(), seedDOI, 5)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	for _, n := range []string{"network.Build", "network.expand", "network.score", "network.metadata"} {
		assert.True(t, names[n], "missing span %s", n)
	}
}
