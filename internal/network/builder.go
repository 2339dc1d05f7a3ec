package network

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/reference"
	"github.com/matsen/citenet/internal/similarity"
)

// Builder builds citation graphs. It holds configuration only, so one
// Builder may serve concurrent Build calls.
type Builder struct {
	acc              citation.Accessor
	weights          similarity.Weights
	poolCap          int
	floor            float64
	workers          int
	logger           *slog.Logger
	tracer           trace.Tracer
	expandCoCitation bool
	interEdges       bool

	// listLimit is the accessor's cap on Forward and Reverse results.
	listLimit int
}

// NewBuilder creates a Builder reading from acc.
func NewBuilder(acc citation.Accessor, opts ...Option) *Builder {
	b := defaultBuilder()
	b.acc = acc
	b.listLimit = citation.MaxResults(acc)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// buildState is the per-call scratch space.
type buildState struct {
	seed        string
	seedForward similarity.Set
	seedReverse similarity.Set
	failures    atomic.Int64
	clipped     atomic.Int64 // lists that hit the accessor's limit
	logger      *slog.Logger
}

// Build returns the network around seed with at most topN candidates.
//
// Only an unknown seed (SeedNotFoundError), an invalid argument, a failure to
// read the seed's own record, or ctx ending abort the build. Every other
// lookup failure degrades the result and is disclosed in the graph metadata.
func (b *Builder) Build(ctx context.Context, seed string, topN int) (*CitationGraph, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, topN)
	}
	if err := b.weights.Validate(); err != nil {
		return nil, err
	}

	key := doi.Normalize(seed)
	st := &buildState{
		seed:   key,
		logger: b.logger.With(slog.String("build_id", uuid.NewString()), slog.String("seed", key)),
	}
	start := time.Now()

	ctx, span := b.tracer.Start(ctx, "network.Build", trace.WithAttributes(
		attribute.String("seed", key),
		attribute.Int("top_n", topN),
	))
	defer span.End()

	g, err := b.build(ctx, st, topN)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		st.logger.Info("network build failed", slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pool_size", g.Meta.PoolSize),
		attribute.Bool("truncated", g.Meta.Truncated),
		attribute.Int("lookup_failures", g.Meta.LookupFailures),
		attribute.Int("nodes", len(g.Nodes)),
	)
	st.logger.Info("network built",
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
		slog.Int("pool_size", g.Meta.PoolSize),
		slog.Bool("truncated", g.Meta.Truncated),
		slog.Int("lookup_failures", g.Meta.LookupFailures),
		slog.Duration("elapsed", time.Since(start)))
	return g, nil
}

func (b *Builder) build(ctx context.Context, st *buildState, topN int) (*CitationGraph, error) {
	seedWork, err := b.acc.Metadata(ctx, st.seed)
	if err != nil {
		if citation.IsNotFound(err) {
			return nil, &SeedNotFoundError{DOI: st.seed, Err: err}
		}
		return nil, fmt.Errorf("resolving seed %s: %w", st.seed, err)
	}

	if err := b.fetchSeedNeighbors(ctx, st); err != nil {
		return nil, err
	}

	expandCtx, expandSpan := b.tracer.Start(ctx, "network.expand")
	p, err := b.buildPool(expandCtx, st)
	expandSpan.End()
	if err != nil {
		return nil, fmt.Errorf("building candidate pool: %w", err)
	}
	if p.truncated {
		st.logger.Warn("candidate pool truncated",
			slog.Int("discovered", p.discovered),
			slog.Int("skipped_sources", p.skippedSources),
			slog.Int("cap", b.poolCap))
	}

	scoreCtx, scoreSpan := b.tracer.Start(ctx, "network.score",
		trace.WithAttributes(attribute.Int("candidates", len(p.candidates))))
	results, err := b.score(scoreCtx, st, p)
	scoreSpan.End()
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}

	selected := rankScored(results, topN)

	g := &CitationGraph{
		Seed:  st.seed,
		Nodes: make(map[string]*PaperNode, len(selected)+1),
		Meta: Metadata{
			TopN:      topN,
			Weights:   b.weights,
			Truncated: p.truncated,
			PoolSize:  p.discovered,
			PoolCap:   b.poolCap,
		},
		Ranked: make([]similarity.Candidate, len(selected)),
	}

	g.Nodes[st.seed] = nodeFromWork(st.seed, seedWork, SeedScore)
	for i, s := range selected {
		g.Ranked[i] = s.cand
		g.Nodes[s.cand.DOI] = &PaperNode{DOI: s.cand.DOI}
	}
	b.normalize(g)

	metaCtx, metaSpan := b.tracer.Start(ctx, "network.metadata")
	err = b.resolveMetadata(metaCtx, st, g)
	metaSpan.End()
	if err != nil {
		return nil, fmt.Errorf("resolving metadata: %w", err)
	}

	g.Edges = b.assembleEdges(st, selected)
	g.Meta.LookupFailures = int(st.failures.Load())
	if n := st.clipped.Load(); n > 0 {
		g.Meta.Truncated = true
		st.logger.Warn("citation lists clipped by source",
			slog.Int64("lists", n),
			slog.Int("limit", b.listLimit))
	}
	return g, nil
}

// fetchSeedNeighbors loads the seed's forward and reverse sets. A failed
// lookup leaves that set empty.
func (b *Builder) fetchSeedNeighbors(ctx context.Context, st *buildState) error {
	var fwd, rev []string
	err := fanOut(ctx, 2, 2, func(ctx context.Context, i int) {
		if i == 0 {
			b.lookupInto(ctx, st, st.seed, false, &fwd)
		} else {
			b.lookupInto(ctx, st, st.seed, true, &rev)
		}
	})
	if err != nil {
		return fmt.Errorf("fetching seed citations: %w", err)
	}

	st.seedForward = similarity.NewSet(fwd)
	st.seedReverse = similarity.NewSet(rev)
	delete(st.seedForward, st.seed)
	delete(st.seedReverse, st.seed)
	return nil
}

// normalize maps the best combined score to 99 and scales the rest
// linearly, never below the floor.
func (b *Builder) normalize(g *CitationGraph) {
	if len(g.Ranked) == 0 {
		return
	}
	top := g.Ranked[0].Combined
	for _, c := range g.Ranked {
		score := b.floor
		if top > 0 {
			score = max(c.Combined/top*MaxCandidateScore, b.floor)
		}
		g.Nodes[c.DOI].SimilarityScore = score
	}
}

// resolveMetadata fills node records concurrently. Candidates whose record
// cannot be read keep empty fields.
func (b *Builder) resolveMetadata(ctx context.Context, st *buildState, g *CitationGraph) error {
	works := make([]*reference.Work, len(g.Ranked))
	err := fanOut(ctx, b.workers, len(g.Ranked), func(ctx context.Context, i int) {
		w, err := b.acc.Metadata(ctx, g.Ranked[i].DOI)
		if err != nil {
			st.logger.Debug("metadata lookup failed",
				slog.String("doi", g.Ranked[i].DOI),
				slog.String("error", err.Error()))
			return
		}
		works[i] = w
	})
	if err != nil {
		return err
	}

	for i, c := range g.Ranked {
		if works[i] == nil {
			g.Meta.MissingMetadata = append(g.Meta.MissingMetadata, c.DOI)
			continue
		}
		score := g.Nodes[c.DOI].SimilarityScore
		g.Nodes[c.DOI] = nodeFromWork(c.DOI, works[i], score)
	}
	if len(g.Meta.MissingMetadata) > 0 {
		slices.Sort(g.Meta.MissingMetadata)
		g.Meta.PartialMetadata = true
	}
	return nil
}

// rankScored returns the topN results in ranking order.
func rankScored(results []scored, topN int) []scored {
	cands := make([]similarity.Candidate, len(results))
	byDOI := make(map[string]scored, len(results))
	for i, r := range results {
		cands[i] = r.cand
		byDOI[r.cand.DOI] = r
	}
	similarity.Rank(cands)

	selected := make([]scored, min(topN, len(cands)))
	for i := range selected {
		selected[i] = byDOI[cands[i].DOI]
	}
	return selected
}

func nodeFromWork(key string, w *reference.Work, score float64) *PaperNode {
	return &PaperNode{
		DOI:             key,
		Title:           w.Title,
		Year:            w.Year,
		Authors:         w.AuthorNames(),
		Journal:         w.Journal,
		SimilarityScore: score,
	}
}

// assembleEdges emits the seed edges for each selected candidate in rank
// order, followed by cites edges among candidates ordered by (source,
// target).
func (b *Builder) assembleEdges(st *buildState, selected []scored) []CitationEdge {
	var edges []CitationEdge
	for _, s := range selected {
		d := s.cand.DOI
		if st.seedForward.Contains(d) {
			edges = append(edges, CitationEdge{Source: st.seed, Target: d, Type: EdgeCites, Weight: 1})
		}
		if st.seedReverse.Contains(d) {
			edges = append(edges, CitationEdge{Source: d, Target: st.seed, Type: EdgeCites, Weight: 1})
		}
		if n := s.cand.Scores.CoCitation; n > 0 {
			edges = append(edges, CitationEdge{Source: st.seed, Target: d, Type: EdgeCoCited, Weight: float64(n)})
		}
		if n := s.cand.Scores.Coupling; n > 0 {
			edges = append(edges, CitationEdge{Source: st.seed, Target: d, Type: EdgeCoupled, Weight: float64(n)})
		}
	}

	if !b.interEdges {
		return edges
	}

	inGraph := make(similarity.Set, len(selected))
	for _, s := range selected {
		inGraph[s.cand.DOI] = struct{}{}
	}
	var inter []CitationEdge
	for _, s := range selected {
		if !s.fwdOK {
			continue
		}
		for _, t := range s.forward {
			if t != s.cand.DOI && inGraph.Contains(t) {
				inter = append(inter, CitationEdge{Source: s.cand.DOI, Target: t, Type: EdgeCites, Weight: 1})
			}
		}
	}
	slices.SortFunc(inter, func(x, y CitationEdge) int {
		return cmp.Or(cmp.Compare(x.Source, y.Source), cmp.Compare(x.Target, y.Target))
	})
	return append(edges, inter...)
}
