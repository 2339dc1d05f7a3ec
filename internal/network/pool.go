package network

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/matsen/citenet/internal/similarity"
)

// pool is the materialized candidate set for one build.
type pool struct {
	// candidates in priority order, at most poolCap long.
	candidates []string
	discovered int
	truncated  bool

	// skippedSources counts expansion lookups dropped to stay within the cap.
	skippedSources int

	// Neighbor sets already fetched during expansion, keyed by DOI.
	forward map[string][]string
	reverse map[string][]string
}

// expansion is one one-hop lookup made while growing the pool.
type expansion struct {
	source  string
	reverse bool // Reverse(source) when true, Forward(source) otherwise
	result  []string
	ok      bool
}

// buildPool collects direct neighbors of the seed and the works one hop away
// through shared references (coupling) and, optionally, shared citers
// (co-citation). At most poolCap expansion lookups are made, coupling
// sources first, so the cost of a build is bounded by the cap.
func (b *Builder) buildPool(ctx context.Context, st *buildState) (*pool, error) {
	direct := make(map[string]bool)
	for d := range st.seedForward {
		direct[d] = true
	}
	for d := range st.seedReverse {
		direct[d] = true
	}

	// Papers citing each of the seed's references share that reference.
	var jobs []expansion
	for _, r := range sortedKeys(st.seedForward) {
		jobs = append(jobs, expansion{source: r, reverse: true})
	}
	// Papers cited by each of the seed's citers are co-cited with it.
	if b.expandCoCitation {
		for _, c := range sortedKeys(st.seedReverse) {
			jobs = append(jobs, expansion{source: c})
		}
	}

	skipped := max(len(jobs)-b.poolCap, 0)
	jobs = jobs[:len(jobs)-skipped]

	err := fanOut(ctx, b.workers, len(jobs), func(ctx context.Context, i int) {
		j := &jobs[i]
		var err error
		if j.reverse {
			j.result, err = b.acc.Reverse(ctx, j.source)
		} else {
			j.result, err = b.acc.Forward(ctx, j.source)
		}
		if err != nil {
			st.failures.Add(1)
			st.logger.Debug("expansion lookup failed",
				slog.String("doi", j.source),
				slog.Bool("reverse", j.reverse),
				slog.String("error", err.Error()))
			return
		}
		b.noteClipped(st, j.result)
		j.ok = true
	})
	if err != nil {
		return nil, err
	}

	p := &pool{
		forward:        make(map[string][]string),
		reverse:        make(map[string][]string),
		skippedSources: skipped,
		truncated:      skipped > 0,
	}
	hops := make(map[string]int)
	for d := range direct {
		hops[d] = 0
	}
	for _, j := range jobs {
		if !j.ok {
			continue
		}
		if j.reverse {
			p.reverse[j.source] = j.result
		} else {
			p.forward[j.source] = j.result
		}
		for _, d := range j.result {
			hops[d]++
		}
	}
	delete(hops, st.seed)

	p.candidates = make([]string, 0, len(hops))
	for d := range hops {
		p.candidates = append(p.candidates, d)
	}
	p.discovered = len(p.candidates)

	slices.SortFunc(p.candidates, func(a, b string) int {
		if da, db := direct[a], direct[b]; da != db {
			if da {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(hops[b], hops[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(p.candidates) > b.poolCap {
		p.candidates = p.candidates[:b.poolCap]
		p.truncated = true
	}
	return p, nil
}

// scored is the outcome of scoring one candidate.
type scored struct {
	cand    similarity.Candidate
	forward []string
	fwdOK   bool
}

// score computes the three signals for every candidate in the pool. A failed
// lookup zeroes only the signal that needed it.
func (b *Builder) score(ctx context.Context, st *buildState, p *pool) ([]scored, error) {
	out := make([]scored, len(p.candidates))

	err := fanOut(ctx, b.workers, len(p.candidates), func(ctx context.Context, i int) {
		d := p.candidates[i]
		s := similarity.Scores{
			Direct: similarity.DirectScore(st.seedForward, st.seedReverse, d),
		}

		fwd, fwdOK := p.forward[d]
		if !fwdOK {
			fwdOK = b.lookupInto(ctx, st, d, false, &fwd)
		}
		if fwdOK {
			s.Coupling = similarity.CouplingScore(similarity.NewSet(fwd), st.seedForward)
		}

		rev, revOK := p.reverse[d]
		if !revOK {
			revOK = b.lookupInto(ctx, st, d, true, &rev)
		}
		if revOK {
			s.CoCitation = similarity.CoCitationScore(similarity.NewSet(rev), st.seedReverse)
		}

		out[i] = scored{
			cand: similarity.Candidate{
				DOI:      d,
				Scores:   s,
				Combined: similarity.Combined(s, b.weights),
			},
			forward: fwd,
			fwdOK:   fwdOK,
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) lookupInto(ctx context.Context, st *buildState, d string, reverse bool, dst *[]string) bool {
	var (
		res []string
		err error
	)
	if reverse {
		res, err = b.acc.Reverse(ctx, d)
	} else {
		res, err = b.acc.Forward(ctx, d)
	}
	if err != nil {
		st.failures.Add(1)
		st.logger.Debug("candidate lookup failed",
			slog.String("doi", d),
			slog.Bool("reverse", reverse),
			slog.String("error", err.Error()))
		return false
	}
	b.noteClipped(st, res)
	*dst = res
	return true
}

// noteClipped records a list that may have been cut short by the source.
func (b *Builder) noteClipped(st *buildState, res []string) {
	if b.listLimit > 0 && len(res) >= b.listLimit {
		st.clipped.Add(1)
	}
}

func sortedKeys(s similarity.Set) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
