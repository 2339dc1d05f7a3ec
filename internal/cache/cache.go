// Package cache wraps a citation.Accessor with an in-memory cache, request
// coalescing, a rate limit on reverse lookups and an optional persistent
// tier.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/reference"
)

const (
	opForward  = "forward"
	opReverse  = "reverse"
	opMetadata = "metadata"
)

// DefaultMaxCost is the default in-memory budget, counted in DOIs held.
const DefaultMaxCost = 1 << 22

var _ citation.Accessor = (*Cache)(nil)

// Cache is a caching citation.Accessor. Not-found results are never cached.
type Cache struct {
	inner   citation.Accessor
	mem     *ristretto.Cache[string, any]
	flight  singleflight.Group
	limiter *rate.Limiter
	disk    *tier
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	maxCost  int64
	rps      float64
	burst    int
	db       *badger.DB
	ttl      time.Duration
	registry prometheus.Registerer
	logger   *slog.Logger
}

// WithMaxCost sets the in-memory budget.
func WithMaxCost(n int64) Option {
	return func(c *config) { c.maxCost = n }
}

// WithReverseRateLimit limits uncached Reverse calls to rps with the given
// burst. rps <= 0 disables the limit.
func WithReverseRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		c.rps = rps
		c.burst = burst
	}
}

// WithPersistent adds a badger tier consulted after the in-memory cache.
// The caller owns db.
func WithPersistent(db *badger.DB, ttl time.Duration) Option {
	return func(c *config) {
		c.db = db
		c.ttl = ttl
	}
}

// WithRegisterer registers the cache metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New wraps inner.
func New(inner citation.Accessor, opts ...Option) (*Cache, error) {
	cfg := config{maxCost: DefaultMaxCost, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	mem, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: max(cfg.maxCost/4, 1024),
		MaxCost:     cfg.maxCost,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	c := &Cache{
		inner:   inner,
		mem:     mem,
		limiter: rate.NewLimiter(rate.Inf, 0),
		metrics: NewMetrics(cfg.registry),
		logger:  cfg.logger,
	}
	if cfg.rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.rps), max(cfg.burst, 1))
	}
	if cfg.db != nil {
		c.disk = &tier{db: cfg.db, ttl: cfg.ttl}
	}
	return c, nil
}

// Metrics returns the collectors for this cache.
func (c *Cache) Metrics() *Metrics {
	return c.metrics
}

// Close releases the in-memory cache. The persistent tier is owned by the
// caller.
func (c *Cache) Close() {
	c.mem.Close()
}

// MaxResults passes through the wrapped accessor's list limit.
func (c *Cache) MaxResults() int {
	return citation.MaxResults(c.inner)
}

// Forward returns the references made by the work.
func (c *Cache) Forward(ctx context.Context, id string) ([]string, error) {
	return c.relation(ctx, opForward, id, c.inner.Forward)
}

// Reverse returns the works citing the work. Uncached calls wait on the
// reverse rate limiter.
func (c *Cache) Reverse(ctx context.Context, id string) ([]string, error) {
	return c.relation(ctx, opReverse, id, func(ctx context.Context, key string) ([]string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("reverse rate limiter: %w", err)
		}
		return c.inner.Reverse(ctx, key)
	})
}

func (c *Cache) relation(ctx context.Context, op, id string, fetch func(context.Context, string) ([]string, error)) ([]string, error) {
	key := doi.Normalize(id)
	v, err := c.lookup(ctx, op, key, func(ctx context.Context) (any, error) {
		return fetch(ctx, key)
	}, func(data []byte) (any, error) {
		var out []string
		err := json.Unmarshal(data, &out)
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

// Metadata returns the record for the work.
func (c *Cache) Metadata(ctx context.Context, id string) (*reference.Work, error) {
	key := doi.Normalize(id)
	v, err := c.lookup(ctx, opMetadata, key, func(ctx context.Context) (any, error) {
		return c.inner.Metadata(ctx, key)
	}, func(data []byte) (any, error) {
		var w reference.Work
		err := json.Unmarshal(data, &w)
		return &w, err
	})
	if err != nil {
		return nil, err
	}
	w := *v.(*reference.Work)
	w.Authors = slices.Clone(w.Authors)
	return &w, nil
}

// lookup consults memory, then disk, then coalesces the inner call.
func (c *Cache) lookup(
	ctx context.Context,
	op, key string,
	fetch func(context.Context) (any, error),
	decode func([]byte) (any, error),
) (any, error) {
	ck := op + "/" + key
	if v, ok := c.mem.Get(ck); ok {
		c.metrics.Hits.WithLabelValues(op, "memory").Inc()
		return v, nil
	}

	// The shared call outlives any one caller; each caller abandons it on
	// its own ctx below.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(ck, func() (any, error) {
		if v, ok := c.fromDisk(ck, decode); ok {
			c.metrics.Hits.WithLabelValues(op, "disk").Inc()
			c.remember(ck, v)
			return v, nil
		}

		c.metrics.Misses.WithLabelValues(op).Inc()
		start := time.Now()
		v, err := fetch(shared)
		c.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			if !citation.IsNotFound(err) {
				c.metrics.Errors.WithLabelValues(op).Inc()
			}
			return nil, err
		}

		c.remember(ck, v)
		c.toDisk(ck, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.Shared.WithLabelValues(op).Inc()
		}
		return res.Val, res.Err
	}
}

func (c *Cache) remember(ck string, v any) {
	cost := int64(1)
	if dois, ok := v.([]string); ok {
		cost += int64(len(dois))
	}
	c.mem.Set(ck, v, cost)
	c.mem.Wait()
}

func (c *Cache) fromDisk(ck string, decode func([]byte) (any, error)) (any, bool) {
	if c.disk == nil {
		return nil, false
	}
	data, err := c.disk.get(ck)
	if err != nil {
		c.logger.Warn("cache read failed", slog.String("key", ck), slog.String("error", err.Error()))
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	v, err := decode(data)
	if err != nil {
		c.logger.Warn("cache entry corrupt", slog.String("key", ck), slog.String("error", err.Error()))
		return nil, false
	}
	return v, true
}

func (c *Cache) toDisk(ck string, v any) {
	if c.disk == nil {
		return
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = c.disk.put(ck, data)
	}
	if err != nil {
		c.logger.Warn("cache write failed", slog.String("key", ck), slog.String("error", err.Error()))
	}
}
