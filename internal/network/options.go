package network

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/matsen/citenet/internal/similarity"
)

// Defaults for Builder options.
const (
	DefaultTopN       = 20
	DefaultPoolCap    = 2000
	DefaultScoreFloor = 1.0
	DefaultWorkers    = 16
)

// MinScoreFloor is the smallest accepted score floor. Every selected
// candidate scores strictly above zero.
const MinScoreFloor = 0.01

const tracerName = "github.com/matsen/citenet/internal/network"

// Option configures a Builder.
type Option func(*Builder)

// WithWeights sets the signal weights.
func WithWeights(w similarity.Weights) Option {
	return func(b *Builder) { b.weights = w }
}

// WithPoolCap bounds the number of candidates scored.
func WithPoolCap(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.poolCap = n
		}
	}
}

// WithScoreFloor sets the minimum normalized score of a selected candidate.
// Values are clamped to [MinScoreFloor, 99].
func WithScoreFloor(f float64) Option {
	return func(b *Builder) {
		b.floor = min(max(f, MinScoreFloor), MaxCandidateScore)
	}
}

// WithWorkers sets how many lookups run concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracerProvider sets the provider used for build spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Builder) {
		if tp != nil {
			b.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithCoCitationExpansion toggles adding works cited by the seed's citers to
// the pool.
func WithCoCitationExpansion(on bool) Option {
	return func(b *Builder) { b.expandCoCitation = on }
}

// WithInterCandidateEdges toggles cites edges between selected candidates.
func WithInterCandidateEdges(on bool) Option {
	return func(b *Builder) { b.interEdges = on }
}

func defaultBuilder() *Builder {
	return &Builder{
		weights:          similarity.DefaultWeights(),
		poolCap:          DefaultPoolCap,
		floor:            DefaultScoreFloor,
		workers:          DefaultWorkers,
		logger:           slog.New(slog.DiscardHandler),
		tracer:           otel.Tracer(tracerName),
		expandCoCitation: true,
		interEdges:       true,
	}
}
