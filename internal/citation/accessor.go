// Package citation defines the read-only view of the citation relation that
// network building depends on.
package citation

import (
	"context"

	"github.com/matsen/citenet/internal/reference"
)

// Accessor exposes lookups over a citation relation keyed by DOI.
//
// Forward is expected to be cheap. Reverse scans the relation by its cited
// column and may take seconds for well-cited works, so callers should treat
// it as a cacheable, rate-limited resource.
//
// DOIs returned by Forward and Reverse are normalized, deduplicated and
// sorted. Unknown DOIs fail with an error wrapping ErrNotFound.
// Implementations must be safe for concurrent use.
type Accessor interface {
	// Forward returns the DOIs referenced by doi.
	Forward(ctx context.Context, doi string) ([]string, error)

	// Reverse returns the DOIs of works citing doi.
	Reverse(ctx context.Context, doi string) ([]string, error)

	// Metadata returns the bibliographic record for doi.
	Metadata(ctx context.Context, doi string) (*reference.Work, error)
}

// Limited is implemented by accessors whose Forward and Reverse return at
// most MaxResults DOIs. A result of exactly that length may be clipped.
// MaxResults <= 0 means no limit.
type Limited interface {
	MaxResults() int
}

// MaxResults returns acc's list limit, or 0 when it has none.
func MaxResults(acc Accessor) int {
	if l, ok := acc.(Limited); ok {
		return l.MaxResults()
	}
	return 0
}
