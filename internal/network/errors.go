package network

import (
	"errors"
	"fmt"
)

var (
	// ErrSeedNotFound is matched by errors returned when the seed DOI is
	// unknown.
	ErrSeedNotFound = errors.New("seed not found")

	// ErrInvalidTopN indicates a non-positive top_n.
	ErrInvalidTopN = errors.New("top_n must be positive")
)

// SeedNotFoundError reports an unknown seed DOI. It is the only lookup
// failure that aborts a build.
type SeedNotFoundError struct {
	DOI string
	Err error
}

func (e *SeedNotFoundError) Error() string {
	return fmt.Sprintf("seed %s not found", e.DOI)
}

func (e *SeedNotFoundError) Is(target error) bool {
	return target == ErrSeedNotFound
}

func (e *SeedNotFoundError) Unwrap() error {
	return e.Err
}

// IsSeedNotFound returns true if the error indicates an unknown seed.
func IsSeedNotFound(err error) bool {
	return errors.Is(err, ErrSeedNotFound)
}
