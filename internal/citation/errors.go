package citation

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the DOI is unknown to the accessor.
var ErrNotFound = errors.New("doi not found")

// NotFound returns an error wrapping ErrNotFound for doi.
func NotFound(doi string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, doi)
}

// IsNotFound returns true if the error indicates an unknown DOI.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
