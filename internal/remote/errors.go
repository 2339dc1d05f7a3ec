package remote

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/matsen/citenet/internal/citation"
)

// Errors returned by the remote client. Unknown DOIs wrap citation.ErrNotFound.
var (
	// ErrRateLimited indicates the server rejected the request with 429.
	ErrRateLimited = errors.New("citation API rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with citation API")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from citation API")

	// ErrUnavailable indicates the circuit breaker is rejecting requests.
	ErrUnavailable = errors.New("citation API unavailable")
)

// APIError represents a non-success HTTP status from the API.
type APIError struct {
	StatusCode int
	Message    string
	DOI        string
}

func (e *APIError) Error() string {
	if e.DOI != "" {
		return fmt.Sprintf("citation API error (status %d): %s (doi: %s)", e.StatusCode, e.Message, e.DOI)
	}
	return fmt.Sprintf("citation API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnavailable returns true if the breaker is open.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// countsAsFailure reports whether err should trip the breaker. Not-found and
// rate-limit answers mean the server is healthy.
func countsAsFailure(err error) bool {
	if err == nil || citation.IsNotFound(err) || IsRateLimited(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
