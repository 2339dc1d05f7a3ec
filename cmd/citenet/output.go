package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matsen/citenet/internal/network"
)

// Title truncation lengths by context
const (
	RankTitleMaxLen = 70 // Used in network human output
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	DOI   string `json:"doi,omitempty"`
}

// StatusResponse is a generic response for commands that write files.
type StatusResponse struct {
	Status      string `json:"status"`
	Path        string `json:"path,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// reportError outputs an error in the appropriate format (human or JSON) and
// returns the exit code.
func reportError(err error) int {
	code := exitCode(err)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return code
	}

	resp := ErrorResponse{Error: err.Error(), Code: errorCode(code)}
	var snf *network.SeedNotFoundError
	if errors.As(err, &snf) {
		resp.DOI = snf.DOI
	}
	_ = outputJSON(resp)
	return code
}

func errorCode(exit int) string {
	switch exit {
	case ExitConfigError:
		return "config_error"
	case ExitSeedNotFound:
		return "seed_not_found"
	default:
		return "error"
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatAuthorsShort formats up to n authors, adding "et al." past that.
func formatAuthorsShort(authors []string, n int) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	if len(authors) > n {
		return strings.Join(authors[:n], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}
