package main

import (
	"errors"

	"github.com/matsen/citenet/internal/network"
)

// Exit codes
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error (bad config file, missing store)
	ExitSeedNotFound = 3 // Seed DOI unknown to the citation source
)

// exitError attaches an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode picks the process exit code for err.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if network.IsSeedNotFound(err) {
		return ExitSeedNotFound
	}
	return ExitError
}
