package main

import (
	"errors"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// Exit codes
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error (settings, endpoints, repository setup)
	ExitDataError    = 3 // Data error (malformed records, invalid decisions)
	ExitProcessOrder = 4 // Records wait for an earlier operation
	ExitServiceError = 5 // External service unavailable or timed out
)

// exitCodeFor maps an operation error to its exit code.
func exitCodeFor(err error) int {
	var transition *state.InvalidTransitionError
	switch {
	case err == nil:
		return ExitSuccess
	case state.IsProcessOrderViolation(err):
		return ExitProcessOrder
	case pkgmgr.IsConfigurationError(err),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, settings.ErrNotRepository),
		errors.Is(err, review.ErrRepoSetup),
		errors.Is(err, review.ErrRepoInit),
		errors.Is(err, review.ErrNonEmptyDirectory),
		errors.Is(err, review.ErrLocked):
		return ExitConfigError
	case errors.Is(err, dataset.ErrInvalidRecord),
		errors.Is(err, dataset.ErrDuplicateID),
		errors.Is(err, endpoint.ErrSameSourceMerge),
		errors.Is(err, state.ErrNoRecords),
		errors.As(err, &transition):
		return ExitDataError
	case review.IsServiceNotAvailable(err), review.IsTimeout(err):
		return ExitServiceError
	}
	return ExitError
}
