package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitError},
		{"process order", &state.ProcessOrderViolation{Operation: state.Prescreen, States: []state.RecordState{state.MDImported}}, ExitProcessOrder},
		{"wrapped process order", fmt.Errorf("prescreen: %w", &state.ProcessOrderViolation{Operation: state.Prescreen}), ExitProcessOrder},
		{"missing endpoint", fmt.Errorf("load: %w", pkgmgr.ErrMissingDependency), ExitConfigError},
		{"settings", fmt.Errorf("%w: bad id_pattern", settings.ErrInvalidSettings), ExitConfigError},
		{"not a repository", settings.ErrNotRepository, ExitConfigError},
		{"locked", review.ErrLocked, ExitConfigError},
		{"invalid record", fmt.Errorf("%w: missing ID", dataset.ErrInvalidRecord), ExitDataError},
		{"transition", &state.InvalidTransitionError{Operation: state.Prescreen, ID: "a"}, ExitDataError},
		{"service", &review.ServiceError{Service: "docker"}, ExitServiceError},
		{"timeout", fmt.Errorf("prep: %w", review.ErrTimeout), ExitServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
