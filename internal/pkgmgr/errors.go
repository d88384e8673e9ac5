package pkgmgr

import (
	"errors"
	"fmt"

	"github.com/matsen/litreview/internal/endpoint"
)

var (
	// ErrMissingDependency indicates a configured endpoint is not registered.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrInvalidPackageIdentifier indicates a malformed endpoint identifier.
	ErrInvalidPackageIdentifier = errors.New("invalid package identifier")

	// ErrIncompatibleEndpoint indicates an endpoint used for an operation
	// type it does not implement.
	ErrIncompatibleEndpoint = errors.New("incompatible endpoint")

	// ErrInvalidEndpointSettings indicates endpoint settings failed their schema.
	ErrInvalidEndpointSettings = errors.New("invalid endpoint settings")

	// ErrUnknownReviewType indicates project.review_type names no review type.
	ErrUnknownReviewType = errors.New("unknown review type")
)

// MissingDependencyError names the endpoint that could not be found.
type MissingDependencyError struct {
	Type endpoint.Type
	ID   string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: no %s endpoint %q is registered", e.Type, e.ID)
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// IncompatibleEndpointError reports a type mismatch.
type IncompatibleEndpointError struct {
	ID        string
	Declared  []endpoint.Type
	Requested endpoint.Type
}

func (e *IncompatibleEndpointError) Error() string {
	return fmt.Sprintf("endpoint %q is registered as %v, not %s", e.ID, e.Declared, e.Requested)
}

func (e *IncompatibleEndpointError) Is(target error) bool {
	return target == ErrIncompatibleEndpoint
}

// InvalidSettingsError wraps a decode or validation failure.
type InvalidSettingsError struct {
	ID  string
	Err error
}

func (e *InvalidSettingsError) Error() string {
	return fmt.Sprintf("invalid settings for %s: %v", e.ID, e.Err)
}

func (e *InvalidSettingsError) Is(target error) bool {
	return target == ErrInvalidEndpointSettings
}

func (e *InvalidSettingsError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is one of the registry's
// configuration errors.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingDependency) ||
		errors.Is(err, ErrInvalidPackageIdentifier) ||
		errors.Is(err, ErrIncompatibleEndpoint) ||
		errors.Is(err, ErrInvalidEndpointSettings) ||
		errors.Is(err, ErrUnknownReviewType)
}
