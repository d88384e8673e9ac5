package review

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked indicates another operation holds the repository lock.
	ErrLocked = errors.New("repository is locked by another operation")

	// ErrTimeout indicates an endpoint call timed out.
	ErrTimeout = errors.New("endpoint call timed out")

	// ErrRepoSetup indicates the directory is not a usable review
	// repository.
	ErrRepoSetup = errors.New("repository setup error")

	// ErrRepoInit indicates a repository could not be initialized.
	ErrRepoInit = errors.New("repository init error")

	// ErrNonEmptyDirectory indicates init was asked to create a
	// repository in a directory that already holds files.
	ErrNonEmptyDirectory = errors.New("directory not empty")

	// ErrServiceNotAvailable indicates an external service (docker, a
	// remote API) could not be reached.
	ErrServiceNotAvailable = errors.New("service not available")
)

// ServiceError names the unavailable service.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", ErrServiceNotAvailable, e.Service)
	}
	return fmt.Sprintf("%v: %s: %v", ErrServiceNotAvailable, e.Service, e.Err)
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceNotAvailable
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceNotAvailable returns true if err reports an unavailable service.
func IsServiceNotAvailable(err error) bool {
	return errors.Is(err, ErrServiceNotAvailable)
}

// IsTimeout returns true if err is an endpoint timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
