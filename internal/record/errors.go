package record

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntryType indicates an ENTRYTYPE outside the supported set.
	ErrUnknownEntryType = errors.New("unknown entrytype")

	// ErrNotPrepared indicates a colrev_id was requested for a record whose
	// masterdata has not been prepared.
	ErrNotPrepared = errors.New("record masterdata not prepared")

	// ErrInvalidMerge indicates two records describe distinct items.
	ErrInvalidMerge = errors.New("invalid merge")
)

// InvalidMergeError explains why two records must not be merged.
type InvalidMergeError struct {
	ID      string
	OtherID string
	Reason  string
}

func (e *InvalidMergeError) Error() string {
	return fmt.Sprintf("%v: %s and %s: %s", ErrInvalidMerge, e.ID, e.OtherID, e.Reason)
}

func (e *InvalidMergeError) Is(target error) bool {
	return target == ErrInvalidMerge
}

// IsInvalidMerge returns true if err is an invalid-merge error.
func IsInvalidMerge(err error) bool {
	return errors.Is(err, ErrInvalidMerge)
}
