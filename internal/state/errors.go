package state

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecords indicates an operation other than load was started on an
// empty dataset.
var ErrNoRecords = errors.New("no records in dataset")

// ProcessOrderViolation reports records that still sit in states preceding
// the operation's source states.
type ProcessOrderViolation struct {
	Operation Operation
	States    []RecordState
}

func (e *ProcessOrderViolation) Error() string {
	names := make([]string, len(e.States))
	for i, s := range e.States {
		names[i] = s.String()
	}
	return fmt.Sprintf("process order violation: %s cannot start while records are in %s",
		e.Operation, strings.Join(names, ", "))
}

// IsProcessOrderViolation reports whether err is a ProcessOrderViolation.
func IsProcessOrderViolation(err error) bool {
	var v *ProcessOrderViolation
	return errors.As(err, &v)
}

// InvalidTransitionError reports a transition not present in the graph.
type InvalidTransitionError struct {
	Operation Operation
	ID        string
	From      RecordState
	To        RecordState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s under %s", e.ID, e.From, e.To, e.Operation)
}
