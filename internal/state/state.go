// Package state defines the record states of a review and the graph of
// transitions that operations are allowed to perform on them.
package state

import (
	"fmt"
	"strings"
)

// RecordState is the processing status of a single record. States are
// totally ordered by their position in the processing sequence.
type RecordState int

const (
	MDRetrieved RecordState = iota
	MDImported
	MDNeedsManualPreparation
	MDPrepared
	MDProcessed
	RevPrescreenExcluded
	RevPrescreenIncluded
	PDFNeedsManualRetrieval
	PDFImported
	PDFNotAvailable
	PDFNeedsManualPreparation
	PDFPrepared
	RevExcluded
	RevIncluded
	RevSynthesized
)

var stateNames = [...]string{
	"md_retrieved",
	"md_imported",
	"md_needs_manual_preparation",
	"md_prepared",
	"md_processed",
	"rev_prescreen_excluded",
	"rev_prescreen_included",
	"pdf_needs_manual_retrieval",
	"pdf_imported",
	"pdf_not_available",
	"pdf_needs_manual_preparation",
	"pdf_prepared",
	"rev_excluded",
	"rev_included",
	"rev_synthesized",
}

// All returns every state in processing order.
func All() []RecordState {
	states := make([]RecordState, len(stateNames))
	for i := range stateNames {
		states[i] = RecordState(i)
	}
	return states
}

// String returns the canonical name used in the records file.
func (s RecordState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("RecordState(%d)", int(s))
	}
	return stateNames[s]
}

// Valid reports whether s is one of the declared states.
func (s RecordState) Valid() bool {
	return s >= MDRetrieved && int(s) < len(stateNames)
}

// Less reports whether s comes before other in the processing order.
func (s RecordState) Less(other RecordState) bool {
	return s < other
}

// ParseRecordState parses a canonical state name.
func ParseRecordState(name string) (RecordState, error) {
	name = strings.TrimSpace(name)
	for i, n := range stateNames {
		if n == name {
			return RecordState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown record state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s RecordState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid record state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RecordState) UnmarshalText(data []byte) error {
	parsed, err := ParseRecordState(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NeedsManualWork reports whether the state waits for a manual operation.
func (s RecordState) NeedsManualWork() bool {
	switch s {
	case MDNeedsManualPreparation, PDFNeedsManualRetrieval, PDFNeedsManualPreparation:
		return true
	}
	return false
}

// Operation identifies an operation type.
type Operation string

const (
	Check      Operation = "check"
	Load       Operation = "load"
	Prep       Operation = "prep"
	PrepMan    Operation = "prep_man"
	Dedupe     Operation = "dedupe"
	Prescreen  Operation = "prescreen"
	PDFGet     Operation = "pdf_get"
	PDFGetMan  Operation = "pdf_get_man"
	PDFPrep    Operation = "pdf_prep"
	PDFPrepMan Operation = "pdf_prep_man"
	Screen     Operation = "screen"
	Data       Operation = "data"
	Format     Operation = "format"
	Explore    Operation = "explore"
)

// Operations lists all operation types.
var Operations = []Operation{
	Check, Load, Prep, PrepMan, Dedupe, Prescreen, PDFGet, PDFGetMan,
	PDFPrep, PDFPrepMan, Screen, Data, Format, Explore,
}

// ParseOperation parses an operation type name.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// CommitTag returns the leading tag used in commit messages for the operation.
func (o Operation) CommitTag() string {
	switch o {
	case Load:
		return "Load"
	case Prep:
		return "Prep"
	case PrepMan:
		return "Prep (manual)"
	case Dedupe:
		return "Dedupe"
	case Prescreen:
		return "Pre-screen"
	case PDFGet:
		return "Get PDFs"
	case PDFGetMan:
		return "Get PDFs (manual)"
	case PDFPrep:
		return "Prep PDFs"
	case PDFPrepMan:
		return "Prep PDFs (manual)"
	case Screen:
		return "Screen"
	case Data:
		return "Data"
	case Format:
		return "Format"
	case Check:
		return "Check"
	case Explore:
		return "Explore"
	}
	return string(o)
}
