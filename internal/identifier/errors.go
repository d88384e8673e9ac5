package identifier

import (
	"errors"
	"fmt"
)

// Errors returned by the identifier generators.
var (
	// ErrNotEnoughData indicates the masterdata cannot identify the record.
	ErrNotEnoughData = errors.New("not enough data to identify record")

	// ErrInvalidPDF indicates an empty or unreadable PDF.
	ErrInvalidPDF = errors.New("invalid pdf")

	// ErrPDFHash indicates the first page could not be rendered into a usable hash.
	ErrPDFHash = errors.New("pdf hash error")
)

// NotEnoughDataError explains why a colrev_id could not be generated.
type NotEnoughDataError struct {
	Reason string
}

func (e *NotEnoughDataError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNotEnoughData, e.Reason)
}

func (e *NotEnoughDataError) Is(target error) bool {
	return target == ErrNotEnoughData
}

func notEnoughData(reason string) error {
	return &NotEnoughDataError{Reason: reason}
}

// PDFError carries the path of a PDF that could not be identified.
type PDFError struct {
	Path string
	Err  error // ErrInvalidPDF or ErrPDFHash
	Msg  string
}

func (e *PDFError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Path)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Path, e.Msg)
}

func (e *PDFError) Unwrap() error {
	return e.Err
}
