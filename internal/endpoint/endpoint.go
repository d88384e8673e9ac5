// Package endpoint defines the contracts plug-in endpoints implement for
// each operation, the manifest they register with, and the environment
// they run in.
package endpoint

import (
	"context"
	"errors"
	"iter"

	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// Type is an endpoint category. Each operation loads endpoints of one type.
type Type string

const (
	TypeSearchSource Type = "search_source"
	TypePrep         Type = "prep"
	TypePrepMan      Type = "prep_man"
	TypeDedupe       Type = "dedupe"
	TypePrescreen    Type = "prescreen"
	TypePDFGet       Type = "pdf_get"
	TypePDFGetMan    Type = "pdf_get_man"
	TypePDFPrep      Type = "pdf_prep"
	TypePDFPrepMan   Type = "pdf_prep_man"
	TypeScreen       Type = "screen"
	TypeData         Type = "data"
	TypeReviewType   Type = "review_type"
)

// Types lists every endpoint type.
var Types = []Type{
	TypeSearchSource, TypePrep, TypePrepMan, TypeDedupe, TypePrescreen,
	TypePDFGet, TypePDFGetMan, TypePDFPrep, TypePDFPrepMan, TypeScreen,
	TypeData, TypeReviewType,
}

// Endpoint is implemented by every endpoint instance.
type Endpoint interface {
	ID() string
}

// SearchSource reads one search output file. Record IDs yielded by
// Records are the entry IDs inside the source file; load turns them into
// origins.
type SearchSource interface {
	Endpoint
	Filename() string
	// Search refreshes the source file. File-based sources do nothing.
	Search(ctx context.Context, rerun bool) error
	// Records streams the entries of the source file.
	Records(ctx context.Context) iter.Seq2[*record.Record, error]
	// LoadFixes applies source-specific clean-up before import.
	LoadFixes(recs []*record.Record) []*record.Record
	// Prepare applies source-specific preparation during prep.
	Prepare(ctx context.Context, r *record.Record) (*record.Record, error)
}

// Prep improves the masterdata of one record. Setting a
// "disagreement with <source>" note stops further prep on the record.
type Prep interface {
	Endpoint
	Prepare(ctx context.Context, r *record.Record) (*record.Record, error)
}

// PrepMan applies manual fixes. Returned records carry their new status.
type PrepMan interface {
	Endpoint
	PrepareManual(ctx context.Context, recs []*record.Record) ([]*record.Record, error)
}

// PDFGetMan records manual PDF retrieval decisions. Returned records carry
// their new status.
type PDFGetMan interface {
	Endpoint
	GetPDFManual(ctx context.Context, recs []*record.Record) ([]*record.Record, error)
}

// PDFPrepMan records manual PDF preparation decisions. Returned records
// carry their new status.
type PDFPrepMan interface {
	Endpoint
	PrepPDFManual(ctx context.Context, recs []*record.Record) ([]*record.Record, error)
}

// ErrSameSourceMerge is returned by DedupeOperation.Merge for two records
// from the same search file under the prevent policy.
var ErrSameSourceMerge = errors.New("same-source merge prevented")

// DedupeOperation is the view of the dedupe operation given to dedupe
// endpoints.
type DedupeOperation interface {
	// Records returns the records taking part in deduplication: those in
	// md_prepared and those already processed, sorted by ID.
	Records() []*record.Record
	// IsNew reports whether r still awaits deduplication.
	IsNew(r *record.Record) bool
	// Merge folds the record dropID into keepID. It refuses same-source
	// merges under the prevent policy and reports invalid merges.
	Merge(keepID, dropID string, score float64) error
}

// Dedupe finds and merges duplicates.
type Dedupe interface {
	Endpoint
	RunDedupe(ctx context.Context, op DedupeOperation) error
}

// Selection is what prescreen and screen operations expose to endpoints.
type Selection struct {
	Records []*record.Record
	Count   int
	Pad     int
}

// PrescreenOperation is the view of the prescreen operation given to
// prescreen endpoints.
type PrescreenOperation interface {
	GetData() Selection
	// Prescreen validates and persists the decision. reason is stored as
	// prescreen_exclusion when the record is excluded.
	Prescreen(r *record.Record, included bool, reason string) error
}

// Prescreen decides inclusion at title/abstract level. split restricts the
// records handled to the given IDs when non-empty.
type Prescreen interface {
	Endpoint
	RunPrescreen(ctx context.Context, op PrescreenOperation, split []string) error
}

// Criterion decision values in screening_criteria.
const (
	CriterionIn   = "in"
	CriterionOut  = "out"
	CriterionTODO = "TODO"
)

// ScreenOperation is the view of the screen operation given to screen
// endpoints.
type ScreenOperation interface {
	GetData() Selection
	Criteria() map[string]settings.ScreenCriterion
	// Screen validates and persists the decision and criteria.
	Screen(r *record.Record, included bool, criteria map[string]string) error
}

// Screen decides inclusion at full-text level.
type Screen interface {
	Endpoint
	RunScreen(ctx context.Context, op ScreenOperation, split []string) error
}

// PDFGet tries to attach a PDF. On success it sets the file field.
type PDFGet interface {
	Endpoint
	GetPDF(ctx context.Context, r *record.Record) (*record.Record, error)
}

// PDFPrep checks or repairs the attached PDF. Remaining problems are noted
// as defect codes on the file's data provenance.
type PDFPrep interface {
	Endpoint
	PrepPDF(ctx context.Context, r *record.Record, pad int) (*record.Record, error)
}

// StatusMatrix maps record ID to endpoint ID to synthesized.
type StatusMatrix map[string]map[string]bool

// Set marks a cell.
func (m StatusMatrix) Set(id, endpointID string, done bool) {
	row, ok := m[id]
	if !ok {
		row = make(map[string]bool)
		m[id] = row
	}
	row[endpointID] = done
}

// Complete reports whether every endpoint marked id as synthesized.
func (m StatusMatrix) Complete(id string, endpointIDs []string) bool {
	row := m[id]
	if row == nil || len(endpointIDs) == 0 {
		return false
	}
	for _, e := range endpointIDs {
		if !row[e] {
			return false
		}
	}
	return true
}

// Advice is a short next-step hint from a data endpoint.
type Advice struct {
	Msg         string `json:"msg"`
	DetailedMsg string `json:"detailed_msg,omitempty"`
}

// Data produces synthesis output from included records.
type Data interface {
	Endpoint
	UpdateData(ctx context.Context, recs []*record.Record, silent bool) error
	UpdateRecordStatusMatrix(matrix StatusMatrix, endpointID string) error
	Advice() Advice
}

// ReviewType supplies the default settings of a kind of review.
type ReviewType interface {
	Endpoint
	ApplyDefaults(s *settings.Settings)
}

// Implements reports whether e satisfies the contract of t.
func Implements(t Type, e Endpoint) bool {
	var ok bool
	switch t {
	case TypeSearchSource:
		_, ok = e.(SearchSource)
	case TypePrep:
		_, ok = e.(Prep)
	case TypePrepMan:
		_, ok = e.(PrepMan)
	case TypeDedupe:
		_, ok = e.(Dedupe)
	case TypePrescreen:
		_, ok = e.(Prescreen)
	case TypePDFGet:
		_, ok = e.(PDFGet)
	case TypePDFGetMan:
		_, ok = e.(PDFGetMan)
	case TypePDFPrep:
		_, ok = e.(PDFPrep)
	case TypePDFPrepMan:
		_, ok = e.(PDFPrepMan)
	case TypeScreen:
		_, ok = e.(Screen)
	case TypeData:
		_, ok = e.(Data)
	case TypeReviewType:
		_, ok = e.(ReviewType)
	}
	return ok
}
