package ops

import (
	"context"
	"fmt"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// manualStep describes one of the manual operations.
type manualStep struct {
	op      state.Operation
	typ     endpoint.Type
	source  state.RecordState
	entries func(s *settings.Settings) []settings.EndpointSettings
	call    func(ctx context.Context, e endpoint.Endpoint, recs []*record.Record) ([]*record.Record, error)
	// finish adjusts a returned record before its transition is checked.
	finish func(m *review.Manager, r *record.Record) error
}

var prepManStep = manualStep{
	op:     state.PrepMan,
	typ:    endpoint.TypePrepMan,
	source: state.MDNeedsManualPreparation,
	entries: func(s *settings.Settings) []settings.EndpointSettings {
		return s.Prep.PrepManPackageEndpoints
	},
	call: func(ctx context.Context, e endpoint.Endpoint, recs []*record.Record) ([]*record.Record, error) {
		return e.(endpoint.PrepMan).PrepareManual(ctx, recs)
	},
	finish: func(m *review.Manager, r *record.Record) error {
		clearFailures(r)
		if r.Status == state.MDPrepared {
			r.SetStatus(state.MDPrepared)
		}
		return nil
	},
}

var pdfGetManStep = manualStep{
	op:     state.PDFGetMan,
	typ:    endpoint.TypePDFGetMan,
	source: state.PDFNeedsManualRetrieval,
	entries: func(s *settings.Settings) []settings.EndpointSettings {
		return s.PDFGet.PDFGetManPackageEndpoints
	},
	call: func(ctx context.Context, e endpoint.Endpoint, recs []*record.Record) ([]*record.Record, error) {
		return e.(endpoint.PDFGetMan).GetPDFManual(ctx, recs)
	},
	finish: func(m *review.Manager, r *record.Record) error {
		if r.Status != state.PDFImported {
			return nil
		}
		file, err := placePDF(m, r, r.Get(record.KeyFile))
		if err != nil {
			return err
		}
		r.UpdateField(record.KeyFile, file, "manual", record.KeepSourceIfEqual())
		return nil
	},
}

var pdfPrepManStep = manualStep{
	op:     state.PDFPrepMan,
	typ:    endpoint.TypePDFPrepMan,
	source: state.PDFNeedsManualPreparation,
	entries: func(s *settings.Settings) []settings.EndpointSettings {
		return s.PDFPrep.PDFPrepManPackageEndpoints
	},
	call: func(ctx context.Context, e endpoint.Endpoint, recs []*record.Record) ([]*record.Record, error) {
		return e.(endpoint.PDFPrepMan).PrepPDFManual(ctx, recs)
	},
	finish: func(m *review.Manager, r *record.Record) error {
		if r.Status != state.PDFPrepared {
			return nil
		}
		if p := r.DataProvenance[record.KeyFile]; p != nil {
			p.Notes = nil
		}
		return setPDFID(m, r)
	},
}

// PrepMan applies manual masterdata fixes.
func PrepMan(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	return runManual(ctx, m, prepManStep, opts)
}

// PDFGetMan applies manual PDF retrieval decisions. When PDFs are not
// required, records left without a decision become pdf_not_available.
func PDFGetMan(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	return runManual(ctx, m, pdfGetManStep, opts)
}

// PDFPrepMan applies manual PDF preparation decisions.
func PDFPrepMan(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	return runManual(ctx, m, pdfPrepManStep, opts)
}

func runManual(ctx context.Context, m *review.Manager, step manualStep, opts Options) (*Result, error) {
	op, err := m.NewOperation(step.op, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), step.typ, step.entries(m.Settings), opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		pending := selectIDs(recs.InState(step.source), opts.Split)
		op.SetPad(dataset.MaxIDWidth(pending))

		for _, l := range loaded {
			if len(pending) == 0 {
				break
			}
			originals := make(map[string]*record.Record, len(pending))
			for _, r := range pending {
				originals[r.ID] = r
			}
			returned, err := step.call(ctx, l.Endpoint, copies(pending))
			if err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
			for _, r := range returned {
				if step.finish != nil {
					if err := step.finish(m, r); err != nil {
						op.Fail(r.ID, err)
						r.Status = step.source
					}
				}
			}
			if err := mergeManual(op, originals, returned, recs.Put); err != nil {
				return err
			}
			pending = recs.InState(step.source)
			pending = selectIDs(pending, opts.Split)
		}

		if step.op == state.PDFGetMan && !m.Settings.PDFGet.PDFRequiredForScreenAndSynthesis {
			for _, r := range pending {
				if _, err := op.Transition(r, state.PDFNotAvailable); err != nil {
					return err
				}
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}
