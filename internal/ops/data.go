package ops

import (
	"context"
	"fmt"
	"os"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// DataResult adds the endpoints' advice to the operation result.
type DataResult struct {
	*Result
	Advice map[string]endpoint.Advice `json:"advice,omitempty"`
}

// Data updates every data endpoint with the included records and moves
// records that all endpoints have synthesized to rev_synthesized.
func Data(ctx context.Context, m *review.Manager, opts Options, silent bool) (*DataResult, error) {
	op, err := m.NewOperation(state.Data, true)
	if err != nil {
		return nil, err
	}
	advice := make(map[string]endpoint.Advice)
	res, err := run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypeData, m.Settings.Data.DataPackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		included := recs.InState(state.RevIncluded, state.RevSynthesized)
		op.SetPad(dataset.MaxIDWidth(included))

		matrix := make(endpoint.StatusMatrix)
		for _, r := range included {
			for _, l := range loaded {
				matrix.Set(r.ID, l.Manifest.ID, false)
			}
		}
		ids := make([]string, len(loaded))
		for i, l := range loaded {
			data := l.Endpoint.(endpoint.Data)
			ids[i] = l.Manifest.ID
			if err := data.UpdateData(ctx, copies(included), silent); err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
			if err := data.UpdateRecordStatusMatrix(matrix, l.Manifest.ID); err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
			advice[l.Manifest.ID] = data.Advice()
		}

		for _, r := range included {
			if r.Status != state.RevIncluded || !matrix.Complete(r.ID, ids) {
				continue
			}
			if _, err := op.Transition(r, state.RevSynthesized); err != nil {
				return err
			}
		}
		if _, err := os.Stat(m.Path(settings.OutputDir)); err == nil {
			op.AddPaths(settings.OutputDir)
		}
		return m.Dataset.SaveRecords(recs)
	})
	if err != nil {
		return nil, err
	}
	return &DataResult{Result: res, Advice: advice}, nil
}
