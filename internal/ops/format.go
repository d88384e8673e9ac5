package ops

import (
	"context"

	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/state"
)

// Format re-serializes the records file in canonical field order and
// commits the result. Nothing is committed when the file was already
// canonical.
func Format(ctx context.Context, m *review.Manager) (*Result, error) {
	op, err := m.NewOperation(state.Format, false)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		m.Reporter.Count("formatted", recs.Len())
		return m.Dataset.SaveRecords(recs)
	})
}
