package ops

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

var (
	// ErrSameSourceMerge indicates a merge of two records from the same
	// search file under the prevent policy.
	ErrSameSourceMerge = endpoint.ErrSameSourceMerge

	// ErrUnknownRecord indicates an endpoint referred to a record ID that
	// does not take part in the operation.
	ErrUnknownRecord = errors.New("unknown record")
)

// MergeSource is the provenance source of fields taken over in a merge.
const MergeSource = "lrv.dedupe"

// Dedupe merges duplicates among records in md_prepared and against
// records processed earlier, then moves the remaining new records to
// md_processed.
func Dedupe(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.Dedupe, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypeDedupe, m.Settings.Dedupe.DedupePackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		d := &dedupeRun{m: m, op: op, recs: recs, policy: m.Settings.Dedupe.SameSourceMerges}
		op.SetPad(dataset.MaxIDWidth(d.Records()))

		for _, l := range loaded {
			if err := l.Endpoint.(endpoint.Dedupe).RunDedupe(ctx, d); err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
		}
		for _, r := range recs.InState(state.MDPrepared) {
			if _, err := op.Transition(r, state.MDProcessed); err != nil {
				return err
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}

// dedupeRun is the DedupeOperation handed to dedupe endpoints.
type dedupeRun struct {
	m      *review.Manager
	op     *review.Operation
	recs   *dataset.Records
	policy string
}

// Records returns the records in md_prepared or any later state, sorted
// by ID.
func (d *dedupeRun) Records() []*record.Record {
	return d.recs.InState(statesAfter(state.MDPrepared)...)
}

func (d *dedupeRun) IsNew(r *record.Record) bool {
	return r.Status == state.MDPrepared
}

// Merge folds dropID into keepID. When only keepID is new the roles are
// swapped so that the processed record survives.
func (d *dedupeRun) Merge(keepID, dropID string, score float64) error {
	keep, drop := d.recs.Get(keepID), d.recs.Get(dropID)
	if keep == nil || drop == nil {
		return fmt.Errorf("%w: %s or %s", ErrUnknownRecord, keepID, dropID)
	}
	if keepID == dropID {
		return fmt.Errorf("cannot merge %s with itself", keepID)
	}
	switch {
	case !d.IsNew(keep) && !d.IsNew(drop):
		return fmt.Errorf("%s and %s were both processed earlier", keepID, dropID)
	case d.IsNew(keep) && !d.IsNew(drop):
		keep, drop = drop, keep
	}

	if shared := sharedSources(keep, drop); len(shared) > 0 {
		switch d.policy {
		case settings.SameSourceApply:
		case settings.SameSourceWarn:
			d.m.Reporter.Warnf("merging %s and %s from the same source %s", keep.ID, drop.ID, strings.Join(shared, ", "))
		default:
			return fmt.Errorf("%w: %s and %s both come from %s", ErrSameSourceMerge, keep.ID, drop.ID, strings.Join(shared, ", "))
		}
	}

	if err := keep.Merge(drop, MergeSource); err != nil {
		return err
	}
	d.recs.Delete(drop.ID)
	d.m.Reporter.Record(logging.TagProgress, drop.ID, d.op.Pad(), fmt.Sprintf("merged into %s (%.2f)", keep.ID, score))
	d.m.Reporter.Count("merged", 1)
	d.m.Logger.Debug("merged records", "keep", keep.ID, "drop", drop.ID, "score", score)
	return nil
}

// sharedSources returns the search files both records came from.
func sharedSources(a, b *record.Record) []string {
	var shared []string
	bs := b.OriginSources()
	for _, s := range a.OriginSources() {
		if slices.Contains(bs, s) {
			shared = append(shared, s)
		}
	}
	return shared
}
