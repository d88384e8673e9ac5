// Package ops implements the operations of a review: init, load, prep,
// dedupe, prescreen, PDF retrieval and preparation, screen, data, and the
// maintenance operations status, validate, format, and index.
package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// Result summarizes one operation run.
type Result struct {
	Operation string         `json:"operation"`
	Commit    string         `json:"commit,omitempty"`
	Counts    map[string]int `json:"counts"`
	Summary   string         `json:"summary,omitempty"`
}

// Options are shared by the operations that load endpoints.
type Options struct {
	// IgnoreNotAvailable skips endpoints that are not registered.
	IgnoreNotAvailable bool
	// Split restricts prescreen and screen to these record IDs.
	Split []string
}

func (o Options) load() pkgmgr.LoadOptions {
	return pkgmgr.LoadOptions{IgnoreNotAvailable: o.IgnoreNotAvailable}
}

// Provenance notes written by operations.
const (
	NoteTimeout   = "timeout"
	NoteError     = "endpoint-error"
	NotePDFHash   = "pdf-hash-error"
	NoteInvalid   = "invalid-pdf"
	NoteNoPDFFile = "pdf-file-missing"
)

// noteFailure records a per-record endpoint failure on the status entry of
// the data provenance.
func noteFailure(r *record.Record, endpointID string, err error) {
	note := NoteError
	if review.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		note = NoteTimeout
	}
	p := r.DataProvenance[record.KeyStatus]
	if p == nil {
		p = record.NewProvenance(endpointID, "")
		r.DataProvenance[record.KeyStatus] = p
	} else {
		p.AppendSource(endpointID)
	}
	p.AddNote(note)
}

// clearFailures drops failure notes left by an earlier run.
func clearFailures(r *record.Record) {
	delete(r.DataProvenance, record.KeyStatus)
}

// hasFailure reports whether an endpoint failed on r.
func hasFailure(r *record.Record) bool {
	_, ok := r.DataProvenance[record.KeyStatus]
	return ok
}

// run executes main under op, prints the summary, and assembles the
// result.
func run(ctx context.Context, op *review.Operation, main func(ctx context.Context) error) (*Result, error) {
	res := &Result{Operation: string(op.Type)}
	sha, err := op.Run(ctx, func(ctx context.Context) (string, error) {
		if err := main(ctx); err != nil {
			return "", err
		}
		res.Counts = op.Manager().Reporter.Counts()
		res.Summary = review.SummaryLine(res.Counts)
		op.Summary()
		return res.Summary, nil
	})
	if err != nil {
		return nil, err
	}
	res.Commit = sha
	if res.Counts == nil {
		res.Counts = map[string]int{}
	}
	return res, nil
}

// loadEndpoints instantiates the endpoints of type t.
func loadEndpoints(m *review.Manager, env *endpoint.Env, t endpoint.Type, entries []settings.EndpointSettings, opts Options) ([]pkgmgr.Loaded, error) {
	loaded, err := m.Registry.Load(env, t, entries, opts.load())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(loaded))
	for i, l := range loaded {
		ids[i] = l.Manifest.ID
	}
	m.Logger.Debug("endpoints loaded", "type", t, "endpoints", strings.Join(ids, ","))
	return loaded, nil
}

// copies returns deep copies for handing to endpoints.
func copies(recs []*record.Record) []*record.Record {
	out := make([]*record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Copy()
	}
	return out
}

// mergeManual validates records returned by a manual endpoint against
// the originals, writes them back into byID, and reports transitions.
func mergeManual(op *review.Operation, originals map[string]*record.Record, returned []*record.Record, put func(*record.Record)) error {
	for _, r := range returned {
		orig, ok := originals[r.ID]
		if !ok {
			return fmt.Errorf("%s returned unknown record %s", op.Type, r.ID)
		}
		if err := op.Observe(r, orig.Status); err != nil {
			return err
		}
		put(r)
	}
	return nil
}

// selectIDs filters recs to ids when ids is non-empty.
func selectIDs(recs []*record.Record, ids []string) []*record.Record {
	if len(ids) == 0 {
		return recs
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*record.Record
	for _, r := range recs {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// statesAfter returns the states at or after ref in processing order.
func statesAfter(ref state.RecordState) []state.RecordState {
	var out []state.RecordState
	for _, s := range state.All() {
		if !s.Less(ref) {
			out = append(out, s)
		}
	}
	return out
}
