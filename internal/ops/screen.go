package ops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// selection holds the records an endpoint decides on.
type selection struct {
	m      *review.Manager
	op     *review.Operation
	recs   *dataset.Records
	source state.RecordState
	split  []string
}

func (s *selection) GetData() endpoint.Selection {
	recs := selectIDs(s.recs.InState(s.source), s.split)
	pad := dataset.MaxIDWidth(recs)
	s.op.SetPad(pad)
	return endpoint.Selection{Records: recs, Count: len(recs), Pad: pad}
}

// current returns the dataset's record for r and checks it is still
// undecided.
func (s *selection) current(r *record.Record) (*record.Record, error) {
	cur := s.recs.Get(r.ID)
	if cur == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, r.ID)
	}
	if cur.Status != s.source {
		return nil, &state.InvalidTransitionError{Operation: s.op.Type, ID: r.ID, From: cur.Status, To: cur.Status}
	}
	return cur, nil
}

// prescreenRun is the PrescreenOperation handed to prescreen endpoints.
type prescreenRun struct {
	selection
}

func (p *prescreenRun) Prescreen(r *record.Record, included bool, reason string) error {
	cur, err := p.current(r)
	if err != nil {
		return err
	}
	target := state.RevPrescreenIncluded
	if !included {
		target = state.RevPrescreenExcluded
		if reason != "" {
			cur.UpdateField(record.KeyPrescreenExclusion, reason, string(p.op.Type))
		}
	}
	_, err = p.op.Transition(cur, target)
	return err
}

// Prescreen runs the prescreen endpoints on records in md_processed.
func Prescreen(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.Prescreen, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypePrescreen, m.Settings.Prescreen.PrescreenPackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		p := &prescreenRun{selection{m: m, op: op, recs: recs, source: state.MDProcessed, split: opts.Split}}
		for _, l := range loaded {
			if err := l.Endpoint.(endpoint.Prescreen).RunPrescreen(ctx, p, opts.Split); err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
			if err := m.Dataset.SaveRecords(recs); err != nil {
				return err
			}
		}
		return nil
	})
}

// screenRun is the ScreenOperation handed to screen endpoints.
type screenRun struct {
	selection
	criteria map[string]settings.ScreenCriterion
}

func (s *screenRun) Criteria() map[string]settings.ScreenCriterion {
	return s.criteria
}

// Screen validates the criteria decisions and applies the inclusion
// decision. Every configured criterion must be decided unless the record
// is excluded.
func (s *screenRun) Screen(r *record.Record, included bool, criteria map[string]string) error {
	cur, err := s.current(r)
	if err != nil {
		return err
	}
	for name, v := range criteria {
		if _, ok := s.criteria[name]; !ok {
			return fmt.Errorf("%s: unknown screening criterion %q", r.ID, name)
		}
		switch v {
		case endpoint.CriterionIn, endpoint.CriterionOut, endpoint.CriterionTODO:
		default:
			return fmt.Errorf("%s: criterion %s: invalid decision %q", r.ID, name, v)
		}
	}
	if included {
		for name := range s.criteria {
			if v := criteria[name]; v == "" || v == endpoint.CriterionTODO {
				return fmt.Errorf("%s: criterion %s undecided", r.ID, name)
			}
		}
	}
	if len(criteria) > 0 {
		cur.UpdateField(record.KeyScreeningCriteria, FormatCriteria(criteria), string(s.op.Type))
	}
	target := state.RevIncluded
	if !included {
		target = state.RevExcluded
	}
	_, err = s.op.Transition(cur, target)
	return err
}

// FormatCriteria renders decisions as "a=in;b=out" sorted by name.
func FormatCriteria(criteria map[string]string) string {
	names := make([]string, 0, len(criteria))
	for n := range criteria {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + criteria[n]
	}
	return strings.Join(parts, ";")
}

// Screen runs the screen endpoints on records in pdf_prepared.
func Screen(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.Screen, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		loaded, err := loadEndpoints(m, m.Env(), endpoint.TypeScreen, m.Settings.Screen.ScreenPackageEndpoints, opts)
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		s := &screenRun{
			selection: selection{m: m, op: op, recs: recs, source: state.PDFPrepared, split: opts.Split},
			criteria:  m.Settings.Screen.Criteria,
		}
		for _, l := range loaded {
			if err := l.Endpoint.(endpoint.Screen).RunScreen(ctx, s, opts.Split); err != nil {
				return fmt.Errorf("%s: %w", l.Manifest.ID, err)
			}
			if err := m.Dataset.SaveRecords(recs); err != nil {
				return err
			}
		}
		return nil
	})
}
