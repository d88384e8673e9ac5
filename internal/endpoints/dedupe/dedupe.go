// Package dedupe implements the built-in dedupe endpoints.
package dedupe

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/similarity"
)

// Endpoint identifiers.
const (
	SimpleID   = "lrv.simple_dedupe"
	ColrevIDID = "lrv.colrev_id_dedupe"
)

// DefaultThreshold is the similarity at or above which two records are
// merged.
const DefaultThreshold = 0.9

// Config is the settings struct of lrv.simple_dedupe.
type Config struct {
	Threshold float64 `json:"merging_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	// YearWindow is the largest year difference of compared records.
	YearWindow int `json:"year_window,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// pair is a merge candidate.
type pair struct {
	a, b  *record.Record
	score float64
}

// merger applies merges and tracks which record survived each one.
type merger struct {
	env    *endpoint.Env
	op     endpoint.DedupeOperation
	merged map[string]string
	count  int
}

func newMerger(env *endpoint.Env, op endpoint.DedupeOperation) *merger {
	return &merger{env: env, op: op, merged: make(map[string]string)}
}

// resolve follows earlier merges to the surviving record.
func (m *merger) resolve(r *record.Record, byID map[string]*record.Record) *record.Record {
	id := r.ID
	for {
		next, ok := m.merged[id]
		if !ok {
			return byID[id]
		}
		id = next
	}
}

// merge folds b into a, or a into b when only a is new. Prevented
// same-source merges and records that cannot be merged are skipped.
func (m *merger) merge(a, b *record.Record, score float64) error {
	if a.ID == b.ID {
		return nil
	}
	keep, drop := a, b
	if m.op.IsNew(a) && !m.op.IsNew(b) {
		keep, drop = b, a
	}
	err := m.op.Merge(keep.ID, drop.ID, score)
	switch {
	case err == nil:
		m.merged[drop.ID] = keep.ID
		m.count++
		return nil
	case errors.Is(err, endpoint.ErrSameSourceMerge) || record.IsInvalidMerge(err):
		m.env.Logger.Info("skipping merge", "keep", keep.ID, "drop", drop.ID, "reason", err.Error())
		return nil
	}
	return err
}

// Simple merges records whose weighted similarity reaches the threshold.
// Records are compared when at least one is new and their years are within
// the configured window; pairs are merged from the most similar down.
type Simple struct {
	env *endpoint.Env
	cfg *Config
}

func (d *Simple) ID() string { return SimpleID }

func (d *Simple) threshold() float64 {
	if d.cfg != nil && d.cfg.Threshold > 0 {
		return d.cfg.Threshold
	}
	return DefaultThreshold
}

func (d *Simple) yearWindow() int {
	if d.cfg != nil {
		return d.cfg.YearWindow
	}
	return 0
}

// comparable reports whether the years of a and b are close enough.
// Records without a year are compared with everything.
func (d *Simple) comparable(a, b *record.Record) bool {
	ya, erra := strconv.Atoi(a.Get("year"))
	yb, errb := strconv.Atoi(b.Get("year"))
	if erra != nil || errb != nil {
		return true
	}
	diff := ya - yb
	if diff < 0 {
		diff = -diff
	}
	return diff <= d.yearWindow()
}

func (d *Simple) candidates(ctx context.Context, recs []*record.Record, op endpoint.DedupeOperation) ([]pair, error) {
	threshold := d.threshold()
	var pairs []pair
	for i, a := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, b := range recs[i+1:] {
			if !op.IsNew(a) && !op.IsNew(b) {
				continue
			}
			if !d.comparable(a, b) {
				continue
			}
			if s := similarity.Records(a, b); s >= threshold {
				pairs = append(pairs, pair{a: a, b: b, score: s})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })
	return pairs, nil
}

func (d *Simple) RunDedupe(ctx context.Context, op endpoint.DedupeOperation) error {
	recs := op.Records()
	byID := make(map[string]*record.Record, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
	}
	pairs, err := d.candidates(ctx, recs, op)
	if err != nil {
		return err
	}

	m := newMerger(d.env, op)
	for _, p := range pairs {
		a, b := m.resolve(p.a, byID), m.resolve(p.b, byID)
		if a == nil || b == nil || a.ID == b.ID {
			continue
		}
		if !op.IsNew(a) && !op.IsNew(b) {
			continue
		}
		if err := m.merge(a, b, p.score); err != nil {
			return err
		}
	}
	d.env.Logger.Debug("simple dedupe finished", "records", len(recs), "candidates", len(pairs), "merged", m.count)
	return nil
}

// ColrevID merges new records that share a colrev_id with another record.
type ColrevID struct {
	env *endpoint.Env
}

func (d *ColrevID) ID() string { return ColrevIDID }

func (d *ColrevID) RunDedupe(ctx context.Context, op endpoint.DedupeOperation) error {
	recs := op.Records()
	byID := make(map[string]*record.Record, len(recs))
	owner := make(map[string]*record.Record)
	for _, r := range recs {
		byID[r.ID] = r
	}
	// processed records claim their colrev_ids first
	sort.SliceStable(recs, func(i, j int) bool { return !op.IsNew(recs[i]) && op.IsNew(recs[j]) })

	m := newMerger(d.env, op)
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var match *record.Record
		for _, cid := range r.ColrevIDs {
			if o, ok := owner[cid]; ok {
				match = m.resolve(o, byID)
				break
			}
		}
		if match != nil && match.ID != r.ID && (op.IsNew(r) || op.IsNew(match)) {
			if err := m.merge(match, r, 1); err != nil {
				return err
			}
		}
		for _, cid := range r.ColrevIDs {
			if _, ok := owner[cid]; !ok {
				owner[cid] = r
			}
		}
	}
	return nil
}

// Manifests returns the manifests of the dedupe endpoints.
func Manifests() []endpoint.Manifest {
	return []endpoint.Manifest{
		{
			ID:       SimpleID,
			Type:     endpoint.TypeDedupe,
			Settings: func() any { return &Config{} },
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &Simple{env: env, cfg: cfg.(*Config)}, nil
			},
			CISupported: true,
		},
		{
			ID:          ColrevIDID,
			Type:        endpoint.TypeDedupe,
			New:         func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &ColrevID{env: env}, nil },
			CISupported: true,
		},
	}
}
