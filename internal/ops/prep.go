package ops

import (
	"context"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/state"
)

// keptFields survive prep in addition to the identifying fields and the
// configured fields_to_keep.
var keptFields = map[string]bool{
	record.KeyDOI: true, record.KeyURL: true, record.KeyFile: true,
	record.KeyLanguage: true, record.KeyCitedBy: true, record.KeyPDFID: true,
	record.KeyScreeningCriteria: true, record.KeyPrescreenExclusion: true,
	"abstract": true, "publisher": true, "school": true, "institution": true,
	"series": true, "chapter": true, "edition": true, "editor": true,
	"address": true, "isbn": true, "issn": true, "keywords": true,
	"month": true, "note": true, "howpublished": true, "type": true,
	"semantic_scholar_id": true, "dblp_key": true, "pubmedid": true,
	"paperpile_id": true,
}

// prepRound is one configured round with its loaded endpoints.
type prepRound struct {
	name       string
	similarity float64
	endpoints  []pkgmgr.Loaded
}

// Prep prepares the masterdata of records in md_imported.
func Prep(ctx context.Context, m *review.Manager, opts Options) (*Result, error) {
	op, err := m.NewOperation(state.Prep, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		env := m.Env()
		sources, err := m.Registry.LoadSearchSources(env, m.Settings.Sources, pkgmgr.LoadOptions{IgnoreNotAvailable: true})
		if err != nil {
			return err
		}
		env.Sources = sources

		var rounds []prepRound
		heavy := false
		for _, rs := range m.Settings.Prep.PrepRounds {
			loaded, err := loadEndpoints(m, env, endpoint.TypePrep, rs.PrepPackageEndpoints, opts)
			if err != nil {
				return err
			}
			heavy = heavy || pkgmgr.RenderingHeavy(loaded)
			rounds = append(rounds, prepRound{name: rs.Name, similarity: rs.SimilarityThreshold, endpoints: loaded})
		}

		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		selected := selectIDs(recs.InState(state.MDImported), opts.Split)
		op.SetPad(dataset.MaxIDWidth(selected))

		keep := make(map[string]bool, len(m.Settings.Prep.FieldsToKeep))
		for _, f := range m.Settings.Prep.FieldsToKeep {
			keep[f] = true
		}
		p := &preparer{m: m, rounds: rounds, keep: keep}
		prepared, err := review.Map(ctx, m.Workers(heavy), selected, p.prepare)
		if err != nil {
			return err
		}

		for i, r := range prepared {
			from := selected[i].Status
			recs.Put(r)
			if r.Status == state.RevPrescreenExcluded {
				m.Reporter.Transition(logging.TagInfo, r.ID, op.Pad(), from, r.Status)
				continue
			}
			if err := op.Observe(r, from); err != nil {
				return err
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}

type preparer struct {
	m      *review.Manager
	rounds []prepRound
	keep   map[string]bool
}

// prepare runs every round on a copy of r. A "disagreement with" note or
// an exclusion stops further endpoints; failures are noted and send the
// record to manual preparation.
func (p *preparer) prepare(ctx context.Context, in *record.Record) (*record.Record, error) {
	r := in.Copy()
	clearFailures(r)
	if restrictions := p.m.Settings.RestrictionsFor(r.Get("year")); restrictions != nil {
		if err := r.ApplyRestrictions(restrictions); err != nil {
			noteFailure(r, record.SourceRestrictions, err)
		}
	}

	failed := false
rounds:
	for _, round := range p.rounds {
		rctx := endpoint.WithSimilarity(ctx, round.similarity)
		for _, l := range round.endpoints {
			prep := l.Endpoint.(endpoint.Prep)
			current := r
			out, err := review.CallWithTimeout(rctx, p.m.Timeout(), func(ctx context.Context) (*record.Record, error) {
				return prep.Prepare(ctx, current.Copy())
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.m.Logger.Warn("prep endpoint failed", "endpoint", l.Manifest.ID, "id", r.ID, "error", err)
				noteFailure(r, l.Manifest.ID, err)
				failed = true
				continue
			}
			if out != nil {
				r = out
			}
			p.m.Quality.Check(r)
			if r.HasDisagreement() || r.Status == state.RevPrescreenExcluded {
				p.m.Logger.Debug("prep stopped early", "id", r.ID, "round", round.name, "endpoint", l.Manifest.ID)
				break rounds
			}
		}
	}

	if r.Status == state.RevPrescreenExcluded {
		if id, err := r.CreateColrevID(true); err == nil {
			r.AddColrevID(id)
		}
		return r, nil
	}
	p.dropFields(r)
	if p.m.Quality.Apply(r) == state.MDPrepared && failed {
		r.Status = state.MDNeedsManualPreparation
	}
	return r, nil
}

// dropFields removes fields that are neither identifying nor kept.
func (p *preparer) dropFields(r *record.Record) {
	for _, key := range r.Keys() {
		if record.IsIdentifying(key) || keptFields[key] || p.keep[key] || strings.HasPrefix(key, "colrev_") {
			continue
		}
		r.RemoveField(key, false, "")
	}
}
