// Package quality detects masterdata defects, records them as provenance
// notes, and decides whether a record is prepared or needs manual work.
package quality

import (
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// Model runs a fixed list of checkers over records.
type Model struct {
	checkers []Checker
}

// NewModel creates a model with the given checkers, or the defaults when
// none are given.
func NewModel(checkers ...Checker) *Model {
	if len(checkers) == 0 {
		checkers = DefaultCheckers()
	}
	return &Model{checkers: checkers}
}

// Check runs every checker and rewrites the owned notes in the masterdata
// provenance: codes that no longer apply are removed, new ones added.
// Notes a checker does not own, such as missing notes set by
// restrictions, are kept.
// Curated records are left untouched.
func (m *Model) Check(r *record.Record) []Defect {
	if r.IsCurated() {
		return nil
	}

	var defects []Defect
	found := make(map[string]map[string]bool)
	for _, c := range m.checkers {
		for _, d := range c.Check(r) {
			defects = append(defects, d)
			if found[d.Field] == nil {
				found[d.Field] = make(map[string]bool)
			}
			found[d.Field][d.Code] = true
		}
	}

	for key, p := range r.MasterdataProvenance {
		if key == record.CuratedKey {
			continue
		}
		for _, c := range m.checkers {
			if sc, ok := c.(scopedChecker); ok && !sc.Owns(r, key) {
				continue
			}
			if !found[key][c.Code()] {
				p.RemoveNote(c.Code())
			}
		}
	}

	for field, codes := range found {
		p := r.MasterdataProvenance[field]
		if p == nil {
			p = &record.Provenance{Source: record.SourceFieldRequirements}
			r.MasterdataProvenance[field] = p
		}
		for code := range codes {
			p.AddNote(code)
		}
	}

	for key, p := range r.MasterdataProvenance {
		if key == record.CuratedKey {
			continue
		}
		defect := false
		for code := range found[key] {
			if marksDefect(code) {
				defect = true
			}
		}
		if defect {
			p.AddNote(record.NoteQualityDefect)
		} else {
			p.RemoveNote(record.NoteQualityDefect)
		}
	}
	return defects
}

// Apply checks r and, while its masterdata is still being prepared, moves
// it to md_prepared or md_needs_manual_preparation. It returns the
// record's status afterwards.
func (m *Model) Apply(r *record.Record) state.RecordState {
	defects := m.Check(r)
	switch r.Status {
	case state.MDImported, state.MDNeedsManualPreparation, state.MDPrepared:
	default:
		return r.Status
	}

	if len(defects) > 0 || r.HasDisagreement() {
		return r.SetStatus(state.MDNeedsManualPreparation)
	}
	return r.SetStatus(state.MDPrepared)
}
