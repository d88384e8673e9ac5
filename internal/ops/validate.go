package ops

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/state"
)

// Validation rules.
const (
	RuleParse      = "parse"
	RuleID         = "unique-id"
	RuleEntryType  = "entrytype"
	RuleOrigin     = "origin"
	RuleProvenance = "provenance"
	RuleStatus     = "status"
	RuleFields     = "field-requirements"
	RuleColrevID   = "colrev-id"
	RulePDF        = "pdf"
)

// Violation is one broken dataset invariant.
type Violation struct {
	ID     string `json:"id,omitempty"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Validate checks the dataset invariants and returns every violation found,
// sorted by record ID. An unreadable records file is reported as a single
// parse violation.
func Validate(m *review.Manager) ([]Violation, error) {
	if _, err := m.NewOperation(state.Check, false); err != nil {
		return nil, err
	}
	entries, err := bibtex.ParseFile(m.Dataset.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Violation{}, nil
		}
		return []Violation{{Rule: RuleParse, Detail: err.Error()}}, nil
	}

	v := &validator{m: m, seenIDs: make(map[string]bool), origins: make(map[string]string), out: []Violation{}}
	for _, e := range entries {
		if v.seenIDs[e.Key] {
			v.add(e.Key, RuleID, "duplicate record ID")
			continue
		}
		v.seenIDs[e.Key] = true
		r, err := dataset.FromEntry(e)
		if err != nil {
			v.add(e.Key, RuleParse, "%s", err)
			continue
		}
		v.check(r)
	}
	sort.SliceStable(v.out, func(i, j int) bool { return v.out[i].ID < v.out[j].ID })
	return v.out, nil
}

type validator struct {
	m       *review.Manager
	seenIDs map[string]bool
	origins map[string]string // origin -> record ID
	out     []Violation
}

func (v *validator) add(id, rule, format string, args ...any) {
	v.out = append(v.out, Violation{ID: id, Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

func (v *validator) check(r *record.Record) {
	if !record.ValidEntryType(r.EntryType) {
		v.add(r.ID, RuleEntryType, "unknown entrytype %q", r.EntryType)
	}
	if !v.m.StateModel.Reachable()[r.Status] {
		v.add(r.ID, RuleStatus, "status %s is not reachable", r.Status)
	}
	v.checkOrigins(r)
	v.checkProvenance(r)
	if r.Status >= state.MDPrepared {
		v.checkPrepared(r)
	}
	if r.Status >= state.PDFPrepared {
		v.checkPDF(r)
	}
}

func (v *validator) checkOrigins(r *record.Record) {
	if len(r.Origins) == 0 {
		v.add(r.ID, RuleOrigin, "record has no origin")
	}
	seen := make(map[string]bool, len(r.Origins))
	for _, o := range r.Origins {
		if seen[o] {
			v.add(r.ID, RuleOrigin, "origin %s listed twice", o)
			continue
		}
		seen[o] = true
		if other, ok := v.origins[o]; ok {
			v.add(r.ID, RuleOrigin, "origin %s also belongs to %s", o, other)
			continue
		}
		v.origins[o] = r.ID
	}
}

func (v *validator) checkProvenance(r *record.Record) {
	if r.IsCurated() {
		return
	}
	for _, key := range r.Keys() {
		if record.IsIdentifying(key) && r.MasterdataProvenance[key] == nil {
			v.add(r.ID, RuleProvenance, "%s has no masterdata provenance", key)
		}
	}
}

// checkPrepared covers records that passed preparation. Records excluded
// at the prep break-point may lack the data for a colrev_id.
func (v *validator) checkPrepared(r *record.Record) {
	if len(r.ColrevIDs) == 0 {
		if r.Status != state.RevPrescreenExcluded {
			v.add(r.ID, RuleColrevID, "no colrev_id in %s", r.Status)
		}
		return
	}
	for _, id := range r.ColrevIDs {
		if !strings.HasPrefix(id, identifier.ColrevIDPrefix) {
			v.add(r.ID, RuleColrevID, "colrev_id %q lacks prefix %s", id, identifier.ColrevIDPrefix)
		}
	}
	if r.IsCurated() || r.Status == state.RevPrescreenExcluded {
		return
	}
	req, ok := record.Requirements[r.EntryType]
	if !ok {
		return
	}
	for _, key := range req.Required {
		if r.HasValue(key) {
			continue
		}
		p := r.Provenance(key)
		if p == nil || !(p.HasNote(record.NoteMissing) || p.HasNote(record.NoteNotMissing)) {
			v.add(r.ID, RuleFields, "required field %s is missing without a note", key)
		}
	}
}

func (v *validator) checkPDF(r *record.Record) {
	file := r.Get(record.KeyFile)
	if file == "" {
		v.add(r.ID, RulePDF, "no file in %s", r.Status)
	} else if info, err := os.Stat(v.m.Path(file)); err != nil || !info.Mode().IsRegular() {
		v.add(r.ID, RulePDF, "file %s does not exist", file)
	}
	if id := r.Get(record.KeyPDFID); !strings.HasPrefix(id, identifier.PDFIDPrefix) {
		v.add(r.ID, RulePDF, "colrev_pdf_id %q lacks prefix %s", id, identifier.PDFIDPrefix)
	}
}
