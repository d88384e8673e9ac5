package quality

import (
	"strings"
	"testing"

	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

func article(kv ...string) *record.Record {
	r := record.New("Rai2021", "article")
	r.Origins = []string{"misq.bib/1"}
	for i := 0; i+1 < len(kv); i += 2 {
		r.UpdateField(kv[i], kv[i+1], "misq.bib/1")
	}
	r.Status = state.MDImported
	return r
}

func TestApply_UpperCaseThenFixed(t *testing.T) {
	r := article("title", "EDITORIAL", "author", "RAI", "journal", "MIS Quarterly",
		"year", "2021", "volume", "45", "number", "1")
	m := NewModel()

	if got := m.Apply(r); got != state.MDNeedsManualPreparation {
		t.Fatalf("Apply() = %s, want md_needs_manual_preparation", got)
	}
	for _, k := range []string{"title", "author"} {
		note := r.MasterdataProvenance[k].Note()
		if !strings.Contains(note, record.NoteQualityDefect) {
			t.Errorf("%s note = %q, want quality_defect", k, note)
		}
	}
	if len(r.ColrevIDs) != 0 {
		t.Errorf("ColrevIDs = %v, want none", r.ColrevIDs)
	}

	r.UpdateField("title", "Editorial", "manual")
	r.UpdateField("author", "Rai, Arun", "manual")
	if got := m.Apply(r); got != state.MDPrepared {
		t.Fatalf("Apply() after fix = %s, want md_prepared; notes title=%q author=%q",
			got, r.MasterdataProvenance["title"].Note(), r.MasterdataProvenance["author"].Note())
	}
	for _, k := range []string{"title", "author"} {
		if note := r.MasterdataProvenance[k].Note(); note != "" {
			t.Errorf("%s note = %q, want cleared", k, note)
		}
	}
	if len(r.ColrevIDs) != 1 || !strings.HasPrefix(r.ColrevIDs[0], "colrev_id1:") {
		t.Errorf("ColrevIDs = %v", r.ColrevIDs)
	}
}

func TestCheck_KeepsRestrictionMissingNote(t *testing.T) {
	r := article("title", "Editorial", "author", "Rai, Arun", "journal", "MIS Quarterly",
		"year", "2021", "volume", "45", "number", "1")
	if err := r.ApplyRestrictions(map[string]any{"pages": true}); err != nil {
		t.Fatal(err)
	}
	if !r.MasterdataProvenance["pages"].HasNote(record.NoteMissing) {
		t.Fatalf("pages note = %q, want missing", r.MasterdataProvenance["pages"].Note())
	}

	NewModel().Check(r)
	if !r.MasterdataProvenance["pages"].HasNote(record.NoteMissing) {
		t.Errorf("pages note = %q after Check, want missing kept", r.MasterdataProvenance["pages"].Note())
	}

	r.RemoveField("volume", false, "manual")
	NewModel().Check(r)
	if !r.MasterdataProvenance["volume"].HasNote(record.NoteMissing) {
		t.Errorf("volume note = %q, want missing", r.MasterdataProvenance["volume"].Note())
	}
}

func TestCheck_Codes(t *testing.T) {
	tests := []struct {
		name  string
		kv    []string
		field string
		code  string
	}{
		{"et al", []string{"author", "Rai, Arun et al."}, "author", CodeAuthorFormat},
		{"role word", []string{"author", "Rai, Arun and University, Georgia State"}, "author", CodeAuthorFormat},
		{"spaced letters", []string{"author", "I N T R O, Duction"}, "author", CodeAuthorFormat},
		{"and count", []string{"author", "Rai, Arun, Webster, Jane"}, "author", CodeAuthorFormat},
		{"file name title", []string{"title", "paper_final_v2.pdf"}, "title", CodeTitleFormat},
		{"ellipsis", []string{"title", "Understanding the role of..."}, "title", CodeIncomplete},
		{"and others", []string{"author", "Rai, Arun and others"}, "author", CodeIncomplete},
		{"bad year", []string{"year", "in press"}, "year", CodeYearFormat},
		{"forbidden booktitle", []string{"booktitle", "ICIS Proceedings"}, "booktitle", CodeInconsistentType},
		{"missing volume", nil, "volume", CodeMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := article(tt.kv...)
			NewModel().Check(r)
			p := r.MasterdataProvenance[tt.field]
			if p == nil || !p.HasNote(tt.code) {
				t.Errorf("%s provenance = %+v, want note %s", tt.field, p, tt.code)
			}
		})
	}
}

func TestCheck_AcronymVenueNotFlagged(t *testing.T) {
	r := article("journal", "MISQ", "author", "{World Health Organization}")
	NewModel().Check(r)
	if r.MasterdataProvenance["journal"].HasNote(CodeMostlyUpperCase) {
		t.Error("short acronym venue flagged as upper case")
	}
	if r.MasterdataProvenance["author"].HasNote(CodeAuthorFormat) {
		t.Error("braced corporate author flagged")
	}
}

func TestApply_Curated(t *testing.T) {
	r := article("title", "EDITORIAL", "author", "RAI", "journal", "MIS Quarterly",
		"year", "2021", "volume", "45", "number", "1")
	r.MasterdataProvenance[record.CuratedKey] = &record.Provenance{Source: "curation"}

	if got := NewModel().Apply(r); got != state.MDPrepared {
		t.Errorf("Apply(curated) = %s, want md_prepared", got)
	}
}

func TestApply_DisagreementIsSavePoint(t *testing.T) {
	r := article("title", "Editorial", "author", "Rai, Arun", "journal", "MIS Quarterly",
		"year", "2021", "volume", "45", "number", "1")
	r.MasterdataProvenance["title"].AddNote(record.NoteDisagreementWith + "semanticscholar")

	if got := NewModel().Apply(r); got != state.MDNeedsManualPreparation {
		t.Errorf("Apply() = %s, want md_needs_manual_preparation", got)
	}
}

func TestApply_LeavesLaterStatesAlone(t *testing.T) {
	r := article("title", "EDITORIAL")
	r.Status = state.RevPrescreenExcluded
	if got := NewModel().Apply(r); got != state.RevPrescreenExcluded {
		t.Errorf("Apply() = %s, want rev_prescreen_excluded", got)
	}
}
