package state

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRecordState_RoundTrip(t *testing.T) {
	for _, s := range All() {
		parsed, err := ParseRecordState(s.String())
		if err != nil {
			t.Fatalf("ParseRecordState(%q) error = %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseRecordState(%q) = %v, want %v", s, parsed, s)
		}
	}
	if _, err := ParseRecordState("md_unknown"); err == nil {
		t.Error("ParseRecordState(md_unknown) expected error")
	}
}

func TestModel_PrecedingStates(t *testing.T) {
	m := NewModel()

	tests := []struct {
		state RecordState
		want  []RecordState
	}{
		{MDRetrieved, nil},
		{MDImported, []RecordState{MDRetrieved}},
		{MDPrepared, []RecordState{MDRetrieved, MDImported, MDNeedsManualPreparation}},
		{PDFImported, []RecordState{
			MDRetrieved, MDImported, MDNeedsManualPreparation, MDPrepared, MDProcessed,
			RevPrescreenIncluded, PDFNeedsManualRetrieval,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			got := m.PrecedingStates(tt.state)
			if len(got) != len(tt.want) {
				t.Fatalf("PrecedingStates(%s) = %v, want %v", tt.state, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("PrecedingStates(%s)[%d] = %s, want %s", tt.state, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestModel_ValidTransitions(t *testing.T) {
	m := NewModel()
	ops := m.ValidTransitions(MDImported)
	if len(ops) != 1 || ops[0] != Prep {
		t.Errorf("ValidTransitions(md_imported) = %v, want [prep]", ops)
	}
	if ops := m.ValidTransitions(RevSynthesized); len(ops) != 0 {
		t.Errorf("ValidTransitions(rev_synthesized) = %v, want none", ops)
	}
}

func TestModel_Reachable(t *testing.T) {
	reach := NewModel().Reachable()
	for _, s := range All() {
		if !reach[s] {
			t.Errorf("state %s not reachable from md_retrieved", s)
		}
	}
}

func TestModel_CheckPrecondition(t *testing.T) {
	m := NewModel()

	t.Run("dedupe blocked by md_imported", func(t *testing.T) {
		err := m.CheckPrecondition(Dedupe, []RecordState{MDImported}, true)
		var v *ProcessOrderViolation
		if !errors.As(err, &v) {
			t.Fatalf("CheckPrecondition() error = %v, want ProcessOrderViolation", err)
		}
		if len(v.States) != 1 || v.States[0] != MDImported {
			t.Errorf("violation states = %v, want [md_imported]", v.States)
		}
		if !strings.Contains(err.Error(), "md_imported") {
			t.Errorf("error message %q does not name md_imported", err.Error())
		}
	})

	t.Run("no delay allows preceding states", func(t *testing.T) {
		if err := m.CheckPrecondition(Dedupe, []RecordState{MDImported, MDPrepared}, false); err != nil {
			t.Errorf("CheckPrecondition() error = %v, want nil", err)
		}
	})

	t.Run("empty dataset", func(t *testing.T) {
		if err := m.CheckPrecondition(Prep, nil, true); !errors.Is(err, ErrNoRecords) {
			t.Errorf("CheckPrecondition(prep, empty) error = %v, want ErrNoRecords", err)
		}
		if err := m.CheckPrecondition(Load, nil, true); err != nil {
			t.Errorf("CheckPrecondition(load, empty) error = %v, want nil", err)
		}
	})

	t.Run("records in source state pass", func(t *testing.T) {
		if err := m.CheckPrecondition(Prescreen, []RecordState{MDProcessed, RevPrescreenIncluded}, true); err != nil {
			t.Errorf("CheckPrecondition() error = %v, want nil", err)
		}
	})
}

func TestModel_IsValid(t *testing.T) {
	m := NewModel()
	if !m.IsValid(Screen, PDFPrepared, RevIncluded) {
		t.Error("screen pdf_prepared -> rev_included should be valid")
	}
	if m.IsValid(Screen, MDProcessed, RevIncluded) {
		t.Error("screen md_processed -> rev_included should be invalid")
	}
}

