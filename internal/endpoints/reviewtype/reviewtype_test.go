package reviewtype

import (
	"testing"

	"github.com/matsen/litreview/internal/settings"
)

func endpointIDs(entries []settings.EndpointSettings) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Endpoint()
	}
	return ids
}

func TestLiteratureReview(t *testing.T) {
	s := settings.Default(LiteratureReviewID)
	LiteratureReview{}.ApplyDefaults(s)

	if len(s.Prep.PrepRounds) != 1 {
		t.Fatalf("got %d prep rounds, want 1", len(s.Prep.PrepRounds))
	}
	if got := endpointIDs(s.Screen.ScreenPackageEndpoints); len(got) != 1 || got[0] != "lrv.decision_file" {
		t.Errorf("screen endpoints = %v", got)
	}
	if got := endpointIDs(s.Data.DataPackageEndpoints); len(got) != 1 || got[0] != "lrv.bibliography_export" {
		t.Errorf("data endpoints = %v", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestScopingReview(t *testing.T) {
	s := settings.Default(ScopingReviewID)
	ScopingReview{}.ApplyDefaults(s)

	if got := s.Screen.CriteriaNames(); len(got) != 3 {
		t.Errorf("criteria = %v, want population, concept and context", got)
	}
	if got := endpointIDs(s.Prescreen.PrescreenPackageEndpoints); len(got) != 2 || got[0] != "lrv.scope_prescreen" {
		t.Errorf("prescreen endpoints = %v", got)
	}
	if s.PDFGet.PDFRequiredForScreenAndSynthesis {
		t.Error("scoping reviews should not require PDFs")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestApplyDefaults_KeepsConfiguredEndpoints(t *testing.T) {
	s := settings.Default(LiteratureReviewID)
	s.Data.DataPackageEndpoints = []settings.EndpointSettings{{"endpoint": "lrv.structured"}}
	s.Screen.Criteria = map[string]settings.ScreenCriterion{
		"own": {Explanation: "x", CriterionType: settings.CriterionExclusion},
	}
	ScopingReview{}.ApplyDefaults(s)

	if got := endpointIDs(s.Data.DataPackageEndpoints); len(got) != 1 || got[0] != "lrv.structured" {
		t.Errorf("data endpoints = %v", got)
	}
	if got := s.Screen.CriteriaNames(); len(got) != 1 || got[0] != "own" {
		t.Errorf("criteria = %v", got)
	}
}
