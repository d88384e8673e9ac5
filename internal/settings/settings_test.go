package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_ValidatesAndRoundTrips(t *testing.T) {
	root := t.TempDir()
	s := Default("literature_review")
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if err := s.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Project.ReviewType != "literature_review" || loaded.Dedupe.SameSourceMerges != SameSourcePrevent {
		t.Errorf("Load() = %+v", loaded.Project)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantMsg string
	}{
		{
			name:    "bad share_stat_req",
			json:    `{"project":{"review_type":"x","id_pattern":"first_author_year","share_stat_req":"often"},"dedupe":{"same_source_merges":"prevent"},"pdf_get":{"pdf_path_type":"copy"}}`,
			wantMsg: "share_stat_req",
		},
		{
			name:    "endpoint without name",
			json:    `{"project":{"review_type":"x","id_pattern":"first_author_year","share_stat_req":"none"},"dedupe":{"same_source_merges":"prevent","dedupe_package_endpoints":[{"threshold":0.5}]},"pdf_get":{"pdf_path_type":"copy"}}`,
			wantMsg: "has_endpoint",
		},
		{
			name:    "bad search type",
			json:    `{"project":{"review_type":"x","id_pattern":"first_author_year","share_stat_req":"none"},"sources":[{"endpoint":"bibtex","filename":"data/search/a.bib","search_type":"WEB"}],"dedupe":{"same_source_merges":"prevent"},"pdf_get":{"pdf_path_type":"copy"}}`,
			wantMsg: "search_type",
		},
		{
			name:    "malformed json",
			json:    `{"project":`,
			wantMsg: "",
		},
		{
			name:    "restriction key not a year",
			json:    `{"project":{"review_type":"x","id_pattern":"first_author_year","share_stat_req":"none","masterdata_restrictions":{"early":{"volume":true}}},"dedupe":{"same_source_merges":"prevent"},"pdf_get":{"pdf_path_type":"copy"}}`,
			wantMsg: "early",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("Parse() error = %v, want ErrInvalidSettings", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Parse() error = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRestrictionsFor(t *testing.T) {
	s := Default("literature_review")
	s.Project.MasterdataRestrictions = map[string]map[string]any{
		"1990": {"journal": "MIS Quarterly"},
		"2000": {"journal": "MIS Quarterly", "number": true},
	}
	if got := s.RestrictionsFor("1985"); got != nil {
		t.Errorf("RestrictionsFor(1985) = %v, want nil", got)
	}
	if got := s.RestrictionsFor("1995"); len(got) != 1 {
		t.Errorf("RestrictionsFor(1995) = %v", got)
	}
	if got := s.RestrictionsFor("2021"); got["number"] != true {
		t.Errorf("RestrictionsFor(2021) = %v", got)
	}
}

func TestFindRepository(t *testing.T) {
	root := t.TempDir()
	if err := Default("literature_review").Save(root); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "data", "search")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRepository(sub)
	if err != nil {
		t.Fatalf("FindRepository() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	if gotReal, _ := filepath.EvalSymlinks(got); gotReal != want {
		t.Errorf("FindRepository() = %q, want %q", got, root)
	}

	if _, err := FindRepository(t.TempDir()); !errors.Is(err, ErrNotRepository) {
		t.Errorf("FindRepository(empty) error = %v, want ErrNotRepository", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/index.db", filepath.Join(home, "index.db")},
		{"/abs/path", "/abs/path"},
		{"", ""},
		{"rel/~", "rel/~"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCriteriaNames(t *testing.T) {
	s := ScreenSettings{Criteria: map[string]ScreenCriterion{
		"scope":  {Explanation: "in scope", CriterionType: CriterionInclusion},
		"method": {Explanation: "empirical", CriterionType: CriterionExclusion},
	}}
	got := s.CriteriaNames()
	if len(got) != 2 || got[0] != "method" || got[1] != "scope" {
		t.Errorf("CriteriaNames() = %v", got)
	}
}
