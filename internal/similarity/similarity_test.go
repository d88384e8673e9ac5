package similarity

import (
	"math"
	"testing"

	"github.com/matsen/litreview/internal/record"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Müller", "Muller", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("Editorial!", "editorial"); got != 1 {
		t.Errorf("Ratio ignoring case and punctuation = %v, want 1", got)
	}
	if got := Ratio("", ""); got != 1 {
		t.Errorf("Ratio of empty strings = %v, want 1", got)
	}
	if got := Ratio("abcd", "wxyz"); got != 0 {
		t.Errorf("Ratio of disjoint strings = %v, want 0", got)
	}
}

func article(id, author, title, journal, year, volume, number string) *record.Record {
	r := record.New(id, "article")
	r.Set("author", author)
	r.Set("title", title)
	r.Set("journal", journal)
	r.Set("year", year)
	r.Set("volume", volume)
	r.Set("number", number)
	return r
}

func TestRecords(t *testing.T) {
	a := article("a", "Staehr, Lorraine", "Understanding the role of managerial agency", "Information Systems Journal", "2010", "20", "3")
	b := article("b", "Staehr, L.", "Understanding the Role of Managerial Agency", "Information Systems Journal", "2010", "20", "3")
	c := article("c", "Rai, Arun", "Editorial", "MIS Quarterly", "2021", "45", "1")

	if got := Records(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("Records(a, a) = %v, want 1", got)
	}
	if got := Records(a, b); got < 0.9 {
		t.Errorf("Records(a, b) = %v, want >= 0.9 for a duplicate", got)
	}
	if got := Records(a, c); got > 0.5 {
		t.Errorf("Records(a, c) = %v, want < 0.5 for distinct papers", got)
	}
	if Records(a, b) != Records(b, a) {
		t.Error("Records should be symmetric")
	}
}

func TestRecords_OtherTypes(t *testing.T) {
	a := record.New("a", "inproceedings")
	a.Set("title", "A study")
	a.Set("booktitle", "ICIS")
	b := record.New("b", "inproceedings")
	b.Set("title", "A study")
	b.Set("booktitle", "ICIS")
	b.Set("year", "2020")
	// author missing from both counts as equal, year missing from one does not.
	want := 0.15 + 0.75 + 0.05
	if got := Records(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("Records = %v, want %v", got, want)
	}
}

func TestRecords_Deterministic(t *testing.T) {
	a := article("a", "Staehr, Lorraine", "Understanding the role of managerial agency", "Information Systems Journal", "2010", "20", "3")
	b := article("b", "Staehr, L.", "Understanding managerial agency in ERP", "Information Systems Journal", "2010", "21", "3")
	first := Records(a, b)
	for i := 0; i < 100; i++ {
		if got := Records(a, b); got != first {
			t.Fatalf("Records differs between calls: %v vs %v", got, first)
		}
	}
}
