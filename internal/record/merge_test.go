package record

import (
	"errors"
	"slices"
	"sort"
	"testing"
)

func TestMerge_BestFields(t *testing.T) {
	a := newArticle("a",
		"title", "EDITORIAL", "author", "Rai, Arun", "journal", "MIS Quarterly",
		"volume", "45", "number", "1", "pages", "1--3")
	b := newArticle("b", "title", "Editorial", "author", "Rai, A", "journal", "MISQ")

	if err := a.Merge(b, "merge"); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := map[string]string{
		"title":   "Editorial",
		"author":  "Rai, Arun",
		"journal": "MIS Quarterly",
		"pages":   "1--3",
	}
	for k, v := range want {
		if got := a.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := a.MasterdataProvenance["title"].Source; got != "test.bib/b" {
		t.Errorf("title provenance = %q, want the merged record's source", got)
	}
	if !slices.Equal(a.Origins, []string{"test.bib/a", "test.bib/b"}) {
		t.Errorf("Origins = %v", a.Origins)
	}
}

func TestMerge_InvalidPartLeavesRecordUntouched(t *testing.T) {
	a := newArticle("a", "title", "Editorial - Part 1", "author", "Rai, Arun")
	b := newArticle("b", "title", "Editorial - Part 2", "author", "Rai, Arun", "doi", "10.1/x")
	before := a.Copy()

	err := a.Merge(b, "merge")
	if !errors.Is(err, ErrInvalidMerge) {
		t.Fatalf("Merge() error = %v, want ErrInvalidMerge", err)
	}
	var mergeErr *InvalidMergeError
	if !errors.As(err, &mergeErr) || mergeErr.OtherID != "b" {
		t.Errorf("error = %#v", err)
	}
	if !slices.Equal(a.Origins, before.Origins) || a.Has("doi") {
		t.Error("record mutated by a refused merge")
	}
}

func TestMerge_InvalidCases(t *testing.T) {
	tests := []struct {
		name   string
		ta, tb string
	}{
		{"erratum", "Erratum: Trust in e-commerce", "Trust in e-commerce"},
		{"commentary", "A commentary on trust in e-commerce", "Trust in e-commerce"},
		{"roman parts", "Theory building, part II", "Theory building, part III"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newArticle("a", "title", tt.ta)
			b := newArticle("b", "title", tt.tb)
			if err := a.Merge(b, "merge"); !IsInvalidMerge(err) {
				t.Errorf("Merge() error = %v, want invalid merge", err)
			}
		})
	}
}

func TestMerge_OriginsCommutative(t *testing.T) {
	mk := func() (*Record, *Record) {
		a := newArticle("a", "title", "Trust")
		a.AddOrigins("scopus.bib/7")
		b := newArticle("b", "title", "Trust")
		b.AddOrigins("scopus.bib/7", "wos.bib/1")
		return a, b
	}
	a1, b1 := mk()
	if err := a1.Merge(b1, "m"); err != nil {
		t.Fatal(err)
	}
	a2, b2 := mk()
	if err := b2.Merge(a2, "m"); err != nil {
		t.Fatal(err)
	}
	o1, o2 := slices.Clone(a1.Origins), slices.Clone(b2.Origins)
	sort.Strings(o1)
	sort.Strings(o2)
	if !slices.Equal(o1, o2) {
		t.Errorf("origins differ: %v vs %v", o1, o2)
	}
}

func TestMerge_CuratedPrecedence(t *testing.T) {
	a := newArticle("a", "title", "TRUST IN E-COMMERCE", "author", "Gefen, D", "journal", "MISQ", "doi", "10.1/x")
	b := New("b", "article")
	b.Origins = []string{"curated.bib/b"}
	b.MasterdataProvenance[CuratedKey] = &Provenance{Source: "https://github.com/curations/misq"}
	b.Set("title", "Trust and TAM in online shopping")
	b.Set("author", "Gefen, David and Karahanna, Elena")
	b.Set("journal", "MIS Quarterly")
	b.Set("year", "2003")

	if err := a.Merge(b, "merge"); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !a.IsCurated() {
		t.Fatal("merged record should be curated")
	}
	for _, k := range IdentifyingFields {
		if a.Get(k) != b.Get(k) {
			t.Errorf("%s = %q, want curated %q", k, a.Get(k), b.Get(k))
		}
	}
	if a.Get("doi") != "10.1/x" {
		t.Errorf("doi = %q, non-identifying data should survive", a.Get("doi"))
	}

	c := newArticle("c", "title", "Trust and TAM in Online Shopping: An Integrated Model", "pages", "51--90")
	if err := a.Merge(c, "merge"); err != nil {
		t.Fatal(err)
	}
	if a.Get("title") != b.Get("title") || a.Has("pages") {
		t.Error("non-curated values must not overwrite curated masterdata")
	}
}

func TestMerge_UnknownLoses(t *testing.T) {
	a := newArticle("a", "title", "Trust", "volume", UnknownValue, "url", UnknownValue)
	b := newArticle("b", "title", "Trust", "volume", "27", "url", "https://example.org")
	if err := a.Merge(b, "merge"); err != nil {
		t.Fatal(err)
	}
	if a.Get("volume") != "27" || a.Get("url") != "https://example.org" {
		t.Errorf("volume=%q url=%q", a.Get("volume"), a.Get("url"))
	}
}

func TestMerge_Files(t *testing.T) {
	a := newArticle("a", "title", "Trust", "file", "data/pdfs/a.pdf")
	b := newArticle("b", "title", "Trust", "file", "data/pdfs/b.pdf")
	if err := a.Merge(b, "merge"); err != nil {
		t.Fatal(err)
	}
	if got := a.Get("file"); got != "data/pdfs/a.pdf;data/pdfs/b.pdf" {
		t.Errorf("file = %q", got)
	}
}

func TestMerge_AuthorDefectLoses(t *testing.T) {
	a := newArticle("a", "title", "Trust", "author", "Gefen, D. et al.")
	a.MasterdataProvenance["author"].AddNote(NoteQualityDefect)
	b := newArticle("b", "title", "Trust", "author", "Gefen, David and Straub, Detmar")

	if err := a.Merge(b, "merge"); err != nil {
		t.Fatal(err)
	}
	if a.Get("author") != "Gefen, David and Straub, Detmar" {
		t.Errorf("author = %q", a.Get("author"))
	}
}
