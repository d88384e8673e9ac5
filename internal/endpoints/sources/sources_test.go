package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/s2"
	"github.com/matsen/litreview/internal/testutil"
)

func testEnv(t *testing.T) *endpoint.Env {
	t.Helper()
	return &endpoint.Env{Root: t.TempDir(), Logger: logging.Nop(), Reporter: logging.Discard()}
}

func collect(t *testing.T, src endpoint.SearchSource) []*record.Record {
	t.Helper()
	var out []*record.Record
	for r, err := range src.Records(context.Background()) {
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		out = append(out, r)
	}
	return src.LoadFixes(out)
}

const sampleBib = `@Article{staehr2010,
  author = {Staehr, Lorraine},
  journaltitle = {Information Systems Journal},
  title = {Understanding the role of managerial agency},
  date = {2010-05-01},
  issue = {3},
}

@conference{rai2021,
  author = {Rai, Arun},
  title = {Editorial},
  booktitle = {ICIS},
  year = {2021},
}

@weird{x1,
  title = {Something},
  colrev_status = {md_prepared},
}
`

func TestBibTeX_RecordsAndFixes(t *testing.T) {
	env := testEnv(t)
	testutil.WriteFile(t, env.Root, "data/search/db.bib", sampleBib)
	src := NewBibTeX(env, &endpoint.SourceConfig{Filename: "data/search/db.bib"})

	recs := collect(t, src)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}

	a := recs[0]
	if a.ID != "staehr2010" || a.EntryType != "article" {
		t.Errorf("first record = %s/%s", a.ID, a.EntryType)
	}
	checks := map[string]string{"journal": "Information Systems Journal", "number": "3", "year": "2010"}
	for k, want := range checks {
		if got := a.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if a.Has("journaltitle") || a.Has("issue") {
		t.Error("alias fields should be renamed")
	}
	if recs[1].EntryType != "inproceedings" {
		t.Errorf("conference mapped to %q, want inproceedings", recs[1].EntryType)
	}
	if recs[2].EntryType != "misc" {
		t.Errorf("unknown entrytype mapped to %q, want misc", recs[2].EntryType)
	}
	if recs[2].Has("colrev_status") {
		t.Error("bookkeeping keys must not be imported from search files")
	}
}

func TestBibHeuristic(t *testing.T) {
	tests := []struct {
		name string
		data string
		want float64
	}{
		{"db.bib", sampleBib, 0.5},
		{"empty.bib", "", 0.1},
		{"db.ris", sampleBib, 0},
	}
	for _, tt := range tests {
		if got := bibHeuristic(tt.name, []byte(tt.data)); got != tt.want {
			t.Errorf("bibHeuristic(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

const samplePaperpile = `[
  {
    "_id": "pp-1",
    "citekey": "Staehr2010-ab",
    "pubtype": "JOUR",
    "title": "Understanding the role of managerial agency",
    "journal": "Information Systems Journal",
    "volume": 20,
    "issue": "3",
    "doi": "10.1111/j.1365-2575.2009.00321.x",
    "published": {"year": 2010, "month": "5"},
    "author": [{"first": "Lorraine", "last": "Staehr"}],
    "attachments": [
      {"_id": "a1", "article_pdf": 0, "filename": "supp.pdf"},
      {"_id": "a2", "article_pdf": 1, "filename": "Staehr2010.pdf"}
    ]
  },
  {"_id": "pp-2", "citekey": "", "title": "", "author": []},
  {"_id": "pp-3", "title": "Conference paper", "pubtype": "CONF", "journal": "ICIS",
   "published": {"year": "2021"}, "author": [{"first": "Arun", "last": "Rai"}, {"last": "Doe"}]}
]`

func TestParsePaperpile(t *testing.T) {
	recs, errs := ParsePaperpile([]byte(samplePaperpile), "/papers")
	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1 (missing title): %v", len(errs), errs)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	r := recs[0]
	if r.ID != "Staehr2010-ab" || r.EntryType != "article" {
		t.Errorf("record = %s/%s", r.ID, r.EntryType)
	}
	want := map[string]string{
		"author":  "Staehr, Lorraine",
		"volume":  "20",
		"number":  "3",
		"year":    "2010",
		"month":   "5",
		"file":    filepath.Join("/papers", "Staehr2010.pdf"),
		"journal": "Information Systems Journal",
	}
	for k, v := range want {
		if got := r.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	c := recs[1]
	if c.ID != "pp-3" || c.EntryType != "inproceedings" || c.Get("booktitle") != "ICIS" {
		t.Errorf("conference record = %s/%s booktitle=%q", c.ID, c.EntryType, c.Get("booktitle"))
	}
	if got := c.Get("author"); got != "Rai, Arun and Doe" {
		t.Errorf("author = %q", got)
	}
}

func TestParsePaperpile_InvalidJSON(t *testing.T) {
	_, errs := ParsePaperpile([]byte("{"), "")
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}

func TestPaperpileHeuristic(t *testing.T) {
	if got := paperpileHeuristic("export.json", []byte(samplePaperpile)); got != 0.9 {
		t.Errorf("heuristic = %v, want 0.9", got)
	}
	if got := paperpileHeuristic("export.json", []byte(`{"a": 1}`)); got != 0 {
		t.Errorf("heuristic on other json = %v, want 0", got)
	}
}

func TestPDFsDir_Search(t *testing.T) {
	env := testEnv(t)
	testutil.WritePDF(t, filepath.Join(env.Root, "data/pdfs"), "first paper.pdf", "A Study of Things in Many Places")
	testutil.WritePDF(t, filepath.Join(env.Root, "data/pdfs"), "second.pdf", "Another Long Title For The Test")
	testutil.WriteFile(t, env.Root, "data/pdfs/second_backup.pdf", "ignored")
	src := NewPDFsDir(env, &endpoint.SourceConfig{Filename: "data/search/pdfs.bib"})

	if err := src.Search(context.Background(), false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	recs := collect(t, src)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != "first_paper" || recs[0].Get(record.KeyFile) != "data/pdfs/first paper.pdf" {
		t.Errorf("first record = %s file=%q", recs[0].ID, recs[0].Get(record.KeyFile))
	}

	testutil.WritePDF(t, filepath.Join(env.Root, "data/pdfs"), "third.pdf", "Third Title Of Some Length")
	if err := src.Search(context.Background(), false); err != nil {
		t.Fatalf("second Search() error = %v", err)
	}
	entries, err := bibtex.ParseFile(filepath.Join(env.Root, "data/search/pdfs.bib"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("search file has %d entries after rescan, want 3", len(entries))
	}
}

type fakePapers struct {
	papers []s2.Paper
	err    error
}

func (f *fakePapers) GetPaperByDOI(context.Context, string) (*s2.Paper, error) {
	return nil, errors.New("not used")
}

func (f *fakePapers) SearchAll(_ context.Context, query string, max int) ([]s2.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.papers) > max {
		return f.papers[:max], nil
	}
	return f.papers, nil
}

func TestSemanticScholar_Search(t *testing.T) {
	env := testEnv(t)
	papers := &fakePapers{papers: []s2.Paper{
		{PaperID: "abc", Title: "Agency in ERP.", Year: 2010, Authors: []s2.Author{{Name: "Lorraine Staehr"}}},
		{PaperID: "def", Title: "Editorial", Year: 2021},
	}}
	env.Papers = papers
	cfg := &endpoint.SourceConfig{
		Filename:         "data/search/s2.bib",
		SearchParameters: map[string]any{"query": "erp agency", "max_results": float64(10)},
	}
	src, err := NewSemanticScholar(env, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Search(context.Background(), false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	recs := collect(t, src)
	if len(recs) != 2 || recs[0].ID != "abc" || recs[0].Get("title") != "Agency in ERP" {
		t.Fatalf("records = %v", recs)
	}

	papers.papers = append(papers.papers, s2.Paper{PaperID: "ghi", Title: "New"})
	if err := src.Search(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if got := len(collect(t, src)); got != 3 {
		t.Errorf("after second search got %d records, want 3", got)
	}
	data, _ := os.ReadFile(filepath.Join(env.Root, cfg.Filename))
	if strings.Contains(string(data), "colrev_") {
		t.Error("search file should not carry bookkeeping keys")
	}
}

func TestSemanticScholar_Errors(t *testing.T) {
	env := testEnv(t)
	if _, err := NewSemanticScholar(env, &endpoint.SourceConfig{Filename: "x.bib"}); err == nil {
		t.Error("expected error without query")
	}
	src, err := NewSemanticScholar(env, &endpoint.SourceConfig{
		Filename: "x.bib", SearchParameters: map[string]any{"query": "q"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Search(context.Background(), false); !review.IsServiceNotAvailable(err) {
		t.Errorf("Search() without client = %v, want service not available", err)
	}
}
