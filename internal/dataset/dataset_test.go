package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

func sampleRecords(t *testing.T) *Records {
	t.Helper()
	recs := NewRecords()

	a := record.New("Staehr2010", "article")
	a.Origins = []string{"scopus.bib/000123", "wos.bib/45"}
	a.UpdateField("note", "keep insertion order", "scopus.bib/000123")
	a.UpdateField("title", "Understanding the role of managerial agency", "scopus.bib/000123")
	a.UpdateField("author", "Staehr, Lorraine", "scopus.bib/000123")
	a.UpdateField("journal", "Information Systems Journal", "scopus.bib/000123")
	a.UpdateField("year", "2010", "scopus.bib/000123")
	a.UpdateField("volume", "20", "scopus.bib/000123")
	a.UpdateField("number", "3", "scopus.bib/000123")
	a.UpdateField("doi", "10.1111/j.1365-2575.2009.00321.x", "wos.bib/45")
	a.MasterdataProvenance["title"].AddNote("mostly-upper-case")
	a.MasterdataProvenance["title"].AddNote("quality_defect")
	a.SetStatus(state.MDPrepared)

	b := record.New("Rai2021", "misc")
	b.Origins = []string{"misq.bib/1"}
	b.UpdateField("title", "Editorial", "misq.bib/1")
	b.UpdateField("abstract", "Line one\nline two", "misq.bib/1")
	b.Status = state.MDImported

	for _, r := range []*record.Record{a, b} {
		if err := recs.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return recs
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	d := New(t.TempDir(), nil)
	if err := d.SaveRecords(sampleRecords(t)); err != nil {
		t.Fatalf("SaveRecords() error = %v", err)
	}
	first, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}

	recs, err := d.LoadRecords()
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if err := d.SaveRecords(recs); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("round trip changed the file:\n--- first\n%s\n--- second\n%s", first, second)
	}

	a := recs.Get("Staehr2010")
	if a.Status != state.MDPrepared || len(a.ColrevIDs) != 1 {
		t.Errorf("status=%s colrev_id=%v", a.Status, a.ColrevIDs)
	}
	if got := a.MasterdataProvenance["title"].Note(); got != "mostly-upper-case,quality_defect" {
		t.Errorf("title note = %q", got)
	}
	if len(a.Origins) != 2 || a.Origins[1] != "wos.bib/45" {
		t.Errorf("origins = %v", a.Origins)
	}
	if got := recs.Get("Rai2021").Get("abstract"); got != "Line one\nline two" {
		t.Errorf("abstract = %q", got)
	}
}

func TestToEntry_FieldOrder(t *testing.T) {
	e := ToEntry(sampleRecords(t).Get("Staehr2010"))
	var names []string
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	want := []string{
		"colrev_origin", "colrev_status", "colrev_masterdata_provenance", "colrev_data_provenance",
		"colrev_id", "title", "author", "year", "journal", "volume", "number", "note", "doi",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("field order = %v\nwant %v", names, want)
	}
}

func TestFromEntry_LegacyOriginAndErrors(t *testing.T) {
	const content = `@article{Old2001,
  origin = {legacy.bib/7},
  colrev_status = {md_processed},
  colrev_masterdata_provenance = {title:https://example.org/a:b;src;missing,quality_defect;},
  title = {Old}
}
`
	recs, err := ReadRecords(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	r := recs.Get("Old2001")
	if len(r.Origins) != 1 || r.Origins[0] != "legacy.bib/7" {
		t.Errorf("origins = %v", r.Origins)
	}
	p := r.MasterdataProvenance["title"]
	if p.Source != "https://example.org/a:b;src" || !p.HasNote("missing") || !p.HasNote("quality_defect") {
		t.Errorf("provenance = %+v", p)
	}
	if ToEntry(r).Fields[0].Name != record.KeyOrigin {
		t.Error("writer should emit colrev_origin")
	}

	bad := strings.Replace(content, "md_processed", "md_unknown", 1)
	if _, err := ReadRecords(strings.NewReader(bad)); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("ReadRecords(bad status) error = %v, want ErrInvalidRecord", err)
	}

	dup := content + "\n" + content
	if _, err := ReadRecords(strings.NewReader(dup)); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("ReadRecords(duplicate) error = %v, want ErrDuplicateID", err)
	}
}

func TestReadHeadersAndIterate(t *testing.T) {
	d := New(t.TempDir(), nil)
	if err := d.SaveRecords(sampleRecords(t)); err != nil {
		t.Fatal(err)
	}

	headers, err := d.ReadHeaders()
	if err != nil {
		t.Fatalf("ReadHeaders() error = %v", err)
	}
	want := []Header{{ID: "Staehr2010", Status: state.MDPrepared}, {ID: "Rai2021", Status: state.MDImported}}
	if len(headers) != len(want) {
		t.Fatalf("ReadHeaders() = %v", headers)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Errorf("header[%d] = %+v, want %+v", i, headers[i], want[i])
		}
	}

	var ids []string
	for r, err := range d.Iterate(InStates(state.MDImported)) {
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}
	if len(ids) != 1 || ids[0] != "Rai2021" {
		t.Errorf("Iterate() = %v", ids)
	}
}

func TestReadHeaders_SkipsCommentsAndValues(t *testing.T) {
	dir := t.TempDir()
	content := `@comment{jabref-meta: databaseType:bibtex;}

@string{misq = "MIS Quarterly"}

@article{Rai2021,
  colrev_status = {md_prepared},
  abstract = {First line
@misc{Fake2020,
  colrev_status = {rev_included},
  still the abstract},
  note = "quoted {\{} value
colrev_status = {rev_excluded}",
  title = {Editorial},
}

@comment{
@article{Hidden2019,
  colrev_status = {rev_synthesized},
}
}
`
	d := New(dir, nil)
	if err := os.MkdirAll(filepath.Dir(d.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.Path(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	headers, err := d.ReadHeaders()
	if err != nil {
		t.Fatalf("ReadHeaders() error = %v", err)
	}
	want := []Header{{ID: "Rai2021", Status: state.MDPrepared}}
	if len(headers) != 1 || headers[0] != want[0] {
		t.Errorf("ReadHeaders() = %+v, want %+v", headers, want)
	}
}

func TestLoadRecords_Missing(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "none"), nil)
	recs, err := d.LoadRecords()
	if err != nil || recs.Len() != 0 {
		t.Errorf("LoadRecords() = %d, %v", recs.Len(), err)
	}
	headers, err := d.ReadHeaders()
	if err != nil || headers != nil {
		t.Errorf("ReadHeaders() = %v, %v", headers, err)
	}
}

func TestDiffAndCommit(t *testing.T) {
	if !git.Available() {
		t.Skip("git not available")
	}
	ctx := context.Background()
	root := t.TempDir()
	repo, err := git.Init(ctx, root, git.Identity{Name: "Test", Email: "test@example.org"})
	if err != nil {
		t.Fatal(err)
	}
	d := New(root, repo)

	recs := sampleRecords(t)
	if err := d.SaveRecords(recs); err != nil {
		t.Fatal(err)
	}
	changes, err := d.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(changes) != 2 || changes[0].Kind != "added" {
		t.Errorf("Diff() before commit = %+v", changes)
	}
	if _, err := d.Commit(ctx, "Load: 2 records"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	recs.Get("Rai2021").Status = state.MDNeedsManualPreparation
	recs.Delete("Staehr2010")
	if err := d.SaveRecords(recs); err != nil {
		t.Fatal(err)
	}
	changes, err = d.Diff(ctx)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]string{}
	for _, c := range changes {
		kinds[c.ID] = c.Kind
	}
	if kinds["Rai2021"] != "modified" || kinds["Staehr2010"] != "removed" {
		t.Errorf("Diff() = %+v", changes)
	}
}
