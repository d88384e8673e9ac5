package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/testutil"
)

func testEnv(t *testing.T) *endpoint.Env {
	t.Helper()
	return &endpoint.Env{Root: t.TempDir(), Logger: logging.Nop(), Reporter: logging.Discard()}
}

func included(id, title string) *record.Record {
	r := record.New(id, "article")
	r.UpdateField("title", title, "db.bib/"+id)
	r.UpdateField("author", "Staehr, Lorraine", "db.bib/"+id)
	r.UpdateField("year", "2010", "db.bib/"+id)
	r.UpdateField(record.KeyFile, "data/pdfs/"+id+".pdf", "pdf_get")
	r.UpdateField(record.KeyScreeningCriteria, "erp=in", "screen")
	return r
}

func TestToEntry(t *testing.T) {
	r := included("Staehr2010", "R&D in ERP_systems")
	r.UpdateField("journal", `Information Systems \& Management`, "db.bib/1")
	r.UpdateField("volume", record.UnknownValue, "db.bib/1")
	r.UpdateField(record.KeyDOI, "10.1111/a_b", "db.bib/1")

	e := ToEntry(r)
	assert.Equal(t, "Staehr2010", e.Key)
	assert.Equal(t, `R\&D in ERP\_systems`, e.Get("title"))
	assert.Equal(t, `Information Systems \& Management`, e.Get("journal"))
	assert.Equal(t, "10.1111/a_b", e.Get(record.KeyDOI))
	for _, key := range []string{"volume", record.KeyFile, record.KeyScreeningCriteria} {
		_, ok := e.Lookup(key)
		assert.False(t, ok, key)
	}
}

func TestBibliography(t *testing.T) {
	env := testEnv(t)
	b := &Bibliography{env: env, cfg: &BibliographyConfig{}}
	recs := []*record.Record{included("b", "Second"), included("a", "First")}

	require.NoError(t, b.UpdateData(context.Background(), recs, true))
	entries, err := bibtex.ParseFile(filepath.Join(env.Root, "data/data/references.bib"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "First", entries[0].Get("title"))

	matrix := endpoint.StatusMatrix{}
	require.NoError(t, b.UpdateRecordStatusMatrix(matrix, BibliographyID))
	assert.True(t, matrix.Complete("a", []string{BibliographyID}))
	assert.True(t, matrix.Complete("b", []string{BibliographyID}))
	assert.Contains(t, b.Advice().Msg, "2 records")
}

func TestBibliography_Filename(t *testing.T) {
	env := testEnv(t)
	b := &Bibliography{env: env, cfg: &BibliographyConfig{Filename: "paper/refs.bib"}}
	require.NoError(t, b.UpdateData(context.Background(), []*record.Record{included("a", "First")}, true))
	_, err := os.Stat(filepath.Join(env.Root, "paper/refs.bib"))
	assert.NoError(t, err)
}

func structuredFixture(t *testing.T) (*Structured, string) {
	env := testEnv(t)
	s := &Structured{env: env, cfg: &StructuredConfig{Fields: []FieldSpec{
		{Name: "method"}, {Name: "sample_size", DataType: "int"},
	}}}
	return s, filepath.Join(env.Root, "data/data/data.yaml")
}

func readRows(t *testing.T, path string) []Row {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rows []Row
	require.NoError(t, yaml.Unmarshal(data, &rows))
	return rows
}

func TestStructured_AddsRows(t *testing.T) {
	s, path := structuredFixture(t)
	recs := []*record.Record{included("b", "Second"), included("a", "First")}

	require.NoError(t, s.UpdateData(context.Background(), recs, true))
	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"ID": "a", "method": TODO, "sample_size": TODO}, rows[0])

	matrix := endpoint.StatusMatrix{}
	matrix.Set("a", StructuredID, false)
	matrix.Set("b", StructuredID, false)
	require.NoError(t, s.UpdateRecordStatusMatrix(matrix, StructuredID))
	assert.False(t, matrix.Complete("a", []string{StructuredID}))
	assert.Contains(t, s.Advice().Msg, "2 records")
}

func TestStructured_KeepsValues(t *testing.T) {
	s, path := structuredFixture(t)
	testutil.WriteFile(t, s.env.Root, "data/data/data.yaml",
		"- ID: a\n  method: case study\n  sample_size: \"12\"\n- ID: gone\n  method: survey\n")
	recs := []*record.Record{included("a", "First"), included("b", "Second")}

	require.NoError(t, s.UpdateData(context.Background(), recs, true))
	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "case study", rows[0]["method"])
	assert.Equal(t, TODO, rows[2]["sample_size"])

	matrix := endpoint.StatusMatrix{}
	matrix.Set("a", StructuredID, false)
	matrix.Set("b", StructuredID, false)
	require.NoError(t, s.UpdateRecordStatusMatrix(matrix, StructuredID))
	assert.True(t, matrix.Complete("a", []string{StructuredID}))
	assert.False(t, matrix.Complete("b", []string{StructuredID}))
	_, tracked := matrix["gone"]
	assert.False(t, tracked)
}

func TestStructured_InvalidSheet(t *testing.T) {
	s, _ := structuredFixture(t)
	testutil.WriteFile(t, s.env.Root, "data/data/data.yaml", "ID: [unclosed\n")
	assert.Error(t, s.UpdateData(context.Background(), nil, true))
}
