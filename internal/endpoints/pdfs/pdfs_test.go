package pdfs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/localindex"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/testutil"
)

func testEnv(t *testing.T) *endpoint.Env {
	t.Helper()
	return &endpoint.Env{Root: t.TempDir(), Logger: logging.Nop(), Reporter: logging.Discard()}
}

func staehr() *record.Record {
	r := record.New("Staehr2010", "article")
	r.UpdateField("title", "Understanding managerial agency", "db.bib/1")
	r.UpdateField("author", "Staehr, Lorraine", "db.bib/1")
	r.UpdateField(record.KeyDOI, "10.1111/ISJ.1", "db.bib/1")
	return r
}

func defects(r *record.Record) []string {
	if p := r.DataProvenance[record.KeyFile]; p != nil {
		return p.Notes
	}
	return nil
}

func TestDir_ByID(t *testing.T) {
	env := testEnv(t)
	testutil.WritePDF(t, filepath.Join(env.Root, "data/pdfs"), "Staehr2010.pdf", "x")
	d := &Dir{env: env, cfg: &DirConfig{}}

	out, err := d.GetPDF(context.Background(), staehr())
	require.NoError(t, err)
	assert.Equal(t, "data/pdfs/Staehr2010.pdf", out.Get(record.KeyFile))
	assert.Equal(t, DirID, out.Provenance(record.KeyFile).Source)
}

func TestDir_ByDOI(t *testing.T) {
	env := testEnv(t)
	external := t.TempDir()
	testutil.WritePDF(t, external, "10.1111_isj.1.pdf", "x")
	d := &Dir{env: env, cfg: &DirConfig{Path: external}}

	out, err := d.GetPDF(context.Background(), staehr())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(external, "10.1111_isj.1.pdf"), out.Get(record.KeyFile))
}

func TestDir_NotFound(t *testing.T) {
	d := &Dir{env: testEnv(t), cfg: &DirConfig{}}
	out, err := d.GetPDF(context.Background(), staehr())
	require.NoError(t, err)
	assert.False(t, out.Has(record.KeyFile))
}

func TestLocalIndex(t *testing.T) {
	env := testEnv(t)
	repo := t.TempDir()
	testutil.WritePDF(t, filepath.Join(repo, "data/pdfs"), "a.pdf", "x")

	indexed := staehr()
	indexed.UpdateField(record.KeyFile, "data/pdfs/a.pdf", "pdf_get")
	indexed.ColrevIDs = []string{"colrev_id1:|a|isj|20|3|2010|staehr|understanding"}

	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := localindex.Open(path)
	require.NoError(t, err)
	_, err = idx.Build(repo, "fp", []*record.Record{indexed})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	env.LocalIndex = idx

	r := staehr()
	r.ColrevIDs = indexed.ColrevIDs
	out, err := (&LocalIndex{env: env}).GetPDF(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo, "data/pdfs/a.pdf"), out.Get(record.KeyFile))

	other := staehr()
	other.ColrevIDs = []string{"colrev_id1:|a|other"}
	out, err = (&LocalIndex{env: env}).GetPDF(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, out.Has(record.KeyFile))
}

func TestExpectedPages(t *testing.T) {
	assert.Equal(t, 26, expectedPages("213--238"))
	assert.Equal(t, 1, expectedPages("5-5"))
	assert.Equal(t, 0, expectedPages("e1234"))
	assert.Equal(t, 0, expectedPages("20--10"))
}

func TestCheck(t *testing.T) {
	env := testEnv(t)
	testutil.WritePDF(t, filepath.Join(env.Root, "data/pdfs"), "ok.pdf", "Some text")
	testutil.WriteFile(t, env.Root, "data/pdfs/broken.pdf", "not a pdf")
	c := &Check{env: env}

	tests := []struct {
		file, pages string
		want        []string
	}{
		{"data/pdfs/ok.pdf", "", nil},
		{"data/pdfs/ok.pdf", "1--12", []string{DefectIncomplete}},
		{"data/pdfs/broken.pdf", "", []string{DefectInvalid}},
		{"data/pdfs/missing.pdf", "", []string{DefectMissing}},
	}
	for _, tt := range tests {
		r := staehr()
		r.UpdateField(record.KeyFile, tt.file, "pdf_get")
		if tt.pages != "" {
			r.UpdateField("pages", tt.pages, "db.bib/1")
		}
		out, err := c.PrepPDF(context.Background(), r, 10)
		require.NoError(t, err)
		assert.Equal(t, tt.want, defects(out), tt.file)
	}
}

func TestMetadata(t *testing.T) {
	env := testEnv(t)
	dir := filepath.Join(env.Root, "data/pdfs")
	testutil.WritePDF(t, dir, "match.pdf", "Understanding managerial agency", "Lorraine Staehr", "doi:10.1111/isj.1")
	testutil.WritePDF(t, dir, "other.pdf", "A study of cats", "John Doe", "doi:10.9999/other.2")
	testutil.WritePDF(t, dir, "blank.pdf")
	m := &Metadata{env: env, cfg: &MetadataConfig{}}

	tests := []struct {
		file string
		want []string
	}{
		{"data/pdfs/match.pdf", nil},
		{"data/pdfs/other.pdf", []string{DefectAuthor, DefectDOI, DefectTitle}},
		{"data/pdfs/blank.pdf", []string{DefectNoText}},
	}
	for _, tt := range tests {
		r := staehr()
		r.UpdateField(record.KeyFile, tt.file, "pdf_get")
		out, err := m.PrepPDF(context.Background(), r, 10)
		require.NoError(t, err)
		assert.Equal(t, tt.want, defects(out), tt.file)
	}
}

func TestTitleCoverage(t *testing.T) {
	assert.Equal(t, 1.0, titleCoverage("understanding-managerial-agency", "understanding-managerial-agency-in-erp"))
	assert.InDelta(t, 2.0/3.0, titleCoverage("understanding-managerial-agency", "understanding-agency"), 1e-9)
	assert.Equal(t, 1.0, titleCoverage("a-of", "anything"))
}
