// Package pdfs implements the built-in pdf_get and pdf_prep endpoints.
package pdfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/pdf"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// Endpoint identifiers.
const (
	DirID        = "lrv.pdf_dir"
	LocalIndexID = "lrv.local_index"
	CheckID      = "lrv.pdf_check"
	MetadataID   = "lrv.pdf_metadata_validation"
)

// Defect codes noted on the file provenance.
const (
	DefectMissing    = "pdf-file-missing"
	DefectInvalid    = "invalid-pdf"
	DefectNoPages    = "no-pages"
	DefectIncomplete = "pdf-incomplete"
	DefectNoText     = "no-text-in-pdf"
	DefectTitle      = "title-not-in-pdf"
	DefectAuthor     = "author-not-in-pdf"
	DefectDOI        = "doi-mismatch"
)

// noteDefect adds code to the file provenance of r.
func noteDefect(r *record.Record, source, code string) {
	p := r.DataProvenance[record.KeyFile]
	if p == nil {
		p = record.NewProvenance(source, "")
		r.DataProvenance[record.KeyFile] = p
	}
	p.AddNote(code)
}

// DirConfig is the settings struct of lrv.pdf_dir.
type DirConfig struct {
	Path string `json:"path,omitempty"`
}

// Dir finds PDFs in a directory by record ID or by a name derived from the
// DOI ("10.1111/isj.1" becomes "10.1111_isj.1.pdf").
type Dir struct {
	env *endpoint.Env
	cfg *DirConfig
}

func (d *Dir) ID() string { return DirID }

func (d *Dir) dir() string {
	if d.cfg != nil && d.cfg.Path != "" {
		return d.env.Path(d.cfg.Path)
	}
	return d.env.Path(settings.PDFDir)
}

// candidates returns the file names tried for r, in order.
func candidates(r *record.Record) []string {
	names := []string{r.ID + ".pdf", strings.ToLower(r.ID) + ".pdf"}
	if doi := bibtex.NormalizeDOI(r.Get(record.KeyDOI)); doi != "" {
		name := strings.ReplaceAll(doi, "/", "_")
		names = append(names, name+".pdf", strings.ToUpper(name)+".pdf")
	}
	return names
}

func (d *Dir) GetPDF(ctx context.Context, r *record.Record) (*record.Record, error) {
	dir := d.dir()
	for _, name := range candidates(r) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		r.UpdateField(record.KeyFile, d.relative(full), DirID)
		return r, nil
	}
	return r, nil
}

// relative returns path relative to the review root when it lies inside.
func (d *Dir) relative(path string) string {
	rel, err := filepath.Rel(d.env.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// LocalIndex takes the PDF of an indexed record with a shared colrev_id.
type LocalIndex struct {
	env *endpoint.Env
}

func (l *LocalIndex) ID() string { return LocalIndexID }

func (l *LocalIndex) GetPDF(ctx context.Context, r *record.Record) (*record.Record, error) {
	if l.env.LocalIndex == nil {
		return r, nil
	}
	for _, cid := range r.ColrevIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := l.env.LocalIndex.File(cid)
		if err != nil {
			return nil, err
		}
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			l.env.Logger.Debug("indexed pdf not found", "id", r.ID, "file", file)
			continue
		}
		r.UpdateField(record.KeyFile, file, LocalIndexID)
		return r, nil
	}
	return r, nil
}

// Check verifies that the file exists, parses, and has pages. When the
// record gives a page range, a PDF with fewer pages is noted incomplete.
type Check struct {
	env *endpoint.Env
}

func (c *Check) ID() string { return CheckID }

var pageRange = regexp.MustCompile(`^\s*(\d+)\s*-+\s*(\d+)\s*$`)

// expectedPages returns the page count implied by the pages field, or 0.
func expectedPages(pages string) int {
	m := pageRange.FindStringSubmatch(pages)
	if m == nil {
		return 0
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if to < from {
		return 0
	}
	return to - from + 1
}

func (c *Check) PrepPDF(_ context.Context, r *record.Record, _ int) (*record.Record, error) {
	path := c.env.Path(r.Get(record.KeyFile))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		noteDefect(r, CheckID, DefectMissing)
		return r, nil
	}
	doc, err := pdf.Open(path)
	if err != nil {
		c.env.Logger.Debug("pdf does not parse", "id", r.ID, "error", err)
		noteDefect(r, CheckID, DefectInvalid)
		return r, nil
	}
	defer doc.Close()

	n := doc.NumPages()
	if n == 0 {
		noteDefect(r, CheckID, DefectNoPages)
		return r, nil
	}
	if want := expectedPages(r.Get("pages")); want > 0 && n < want {
		noteDefect(r, CheckID, DefectIncomplete)
	}
	return r, nil
}

// MetadataConfig is the settings struct of lrv.pdf_metadata_validation.
type MetadataConfig struct {
	// TitleCoverage is the share of title words that must occur in the
	// text of the first pages.
	TitleCoverage float64 `json:"title_coverage,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// DefaultTitleCoverage applies when no coverage is configured.
const DefaultTitleCoverage = 0.8

// Metadata compares the first pages of the PDF with the record: the title
// words and the first author must occur in the text, and a DOI printed in
// it must equal the record's.
type Metadata struct {
	env *endpoint.Env
	cfg *MetadataConfig
}

func (m *Metadata) ID() string { return MetadataID }

func (m *Metadata) coverage() float64 {
	if m.cfg != nil && m.cfg.TitleCoverage > 0 {
		return m.cfg.TitleCoverage
	}
	return DefaultTitleCoverage
}

// titleCoverage returns the share of title words of three or more letters
// found in text. Both arguments are robust representations.
func titleCoverage(title, text string) float64 {
	var words, found int
	for _, w := range strings.Split(title, "-") {
		if len(w) < 3 {
			continue
		}
		words++
		if strings.Contains(text, w) {
			found++
		}
	}
	if words == 0 {
		return 1
	}
	return float64(found) / float64(words)
}

func (m *Metadata) PrepPDF(_ context.Context, r *record.Record, _ int) (*record.Record, error) {
	doc, err := pdf.Open(m.env.Path(r.Get(record.KeyFile)))
	if err != nil {
		noteDefect(r, MetadataID, DefectInvalid)
		return r, nil
	}
	raw := doc.Text(pdf.DefaultTextPages)
	doc.Close()

	text := identifier.RobustRep(raw)
	if identifier.LetterCount(raw) == 0 {
		noteDefect(r, MetadataID, DefectNoText)
		return r, nil
	}
	if title := identifier.RobustRep(r.Get("title")); title != "" && titleCoverage(title, text) < m.coverage() {
		noteDefect(r, MetadataID, DefectTitle)
	}
	if last := identifier.RobustRep(identifier.FirstAuthorLast(r.Get("author"))); last != "" && !strings.Contains(text, last) {
		noteDefect(r, MetadataID, DefectAuthor)
	}
	if doi := bibtex.NormalizeDOI(r.Get(record.KeyDOI)); doi != "" {
		if found := bibtex.NormalizeDOI(pdf.FindDOI(raw)); found != "" && found != doi {
			noteDefect(r, MetadataID, DefectDOI)
		}
	}
	return r, nil
}

// Manifests returns the manifests of the PDF endpoints.
func Manifests() []endpoint.Manifest {
	return []endpoint.Manifest{
		{
			ID:       DirID,
			Type:     endpoint.TypePDFGet,
			Settings: func() any { return &DirConfig{} },
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &Dir{env: env, cfg: cfg.(*DirConfig)}, nil
			},
			CISupported: true,
		},
		{
			ID:          LocalIndexID,
			Type:        endpoint.TypePDFGet,
			New:         func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &LocalIndex{env: env}, nil },
			CISupported: true,
		},
		{
			ID:          CheckID,
			Type:        endpoint.TypePDFPrep,
			New:         func(env *endpoint.Env, _ any) (endpoint.Endpoint, error) { return &Check{env: env}, nil },
			CISupported: true,
		},
		{
			ID:       MetadataID,
			Type:     endpoint.TypePDFPrep,
			Settings: func() any { return &MetadataConfig{} },
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &Metadata{env: env, cfg: cfg.(*MetadataConfig)}, nil
			},
			CISupported:    true,
			RenderingHeavy: true,
		},
	}
}
