package sources

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/pdf"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// PDFsDirID is the identifier of the PDF directory source.
const PDFsDirID = "lrv.pdfs_dir"

// PDFsDir scans a directory of PDFs and keeps one entry per file in its
// search file. The search parameter scan_path names the directory,
// defaulting to the PDF directory of the repository.
type PDFsDir struct {
	fileSource
}

// NewPDFsDir constructs the source for cfg.
func NewPDFsDir(env *endpoint.Env, cfg *endpoint.SourceConfig) *PDFsDir {
	return &PDFsDir{fileSource{id: PDFsDirID, env: env, cfg: cfg}}
}

func (s *PDFsDir) scanPath() string {
	if p := s.cfg.Param("scan_path"); p != "" {
		return s.env.Path(p)
	}
	return s.env.Path(settings.PDFDir)
}

// Search adds an entry for every PDF not yet listed in the search file.
// With rerun set, existing entries are extracted again.
func (s *PDFsDir) Search(ctx context.Context, rerun bool) error {
	target := s.env.Path(s.cfg.Filename)
	var existing []*bibtex.Entry
	if !rerun {
		entries, err := bibtex.ParseFile(target)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		existing = entries
	}
	known := make(map[string]bool, len(existing))
	ids := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.Get(record.KeyFile)] = true
		ids[e.Key] = true
	}

	// Files placed under their record's ID by pdf_get are already known.
	recs, err := dataset.New(s.env.Root, nil).LoadRecords()
	if err != nil {
		return err
	}
	for _, r := range recs.All() {
		if f := r.Get(record.KeyFile); f != "" {
			known[f] = true
		}
	}

	root := s.scanPath()
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") && !strings.HasSuffix(path, "_backup.pdf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	sort.Strings(files)

	added := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.env.Root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if known[rel] {
			continue
		}
		r := s.extract(path, rel)
		base := r.ID
		for i := 2; ids[r.ID]; i++ {
			r.ID = base + "_" + strconv.Itoa(i)
		}
		ids[r.ID] = true
		existing = append(existing, dataset.PlainEntry(r))
		added++
	}
	s.env.Logger.Info("scanned pdf directory", "path", root, "new", added)
	if added == 0 && !rerun {
		if _, err := os.Stat(target); err == nil {
			return nil
		}
	}
	return bibtex.WriteFile(target, existing, bibtex.StyleCompact)
}

var nonIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// extract builds an entry from the file's first pages. Unreadable PDFs
// still get an entry so that prep can route them to manual work.
func (s *PDFsDir) extract(path, rel string) *record.Record {
	id := nonIDChars.ReplaceAllString(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), "_")
	if id == "" {
		id = "pdf"
	}
	r := record.New(id, "misc")
	r.Set(record.KeyFile, rel)
	doc, err := pdf.Open(path)
	if err != nil {
		s.env.Logger.Warn("cannot read pdf", "file", rel, "error", err)
		return r
	}
	defer doc.Close()
	text := doc.Text(pdf.DefaultTextPages)
	if doi := pdf.FindDOI(text); doi != "" {
		r.Set(record.KeyDOI, strings.ToUpper(doi))
	}
	if title, err := pdf.ExtractTitle(path); err == nil && title != "" {
		r.Set("title", title)
	}
	return r
}

func (s *PDFsDir) Records(context.Context) iter.Seq2[*record.Record, error] {
	return readBib(s.env.Path(s.cfg.Filename))
}

func (s *PDFsDir) LoadFixes(recs []*record.Record) []*record.Record {
	for _, r := range recs {
		fixCommon(r)
	}
	return recs
}

// PDFsDirManifest registers the PDF directory source.
func PDFsDirManifest() endpoint.Manifest {
	return endpoint.Manifest{
		ID:       PDFsDirID,
		Type:     endpoint.TypeSearchSource,
		Settings: func() any { return &endpoint.SourceConfig{SearchType: settings.SearchTypePDFs} },
		New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
			return NewPDFsDir(env, cfg.(*endpoint.SourceConfig)), nil
		},
		CISupported:     true,
		HeuristicStatus: endpoint.HeuristicTODO,
		RenderingHeavy:  true,
	}
}
