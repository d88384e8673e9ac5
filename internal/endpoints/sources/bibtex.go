// Package sources implements the built-in search sources: BibTeX files,
// Paperpile exports, directories of PDFs, and Semantic Scholar searches.
package sources

import (
	"bytes"
	"context"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// BibTeXID is the identifier of the generic BibTeX source.
const BibTeXID = "lrv.bibtex"

// fileSource is the part every file-backed source shares.
type fileSource struct {
	id  string
	env *endpoint.Env
	cfg *endpoint.SourceConfig
}

func (s *fileSource) ID() string       { return s.id }
func (s *fileSource) Filename() string { return s.cfg.Filename }

func (s *fileSource) Search(context.Context, bool) error { return nil }

func (s *fileSource) Prepare(_ context.Context, r *record.Record) (*record.Record, error) {
	return r, nil
}

// readBib streams the entries of a BibTeX file as plain records.
func readBib(path string) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()
		for e, err := range bibtex.NewReader(f).All() {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(dataset.FromPlainEntry(e), nil) {
				return
			}
		}
	}
}

// BibTeX reads a .bib file exported from a database.
type BibTeX struct {
	fileSource
}

// NewBibTeX constructs the source for cfg.
func NewBibTeX(env *endpoint.Env, cfg *endpoint.SourceConfig) *BibTeX {
	return &BibTeX{fileSource{id: BibTeXID, env: env, cfg: cfg}}
}

func (s *BibTeX) Records(context.Context) iter.Seq2[*record.Record, error] {
	return readBib(s.env.Path(s.cfg.Filename))
}

// fieldAliases map biblatex and database-specific names to BibTeX names.
var fieldAliases = map[string]string{
	"journaltitle": "journal",
	"issue":        "number",
	"location":     "address",
	"keyword":      "keywords",
}

var yearPattern = regexp.MustCompile(`\b(1[5-9]|20)\d{2}\b`)

// LoadFixes renames alias fields, derives a missing year from date, and
// maps unknown entrytypes to misc.
func (s *BibTeX) LoadFixes(recs []*record.Record) []*record.Record {
	for _, r := range recs {
		fixCommon(r)
	}
	return recs
}

func fixCommon(r *record.Record) {
	for from, to := range fieldAliases {
		if r.Has(from) && !r.Has(to) {
			r.Set(to, r.Get(from))
		}
		if r.Has(from) {
			r.RemoveField(from, false, "")
		}
	}
	if !r.HasValue("year") && r.HasValue("date") {
		if y := yearPattern.FindString(r.Get("date")); y != "" {
			r.Set("year", y)
		}
	}
	switch r.EntryType {
	case "conference":
		r.EntryType = "inproceedings"
	case "thesis":
		r.EntryType = "phdthesis"
	case "mastersthesis":
		r.EntryType = "masterthesis"
	case "report":
		r.EntryType = "techreport"
	}
	if !record.ValidEntryType(r.EntryType) {
		r.EntryType = "misc"
	}
}

// bibHeuristic recognizes BibTeX files. Files with a recognizable export
// header score higher than bare ones.
func bibHeuristic(filename string, data []byte) float64 {
	if !strings.EqualFold(filepath.Ext(filename), ".bib") {
		return 0
	}
	if !bytes.Contains(data, []byte("@")) {
		return 0.1
	}
	return 0.5
}

// BibTeXManifest registers the generic BibTeX source.
func BibTeXManifest() endpoint.Manifest {
	return endpoint.Manifest{
		ID:       BibTeXID,
		Type:     endpoint.TypeSearchSource,
		Settings: func() any { return &endpoint.SourceConfig{SearchType: settings.SearchTypeDB} },
		New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
			return NewBibTeX(env, cfg.(*endpoint.SourceConfig)), nil
		},
		CISupported:     true,
		HeuristicStatus: endpoint.HeuristicSupported,
		Heuristic:       bibHeuristic,
	}
}
