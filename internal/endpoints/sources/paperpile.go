package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// PaperpileID is the identifier of the Paperpile JSON source.
const PaperpileID = "lrv.paperpile"

// FlexibleString can unmarshal from either string or number JSON values.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return string(f)
}

// PaperpileEntry is a single entry of a Paperpile JSON export.
type PaperpileEntry struct {
	ID        string         `json:"_id"`
	Citekey   string         `json:"citekey"`
	PubType   string         `json:"pubtype"`
	DOI       string         `json:"doi"`
	Title     string         `json:"title"`
	Abstract  string         `json:"abstract"`
	Journal   string         `json:"journal"`
	Volume    FlexibleString `json:"volume"`
	Issue     FlexibleString `json:"issue"`
	Pages     FlexibleString `json:"pages"`
	Published struct {
		Year  FlexibleString `json:"year"`
		Month FlexibleString `json:"month"`
	} `json:"published"`
	Author []struct {
		First string `json:"first"`
		Last  string `json:"last"`
		ORCID string `json:"orcid"`
	} `json:"author"`
	Attachments []struct {
		ID         string `json:"_id"`
		ArticlePDF int    `json:"article_pdf"` // 1 = main PDF, 0 = supplement
		Filename   string `json:"filename"`
	} `json:"attachments"`
}

// Paperpile reads a Paperpile JSON export. The search parameter pdf_root,
// when set, is joined with the main attachment's filename to fill file.
type Paperpile struct {
	fileSource
}

// NewPaperpile constructs the source for cfg.
func NewPaperpile(env *endpoint.Env, cfg *endpoint.SourceConfig) *Paperpile {
	return &Paperpile{fileSource{id: PaperpileID, env: env, cfg: cfg}}
}

// ParsePaperpile converts a Paperpile JSON export into records. Entries
// that cannot be converted are reported and skipped.
func ParsePaperpile(data []byte, pdfRoot string) ([]*record.Record, []error) {
	var entries []PaperpileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, []error{fmt.Errorf("parsing Paperpile JSON: %w", err)}
	}

	var recs []*record.Record
	var errs []error
	for i, entry := range entries {
		r, err := paperpileEntryToRecord(entry, pdfRoot)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, entry.Citekey, err))
			continue
		}
		recs = append(recs, r)
	}
	return recs, errs
}

func paperpileEntryToRecord(entry PaperpileEntry, pdfRoot string) (*record.Record, error) {
	if entry.Title == "" {
		return nil, fmt.Errorf("missing required field 'title'")
	}

	// Use citekey as ID, falling back to the Paperpile ID.
	id := entry.Citekey
	if id == "" {
		id = entry.ID
	}
	if id == "" {
		return nil, fmt.Errorf("entry has neither citekey nor _id")
	}

	entryType := "misc"
	switch {
	case entry.PubType == "JOUR" || (entry.PubType == "" && entry.Journal != ""):
		entryType = "article"
	case entry.PubType == "CONF":
		entryType = "inproceedings"
	case entry.PubType == "BOOK":
		entryType = "book"
	case entry.PubType == "THES":
		entryType = "phdthesis"
	}
	r := record.New(id, entryType)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			r.Set(key, value)
		}
	}

	authors := make([]string, 0, len(entry.Author))
	for _, a := range entry.Author {
		switch {
		case a.Last != "" && a.First != "":
			authors = append(authors, a.Last+", "+a.First)
		case a.Last != "":
			authors = append(authors, a.Last)
		}
	}
	set("title", entry.Title)
	set("author", strings.Join(authors, " and "))
	if y := entry.Published.Year.String(); y != "" {
		if _, err := strconv.Atoi(y); err != nil {
			return nil, fmt.Errorf("invalid year: %s", y)
		}
		set("year", y)
	}
	if entryType == "inproceedings" {
		set("booktitle", entry.Journal)
	} else {
		set("journal", entry.Journal)
	}
	set("volume", entry.Volume.String())
	set("number", entry.Issue.String())
	set("pages", entry.Pages.String())
	if m, err := strconv.Atoi(entry.Published.Month.String()); err == nil && m >= 1 && m <= 12 {
		set("month", strconv.Itoa(m))
	}
	set(record.KeyDOI, entry.DOI)
	set("abstract", entry.Abstract)
	set("paperpile_id", entry.ID)

	for _, att := range entry.Attachments {
		if att.ArticlePDF == 1 && att.Filename != "" && pdfRoot != "" {
			set(record.KeyFile, filepath.Join(pdfRoot, att.Filename))
			break
		}
	}
	return r, nil
}

func (s *Paperpile) Records(context.Context) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		data, err := os.ReadFile(s.env.Path(s.cfg.Filename))
		if err != nil {
			yield(nil, err)
			return
		}
		recs, errs := ParsePaperpile(data, s.cfg.Param("pdf_root"))
		for _, err := range errs {
			s.env.Logger.Warn("skipping paperpile entry", "file", s.cfg.Filename, "error", err)
		}
		if len(recs) == 0 && len(errs) > 0 {
			yield(nil, errs[0])
			return
		}
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Paperpile) LoadFixes(recs []*record.Record) []*record.Record {
	for _, r := range recs {
		fixCommon(r)
	}
	return recs
}

// paperpileHeuristic recognizes Paperpile JSON exports by their entry keys.
func paperpileHeuristic(filename string, data []byte) float64 {
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return 0
	}
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.HasPrefix(bytes.TrimSpace(head), []byte("[")) &&
		bytes.Contains(head, []byte(`"_id"`)) && bytes.Contains(head, []byte(`"citekey"`)) {
		return 0.9
	}
	return 0
}

// PaperpileManifest registers the Paperpile source.
func PaperpileManifest() endpoint.Manifest {
	return endpoint.Manifest{
		ID:       PaperpileID,
		Type:     endpoint.TypeSearchSource,
		Settings: func() any { return &endpoint.SourceConfig{SearchType: settings.SearchTypeDB} },
		New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
			return NewPaperpile(env, cfg.(*endpoint.SourceConfig)), nil
		},
		CISupported:     true,
		HeuristicStatus: endpoint.HeuristicSupported,
		Heuristic:       paperpileHeuristic,
	}
}
