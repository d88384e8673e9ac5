package sources

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/s2"
	"github.com/matsen/litreview/internal/settings"
)

// SemanticScholarID is the identifier of the Semantic Scholar API source.
const SemanticScholarID = "lrv.semanticscholar"

// defaultMaxResults caps a search when max_results is not configured.
const defaultMaxResults = 200

// SemanticScholar runs a keyword search and stores the results in its
// search file. Search parameters: query (required), max_results.
type SemanticScholar struct {
	fileSource
}

// NewSemanticScholar constructs the source for cfg.
func NewSemanticScholar(env *endpoint.Env, cfg *endpoint.SourceConfig) (*SemanticScholar, error) {
	if cfg.Param("query") == "" {
		return nil, fmt.Errorf("%s: search_parameters.query is required", SemanticScholarID)
	}
	return &SemanticScholar{fileSource{id: SemanticScholarID, env: env, cfg: cfg}}, nil
}

func (s *SemanticScholar) maxResults() int {
	if v, ok := s.cfg.SearchParameters["max_results"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultMaxResults
}

// Search queries the API. New papers are appended to the search file;
// with rerun set, entries of papers found again are refreshed too.
func (s *SemanticScholar) Search(ctx context.Context, rerun bool) error {
	if s.env.Papers == nil {
		return &review.ServiceError{Service: "semanticscholar", Err: errors.New("no API client configured")}
	}
	papers, err := s.env.Papers.SearchAll(ctx, s.cfg.Param("query"), s.maxResults())
	if err != nil {
		if s2.IsServiceNotAvailable(err) {
			return &review.ServiceError{Service: "semanticscholar", Err: err}
		}
		return err
	}

	target := s.env.Path(s.cfg.Filename)
	existing, err := bibtex.ParseFile(target)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	pos := make(map[string]int, len(existing))
	for i, e := range existing {
		pos[e.Key] = i
	}
	added := 0
	for _, p := range papers {
		if p.PaperID == "" {
			continue
		}
		entry := dataset.PlainEntry(s2.ToRecord(p, p.PaperID, SemanticScholarID))
		i, seen := pos[p.PaperID]
		switch {
		case !seen:
			pos[p.PaperID] = len(existing)
			existing = append(existing, entry)
			added++
		case rerun:
			existing[i] = entry
		}
	}
	s.env.Logger.Info("semantic scholar search", "query", s.cfg.Param("query"), "results", len(papers), "new", added)
	return bibtex.WriteFile(target, existing, bibtex.StyleCompact)
}

func (s *SemanticScholar) Records(context.Context) iter.Seq2[*record.Record, error] {
	return readBib(s.env.Path(s.cfg.Filename))
}

func (s *SemanticScholar) LoadFixes(recs []*record.Record) []*record.Record {
	for _, r := range recs {
		fixCommon(r)
	}
	return recs
}

// SemanticScholarManifest registers the Semantic Scholar source.
func SemanticScholarManifest() endpoint.Manifest {
	return endpoint.Manifest{
		ID:   SemanticScholarID,
		Type: endpoint.TypeSearchSource,
		Settings: func() any {
			return &endpoint.SourceConfig{SearchType: settings.SearchTypeDB}
		},
		New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
			return NewSemanticScholar(env, cfg.(*endpoint.SourceConfig))
		},
		APISearchSupported: true,
		HeuristicStatus:    endpoint.HeuristicTODO,
	}
}
