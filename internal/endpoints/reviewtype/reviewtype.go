// Package reviewtype implements the built-in review types. A review type
// fills the endpoint lists of new settings.
package reviewtype

import (
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/endpoints/data"
	"github.com/matsen/litreview/internal/endpoints/dedupe"
	"github.com/matsen/litreview/internal/endpoints/manual"
	"github.com/matsen/litreview/internal/endpoints/pdfs"
	"github.com/matsen/litreview/internal/endpoints/prep"
	"github.com/matsen/litreview/internal/endpoints/screen"
	"github.com/matsen/litreview/internal/settings"
)

// Review type identifiers.
const (
	LiteratureReviewID = "lrv.literature_review"
	ScopingReviewID    = "lrv.scoping_review"
)

func ep(id string, kv ...any) settings.EndpointSettings {
	e := settings.EndpointSettings{"endpoint": id}
	for i := 0; i+1 < len(kv); i += 2 {
		e[kv[i].(string)] = kv[i+1]
	}
	return e
}

func eps(ids ...string) []settings.EndpointSettings {
	out := make([]settings.EndpointSettings, len(ids))
	for i, id := range ids {
		out[i] = ep(id)
	}
	return out
}

// fill sets *dst to def when it holds no endpoint.
func fill(dst *[]settings.EndpointSettings, def []settings.EndpointSettings) {
	if len(*dst) == 0 {
		*dst = def
	}
}

// applyCommon fills the lists shared by every review type.
func applyCommon(s *settings.Settings) {
	if len(s.Prep.PrepRounds) == 0 {
		s.Prep.PrepRounds = []settings.PrepRound{{
			Name:                "prep",
			SimilarityThreshold: 0.8,
			PrepPackageEndpoints: eps(
				prep.SourceSpecificID,
				prep.NormalizeID,
				prep.ComplementaryID,
				prep.LocalIndexID,
				prep.SemanticScholarID,
			),
		}}
	}
	fill(&s.Prep.PrepManPackageEndpoints, eps(manual.PrepManID))
	fill(&s.Dedupe.DedupePackageEndpoints, eps(dedupe.ColrevIDID, dedupe.SimpleID))
	fill(&s.PDFGet.PDFGetPackageEndpoints, eps(pdfs.LocalIndexID, pdfs.DirID))
	fill(&s.PDFGet.PDFGetManPackageEndpoints, eps(manual.PDFGetManID))
	fill(&s.PDFPrep.PDFPrepPackageEndpoints, eps(pdfs.CheckID, pdfs.MetadataID))
	fill(&s.PDFPrep.PDFPrepManPackageEndpoints, eps(manual.PDFPrepManID))
}

// LiteratureReview is the default review type: file-based prescreen and
// screen decisions and a bibliography as the synthesis output.
type LiteratureReview struct{}

func (LiteratureReview) ID() string { return LiteratureReviewID }

func (LiteratureReview) ApplyDefaults(s *settings.Settings) {
	applyCommon(s)
	fill(&s.Prescreen.PrescreenPackageEndpoints, eps(screen.DecisionFileID))
	fill(&s.Screen.ScreenPackageEndpoints, eps(screen.DecisionFileID))
	fill(&s.Data.DataPackageEndpoints, eps(data.BibliographyID))
}

// Charting fields of the scoping review extraction sheet.
var scopingFields = []map[string]any{
	{"name": "population", "explanation": "who the study is about"},
	{"name": "concept", "explanation": "the phenomenon of interest"},
	{"name": "context", "explanation": "setting of the study"},
	{"name": "study_design"},
}

// ScopingReview maps a field: a scope prescreen ahead of the decision
// file, screening by population, concept and context criteria, and a
// charting sheet.
type ScopingReview struct{}

func (ScopingReview) ID() string { return ScopingReviewID }

func (ScopingReview) ApplyDefaults(s *settings.Settings) {
	applyCommon(s)
	s.PDFGet.PDFRequiredForScreenAndSynthesis = false
	fill(&s.Prescreen.PrescreenPackageEndpoints, []settings.EndpointSettings{
		ep(screen.ScopeID, "exclude_complementary_materials", true),
		ep(screen.DecisionFileID),
	})
	if len(s.Screen.Criteria) == 0 {
		s.Screen.Criteria = map[string]settings.ScreenCriterion{
			"population": {Explanation: "The study addresses the population of interest", CriterionType: settings.CriterionInclusion},
			"concept":    {Explanation: "The study addresses the concept of interest", CriterionType: settings.CriterionInclusion},
			"context":    {Explanation: "The study is set in the context of interest", CriterionType: settings.CriterionInclusion},
		}
	}
	fill(&s.Screen.ScreenPackageEndpoints, eps(screen.CriteriaFileID))
	fill(&s.Data.DataPackageEndpoints, []settings.EndpointSettings{
		ep(data.BibliographyID),
		ep(data.StructuredID, "fields", scopingFields),
	})
}

// Manifests returns the manifests of the review types.
func Manifests() []endpoint.Manifest {
	return []endpoint.Manifest{
		{
			ID:          LiteratureReviewID,
			Type:        endpoint.TypeReviewType,
			New:         func(*endpoint.Env, any) (endpoint.Endpoint, error) { return LiteratureReview{}, nil },
			CISupported: true,
		},
		{
			ID:          ScopingReviewID,
			Type:        endpoint.TypeReviewType,
			New:         func(*endpoint.Env, any) (endpoint.Endpoint, error) { return ScopingReview{}, nil },
			CISupported: true,
		},
	}
}
