// Package prep implements the built-in prep endpoints.
package prep

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// Endpoint identifiers.
const (
	SourceSpecificID = "lrv.source_specific_prep"
	NormalizeID      = "lrv.field_normalization"
	ComplementaryID  = "lrv.exclude_complementary_materials"
)

// SourceSpecific hands each record to the search sources it came from.
type SourceSpecific struct {
	env *endpoint.Env
}

func (p *SourceSpecific) ID() string { return SourceSpecificID }

func (p *SourceSpecific) Prepare(ctx context.Context, r *record.Record) (*record.Record, error) {
	for _, origin := range r.OriginSources() {
		for _, src := range p.env.Sources {
			if filepath.Base(src.Filename()) != origin {
				continue
			}
			out, err := src.Prepare(ctx, r)
			if err != nil {
				return nil, err
			}
			if out != nil {
				r = out
			}
		}
	}
	return r, nil
}

// Normalize cleans field formats: page ranges, DOIs, stray whitespace and
// trailing dots, and years embedded in longer strings.
type Normalize struct{}

func (Normalize) ID() string { return NormalizeID }

var (
	pageRangePattern = regexp.MustCompile(`^\s*(\w+)\s*(?:-+|–|—)\s*(\w+)\s*$`)
	yearPattern      = regexp.MustCompile(`\b(1[5-9]|20)\d{2}\b`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// trimmedFields lose surrounding whitespace, inner whitespace runs, and
// trailing dots.
var trimmedFields = []string{"title", "author", "journal", "booktitle", "publisher", "school", "institution"}

func (Normalize) Prepare(_ context.Context, r *record.Record) (*record.Record, error) {
	if r.IsCurated() {
		return r, nil
	}
	update := func(key, value string) {
		if value != r.Get(key) {
			r.UpdateField(key, value, NormalizeID)
		}
	}
	for _, key := range trimmedFields {
		if !r.HasValue(key) {
			continue
		}
		v := spacePattern.ReplaceAllString(strings.TrimSpace(r.Get(key)), " ")
		if key != "author" {
			v = strings.TrimRight(v, ". ")
		}
		update(key, v)
	}
	if r.HasValue("pages") {
		if m := pageRangePattern.FindStringSubmatch(r.Get("pages")); m != nil {
			pages := m[1] + "--" + m[2]
			if m[1] == m[2] {
				pages = m[1]
			}
			update("pages", pages)
		}
	}
	if r.HasValue(record.KeyDOI) {
		if doi := strings.ToUpper(bibtex.NormalizeDOI(r.Get(record.KeyDOI))); doi != "" {
			update(record.KeyDOI, doi)
		}
	}
	if y := strings.TrimSpace(r.Get("year")); y != "" && len(y) != 4 {
		if found := yearPattern.FindString(y); found != "" {
			update("year", found)
		}
	}
	for _, key := range []string{"volume", "number"} {
		if r.HasValue(key) {
			update(key, strings.TrimSpace(r.Get(key)))
		}
	}
	return r, nil
}

// complementaryPatterns match titles of issue front matter and similar
// material that is never a study.
var complementaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(editorial board|table of contents|contents|front matter|back matter|masthead|issue information|cover|index|reviewers?|list of reviewers)\s*\.?\s*$`),
	regexp.MustCompile(`(?i)^\s*(erratum|errata|corrigendum|correction)\b`),
	regexp.MustCompile(`(?i)^\s*call for papers\b`),
	regexp.MustCompile(`(?i)\b(editor'?s? (note|introduction)|in this issue)\s*$`),
}

// ComplementaryReason is stored as prescreen_exclusion.
const ComplementaryReason = "complementary material"

// Complementary excludes complementary materials during prep. The record
// leaves prep in rev_prescreen_excluded.
type Complementary struct{}

func (Complementary) ID() string { return ComplementaryID }

// IsComplementary reports whether title names complementary material.
func IsComplementary(title string) bool {
	for _, p := range complementaryPatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

func (Complementary) Prepare(_ context.Context, r *record.Record) (*record.Record, error) {
	if IsComplementary(r.Get("title")) {
		r.UpdateField(record.KeyPrescreenExclusion, ComplementaryReason, ComplementaryID)
		r.Status = state.RevPrescreenExcluded
	}
	return r, nil
}
