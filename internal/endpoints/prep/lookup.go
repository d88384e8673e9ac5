package prep

import (
	"context"
	"strconv"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/localindex"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/s2"
	"github.com/matsen/litreview/internal/similarity"
)

// Endpoint identifiers of the lookup-based prep endpoints.
const (
	LocalIndexID      = "lrv.local_index"
	SemanticScholarID = "lrv.semanticscholar"
)

// defaultSimilarity applies when the prep round sets no threshold.
const defaultSimilarity = 0.9

// LocalIndex completes records from the local index. A curated match
// replaces the masterdata and marks the record curated; other matches only
// fill fields the record lacks.
type LocalIndex struct {
	env *endpoint.Env
}

func (p *LocalIndex) ID() string { return LocalIndexID }

func (p *LocalIndex) lookup(r *record.Record) (*localindex.Entry, error) {
	if r.HasValue(record.KeyDOI) {
		e, err := p.env.LocalIndex.GetByDOI(r.Get(record.KeyDOI))
		if err != nil || e != nil {
			return e, err
		}
	}
	id, err := r.CreateColrevID(false)
	if err != nil {
		return nil, nil
	}
	return p.env.LocalIndex.GetByColrevID(id)
}

func (p *LocalIndex) Prepare(ctx context.Context, r *record.Record) (*record.Record, error) {
	if p.env.LocalIndex == nil || r.IsCurated() {
		return r, nil
	}
	e, err := p.lookup(r)
	if err != nil || e == nil {
		return r, err
	}
	if e.Record.Get("title") != "" && similarity.Ratio(e.Record.Get("title"), r.Get("title")) < endpoint.Similarity(ctx, defaultSimilarity) {
		return r, nil
	}

	if e.Curated {
		for _, key := range record.IdentifyingFields {
			if e.Record.HasValue(key) {
				r.UpdateField(key, e.Record.Get(key), LocalIndexID, record.KeepSourceIfEqual())
			} else if r.Has(key) {
				r.RemoveField(key, false, "")
			}
		}
		if e.Record.EntryType != "" && e.Record.EntryType != r.EntryType {
			if err := r.ChangeEntryType(e.Record.EntryType); err != nil {
				return nil, err
			}
		}
		r.MasterdataProvenance = record.ProvenanceMap{
			record.CuratedKey: record.NewProvenance(e.Repo, ""),
		}
	} else {
		for _, key := range e.Record.Keys() {
			if record.IsReserved(key) || r.HasValue(key) || !e.Record.HasValue(key) {
				continue
			}
			if record.IsIdentifying(key) || key == record.KeyDOI || key == record.KeyURL || key == "abstract" {
				r.UpdateField(key, e.Record.Get(key), LocalIndexID)
			}
		}
	}
	for _, cid := range e.Record.ColrevIDs {
		r.AddColrevID(cid)
	}
	return r, nil
}

// SemanticScholar looks records up by DOI. A title that differs beyond
// the round's similarity threshold is noted as a disagreement and stops
// further prep; otherwise missing fields are filled.
type SemanticScholar struct {
	env *endpoint.Env
}

func (p *SemanticScholar) ID() string { return SemanticScholarID }

// DisagreementNote is the note set on a conflicting title.
const DisagreementNote = record.NoteDisagreementWith + "semanticscholar"

func (p *SemanticScholar) Prepare(ctx context.Context, r *record.Record) (*record.Record, error) {
	if p.env.Papers == nil || !r.HasValue(record.KeyDOI) || r.IsCurated() {
		return r, nil
	}
	paper, err := p.env.Papers.GetPaperByDOI(ctx, r.Get(record.KeyDOI))
	if err != nil {
		if s2.IsNotFound(err) {
			return r, nil
		}
		return nil, err
	}
	found := s2.ToRecord(*paper, r.ID, SemanticScholarID)

	if r.HasValue("title") && found.HasValue("title") {
		if similarity.Ratio(r.Get("title"), found.Get("title")) < endpoint.Similarity(ctx, defaultSimilarity) {
			p.env.Logger.Debug("semantic scholar title disagrees", "id", r.ID, "title", found.Get("title"))
			prov := r.ProvenanceFor("title")
			if prov["title"] == nil {
				prov["title"] = record.NewProvenance(SemanticScholarID, "")
			}
			prov["title"].AddNote(DisagreementNote)
			return r, nil
		}
	}

	for _, key := range found.Keys() {
		if r.HasValue(key) {
			continue
		}
		if key == "journal" && r.EntryType != "article" || key == "booktitle" && r.EntryType != "inproceedings" {
			continue
		}
		r.UpdateField(key, found.Get(key), SemanticScholarID)
	}
	if paper.Citations > 0 {
		r.UpdateField(record.KeyCitedBy, strconv.Itoa(paper.Citations), SemanticScholarID, record.KeepSourceIfEqual())
	}
	return r, nil
}
