// Package data implements the built-in data endpoints.
package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// Endpoint identifiers.
const (
	BibliographyID = "lrv.bibliography_export"
	StructuredID   = "lrv.structured"
)

// TODO is the placeholder of an unfilled extraction field.
const TODO = "TODO"

// BibliographyConfig is the settings struct of lrv.bibliography_export.
type BibliographyConfig struct {
	Filename string `json:"filename,omitempty"`
}

// Bibliography writes the included records to a clean BibTeX file.
type Bibliography struct {
	env      *endpoint.Env
	cfg      *BibliographyConfig
	exported []string
}

func (b *Bibliography) ID() string { return BibliographyID }

func (b *Bibliography) path() string {
	if b.cfg != nil && b.cfg.Filename != "" {
		return b.env.Path(b.cfg.Filename)
	}
	return b.env.Path(filepath.Join(settings.OutputDir, "references.bib"))
}

// internalFields are review bookkeeping and never exported.
var internalFields = []string{
	record.KeyFile, record.KeyPDFID, record.KeyScreeningCriteria,
	record.KeyPrescreenExclusion, record.KeyCitedBy,
}

// textFields carry prose that may contain LaTeX special characters.
var textFields = map[string]bool{
	"title": true, "journal": true, "booktitle": true, "publisher": true,
	"school": true, "institution": true, "abstract": true, "keywords": true,
}

// ToEntry builds the exported entry of r. Text is escaped for LaTeX
// unless it already carries escapes; UNKNOWN values are left out.
func ToEntry(r *record.Record) *bibtex.Entry {
	e := dataset.PlainEntry(r)
	for _, key := range internalFields {
		e.Delete(key)
	}
	fields := e.Fields[:0]
	for _, f := range e.Fields {
		if f.Value == record.UnknownValue || strings.TrimSpace(f.Value) == "" {
			continue
		}
		if textFields[f.Name] && !strings.Contains(f.Value, `\`) {
			f.Value = bibtex.EscapeLatex(f.Value)
		}
		fields = append(fields, f)
	}
	e.Fields = fields
	return e
}

func (b *Bibliography) UpdateData(_ context.Context, recs []*record.Record, silent bool) error {
	sorted := append([]*record.Record(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	entries := make([]*bibtex.Entry, len(sorted))
	b.exported = b.exported[:0]
	for i, r := range sorted {
		entries[i] = ToEntry(r)
		b.exported = append(b.exported, r.ID)
	}
	if err := bibtex.WriteFile(b.path(), entries, bibtex.StyleAligned); err != nil {
		return err
	}
	if !silent {
		b.env.Reporter.Infof("exported %d records to %s", len(entries), b.relative())
	}
	return nil
}

func (b *Bibliography) relative() string {
	if rel, err := filepath.Rel(b.env.Root, b.path()); err == nil {
		return rel
	}
	return b.path()
}

func (b *Bibliography) UpdateRecordStatusMatrix(matrix endpoint.StatusMatrix, endpointID string) error {
	for _, id := range b.exported {
		matrix.Set(id, endpointID, true)
	}
	return nil
}

func (b *Bibliography) Advice() endpoint.Advice {
	return endpoint.Advice{
		Msg:         fmt.Sprintf("bibliography: %d records in %s", len(b.exported), b.relative()),
		DetailedMsg: "cite the file from your manuscript; it is rewritten on every data run",
	}
}

// FieldSpec is one extraction field of the structured sheet.
type FieldSpec struct {
	Name        string `json:"name" validate:"required"`
	Explanation string `json:"explanation,omitempty"`
	DataType    string `json:"data_type,omitempty" validate:"omitempty,oneof=str int float bool"`
}

// StructuredConfig is the settings struct of lrv.structured.
type StructuredConfig struct {
	Filename string      `json:"filename,omitempty"`
	Fields   []FieldSpec `json:"fields" validate:"required,min=1,dive"`
}

// Row is one record of the extraction sheet.
type Row map[string]string

// Structured maintains a YAML extraction sheet with one row per included
// record. A record counts as synthesized once every field is filled.
type Structured struct {
	env  *endpoint.Env
	cfg  *StructuredConfig
	rows []Row
}

func (s *Structured) ID() string { return StructuredID }

func (s *Structured) path() string {
	if s.cfg.Filename != "" {
		return s.env.Path(s.cfg.Filename)
	}
	return s.env.Path(filepath.Join(settings.OutputDir, "data.yaml"))
}

func (s *Structured) load() ([]Row, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path(), err)
	}
	return rows, nil
}

// UpdateData adds a row for every included record not yet in the sheet
// and adds newly configured fields to existing rows. Rows are never
// removed.
func (s *Structured) UpdateData(_ context.Context, recs []*record.Record, silent bool) error {
	rows, err := s.load()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(rows))
	for _, row := range rows {
		known[row[record.KeyID]] = true
	}
	added := 0
	for _, r := range recs {
		if known[r.ID] {
			continue
		}
		rows = append(rows, Row{record.KeyID: r.ID})
		added++
	}
	for _, row := range rows {
		for _, f := range s.cfg.Fields {
			if _, ok := row[f.Name]; !ok {
				row[f.Name] = TODO
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][record.KeyID] < rows[j][record.KeyID] })
	s.rows = rows

	out, err := yaml.Marshal(rows)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path()), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(), out, 0o644); err != nil {
		return err
	}
	if !silent && added > 0 {
		s.env.Reporter.Infof("added %d records to %s", added, s.path())
	}
	return nil
}

// complete reports whether every configured field of row is filled.
func (s *Structured) complete(row Row) bool {
	for _, f := range s.cfg.Fields {
		v := strings.TrimSpace(row[f.Name])
		if v == "" || v == TODO {
			return false
		}
	}
	return true
}

func (s *Structured) UpdateRecordStatusMatrix(matrix endpoint.StatusMatrix, endpointID string) error {
	for _, row := range s.rows {
		id := row[record.KeyID]
		if _, included := matrix[id]; !included {
			continue
		}
		matrix.Set(id, endpointID, s.complete(row))
	}
	return nil
}

func (s *Structured) Advice() endpoint.Advice {
	open := 0
	for _, row := range s.rows {
		if !s.complete(row) {
			open++
		}
	}
	if open == 0 {
		return endpoint.Advice{Msg: "structured data extraction complete"}
	}
	return endpoint.Advice{
		Msg:         fmt.Sprintf("complete data extraction for %d records", open),
		DetailedMsg: "replace TODO values in " + s.path(),
	}
}

// Manifests returns the manifests of the data endpoints.
func Manifests() []endpoint.Manifest {
	return []endpoint.Manifest{
		{
			ID:       BibliographyID,
			Type:     endpoint.TypeData,
			Settings: func() any { return &BibliographyConfig{} },
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &Bibliography{env: env, cfg: cfg.(*BibliographyConfig)}, nil
			},
			CISupported: true,
		},
		{
			ID:       StructuredID,
			Type:     endpoint.TypeData,
			Settings: func() any { return &StructuredConfig{} },
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &Structured{env: env, cfg: cfg.(*StructuredConfig)}, nil
			},
		},
	}
}
