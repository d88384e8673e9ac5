// Package manual implements the file-based manual endpoints. Each reads a
// YAML decision file the user edits between runs; when the file is absent
// a template listing the pending records is written instead.
package manual

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/quality"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// Endpoint identifiers.
const (
	PrepManID    = "lrv.prep_man_file"
	PDFGetManID  = "lrv.pdf_get_man_file"
	PDFPrepManID = "lrv.pdf_prep_man_file"
)

// NotAvailable marks a PDF that cannot be obtained.
const NotAvailable = "not_available"

// Config is the settings struct of the manual endpoints.
type Config struct {
	Path string `json:"path,omitempty"`
}

func (c *Config) path(env *endpoint.Env, dir, name string) string {
	if c != nil && c.Path != "" {
		return env.Path(c.Path)
	}
	return env.Path(filepath.Join(dir, name))
}

// readYAML decodes path into out. A missing file reports false.
func readYAML(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

// writeTemplate writes a mapping of record IDs to values, each key
// preceded by a comment.
func writeTemplate(path string, keys []string, value func(id string) *yaml.Node, comment func(id string) string) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, id := range keys {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: id, HeadComment: commentLines(comment(id))}
		doc.Content = append(doc.Content, k, value(id))
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// commentLines prefixes every line with "# ".
func commentLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "# " + l
	}
	return strings.Join(lines, "\n")
}

func ids(recs []*record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func byID(recs []*record.Record) map[string]*record.Record {
	m := make(map[string]*record.Record, len(recs))
	for _, r := range recs {
		m[r.ID] = r
	}
	return m
}

// Fix is one entry of the prep_man file.
type Fix struct {
	EntryType  string            `yaml:"entrytype,omitempty"`
	Set        map[string]string `yaml:"set,omitempty"`
	Remove     []string          `yaml:"remove,omitempty"`
	NotMissing []string          `yaml:"not_missing,omitempty"`
	// Resolved drops disagreement notes left by prep.
	Resolved bool `yaml:"resolved,omitempty"`
}

// PrepMan applies masterdata fixes from data/prep_man/records.yaml and
// reruns the quality model on the fixed records.
type PrepMan struct {
	env *endpoint.Env
	cfg *Config
}

func (p *PrepMan) ID() string { return PrepManID }

func (p *PrepMan) file() string {
	return p.cfg.path(p.env, settings.PrepManDir, "records.yaml")
}

func (p *PrepMan) PrepareManual(_ context.Context, recs []*record.Record) ([]*record.Record, error) {
	var fixes map[string]Fix
	found, err := readYAML(p.file(), &fixes)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, p.writeTemplate(recs)
	}

	model := p.env.Quality
	if model == nil {
		model = quality.NewModel()
	}
	pending := byID(recs)
	var out []*record.Record
	for _, id := range slices.Sorted(maps.Keys(fixes)) {
		r, ok := pending[id]
		if !ok {
			continue
		}
		if err := applyFix(r, fixes[id]); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		model.Apply(r)
		out = append(out, r)
	}
	return out, nil
}

func applyFix(r *record.Record, fix Fix) error {
	if fix.EntryType != "" && fix.EntryType != r.EntryType {
		if err := r.ChangeEntryType(fix.EntryType); err != nil {
			return err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(fix.Set)) {
		r.UpdateField(key, fix.Set[key], "manual", record.KeepSourceIfEqual())
	}
	for _, key := range fix.Remove {
		r.RemoveField(key, false, "manual")
	}
	for _, key := range fix.NotMissing {
		r.RemoveField(key, true, "manual")
	}
	if fix.Resolved {
		for _, key := range r.Keys() {
			if p := r.Provenance(key); p != nil {
				for _, n := range slices.Clone(p.Notes) {
					if strings.HasPrefix(n, record.NoteDisagreementWith) {
						p.RemoveNote(n)
					}
				}
			}
		}
	}
	return nil
}

// writeTemplate lists each pending record with the masterdata fields
// carrying notes.
func (p *PrepMan) writeTemplate(recs []*record.Record) error {
	pending := byID(recs)
	value := func(id string) *yaml.Node {
		r := pending[id]
		set := &yaml.Node{Kind: yaml.MappingNode}
		for _, key := range r.MasterdataProvenance.SortedKeys() {
			if prov := r.MasterdataProvenance[key]; len(prov.Notes) > 0 {
				set.Content = append(set.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: key},
					&yaml.Node{Kind: yaml.ScalarNode, Value: r.Get(key), Style: yaml.DoubleQuotedStyle, LineComment: "# " + prov.Note()})
			}
		}
		return &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "set"}, set,
		}}
	}
	comment := func(id string) string {
		r := pending[id]
		return fmt.Sprintf("%s: %s", r.EntryType, r.Get("title"))
	}
	p.env.Reporter.Infof("edit %s and rerun prep-man", p.file())
	return writeTemplate(p.file(), ids(recs), value, comment)
}

// PDFGetMan reads data/pdf_get_man/decisions.yaml, a mapping from record
// ID to the path of the retrieved PDF or "not_available".
type PDFGetMan struct {
	env *endpoint.Env
	cfg *Config
}

func (p *PDFGetMan) ID() string { return PDFGetManID }

func (p *PDFGetMan) file() string {
	return p.cfg.path(p.env, settings.PDFGetManDir, "decisions.yaml")
}

func (p *PDFGetMan) GetPDFManual(_ context.Context, recs []*record.Record) ([]*record.Record, error) {
	var decisions map[string]string
	found, err := readYAML(p.file(), &decisions)
	if err != nil {
		return nil, err
	}
	if !found {
		pending := byID(recs)
		p.env.Reporter.Infof("add PDF paths to %s and rerun pdf-get-man", p.file())
		return nil, writeTemplate(p.file(), ids(recs),
			func(string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Value: "", Style: yaml.DoubleQuotedStyle} },
			func(id string) string { return pdfComment(pending[id]) })
	}

	var out []*record.Record
	for _, r := range recs {
		decision := strings.TrimSpace(decisions[r.ID])
		switch decision {
		case "":
			continue
		case NotAvailable:
			r.Status = state.PDFNotAvailable
		default:
			r.UpdateField(record.KeyFile, decision, "manual")
			r.Status = state.PDFImported
		}
		out = append(out, r)
	}
	return out, nil
}

func pdfComment(r *record.Record) string {
	parts := []string{r.Get("title")}
	if doi := r.Get(record.KeyDOI); doi != "" {
		parts = append(parts, "doi: "+doi)
	}
	if url := r.Get(record.KeyURL); url != "" {
		parts = append(parts, url)
	}
	return strings.Join(parts, "\n")
}

// PrepDecisions is the pdf_prep_man file. Accepted PDFs become
// pdf_prepared; replaced ones get the new file first.
type PrepDecisions struct {
	Accept  []string          `yaml:"accept"`
	Replace map[string]string `yaml:"replace,omitempty"`
}

// PDFPrepMan reads data/pdf_prep_man/decisions.yaml.
type PDFPrepMan struct {
	env *endpoint.Env
	cfg *Config
}

func (p *PDFPrepMan) ID() string { return PDFPrepManID }

func (p *PDFPrepMan) file() string {
	return p.cfg.path(p.env, settings.PDFPrepManDir, "decisions.yaml")
}

func (p *PDFPrepMan) PrepPDFManual(_ context.Context, recs []*record.Record) ([]*record.Record, error) {
	var d PrepDecisions
	found, err := readYAML(p.file(), &d)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, p.writeTemplate(recs)
	}

	var out []*record.Record
	for _, r := range recs {
		file, replaced := d.Replace[r.ID]
		if !replaced && !slices.Contains(d.Accept, r.ID) {
			continue
		}
		if replaced {
			r.UpdateField(record.KeyFile, file, "manual")
		}
		r.Status = state.PDFPrepared
		out = append(out, r)
	}
	return out, nil
}

// writeTemplate lists the pending records with their defect codes as
// comments under an empty accept list.
func (p *PDFPrepMan) writeTemplate(recs []*record.Record) error {
	var lines []string
	for _, r := range recs {
		defects := ""
		if prov := r.DataProvenance[record.KeyFile]; prov != nil {
			defects = prov.Note()
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", r.ID, r.Get(record.KeyFile), defects))
	}
	sort.Strings(lines)
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "accept", HeadComment: commentLines(strings.Join(lines, "\n"))},
		{Kind: yaml.SequenceNode, Style: yaml.FlowStyle},
	}}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.file()), 0o755); err != nil {
		return err
	}
	p.env.Reporter.Infof("list accepted PDFs in %s and rerun pdf-prep-man", p.file())
	return os.WriteFile(p.file(), data, 0o644)
}

// Manifests returns the manifests of the manual endpoints.
func Manifests() []endpoint.Manifest {
	cfg := func() any { return &Config{} }
	return []endpoint.Manifest{
		{
			ID:       PrepManID,
			Type:     endpoint.TypePrepMan,
			Settings: cfg,
			New: func(env *endpoint.Env, c any) (endpoint.Endpoint, error) {
				return &PrepMan{env: env, cfg: c.(*Config)}, nil
			},
		},
		{
			ID:       PDFGetManID,
			Type:     endpoint.TypePDFGetMan,
			Settings: cfg,
			New: func(env *endpoint.Env, c any) (endpoint.Endpoint, error) {
				return &PDFGetMan{env: env, cfg: c.(*Config)}, nil
			},
		},
		{
			ID:       PDFPrepManID,
			Type:     endpoint.TypePDFPrepMan,
			Settings: cfg,
			New: func(env *endpoint.Env, c any) (endpoint.Endpoint, error) {
				return &PDFPrepMan{env: env, cfg: c.(*Config)}, nil
			},
		},
	}
}
