// Package screen implements the built-in prescreen and screen endpoints.
package screen

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/endpoints/prep"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

// Endpoint identifiers. DecisionFileID names both the prescreen and the
// screen endpoint.
const (
	ConditionalID  = "lrv.conditional_prescreen"
	ScopeID        = "lrv.scope_prescreen"
	DecisionFileID = "lrv.decision_file"
	CriteriaFileID = "lrv.criteria_file"
)

// Conditional includes every record.
type Conditional struct{}

func (Conditional) ID() string { return ConditionalID }

func (Conditional) RunPrescreen(ctx context.Context, op endpoint.PrescreenOperation, _ []string) error {
	for _, r := range op.GetData().Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op.Prescreen(r, true, ""); err != nil {
			return err
		}
	}
	return nil
}

// ScopeConfig is the settings struct of lrv.scope_prescreen.
type ScopeConfig struct {
	MinYear              int      `json:"min_year,omitempty" validate:"omitempty,gte=1000,lte=3000"`
	MaxYear              int      `json:"max_year,omitempty" validate:"omitempty,gte=1000,lte=3000,gtefield=MinYear"`
	Languages            []string `json:"languages,omitempty" validate:"dive,len=3"`
	ExcludeComplementary bool     `json:"exclude_complementary_materials,omitempty"`
}

// Scope excludes records outside the configured scope. Records within it
// are left for the following prescreen endpoints.
type Scope struct {
	cfg *ScopeConfig
}

func (Scope) ID() string { return ScopeID }

// outOfScope returns the exclusion reason, or "".
func (s Scope) outOfScope(r *record.Record) string {
	if y, err := strconv.Atoi(strings.TrimSpace(r.Get("year"))); err == nil {
		if s.cfg.MinYear > 0 && y < s.cfg.MinYear {
			return fmt.Sprintf("out of scope: year before %d", s.cfg.MinYear)
		}
		if s.cfg.MaxYear > 0 && y > s.cfg.MaxYear {
			return fmt.Sprintf("out of scope: year after %d", s.cfg.MaxYear)
		}
	}
	if lang := r.Get(record.KeyLanguage); lang != "" && len(s.cfg.Languages) > 0 && !slices.Contains(s.cfg.Languages, lang) {
		return "out of scope: language " + lang
	}
	if s.cfg.ExcludeComplementary && prep.IsComplementary(r.Get("title")) {
		return prep.ComplementaryReason
	}
	return ""
}

func (s Scope) RunPrescreen(ctx context.Context, op endpoint.PrescreenOperation, _ []string) error {
	for _, r := range op.GetData().Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if reason := s.outOfScope(r); reason != "" {
			if err := op.Prescreen(r, false, reason); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileConfig is the settings struct of the file-based endpoints.
type FileConfig struct {
	Path string `json:"path,omitempty"`
}

func (c *FileConfig) path(env *endpoint.Env, def string) string {
	if c != nil && c.Path != "" {
		return env.Path(c.Path)
	}
	return env.Path(def)
}

// ParseDecision reads in/out style decision values. ok is false for an
// empty or unknown value.
func ParseDecision(v string) (included, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "in", "include", "included", "yes", "y", "1":
		return true, true
	case "out", "exclude", "excluded", "no", "n", "0":
		return false, true
	}
	return false, false
}

// table is a CSV file addressed by header name.
type table struct {
	header map[string]int
	rows   [][]string
}

func (t *table) get(row []string, col string) string {
	i, ok := t.header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// readTable reads a CSV file with a header row containing ID and
// decision. A missing file yields nil.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	head, err := rd.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty decision file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &table{header: make(map[string]int, len(head))}
	for i, h := range head {
		t.header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"id", "decision"} {
		if _, ok := t.header[col]; !ok {
			return nil, fmt.Errorf("%s: missing %s column", path, col)
		}
	}
	t.rows, err = rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// writeTable writes header and rows to path.
func writeTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func inSplit(split []string, id string) bool {
	return len(split) == 0 || slices.Contains(split, id)
}

// PrescreenFile applies decisions from data/prescreen/decisions.csv with
// columns ID, decision and an optional reason.
type PrescreenFile struct {
	env *endpoint.Env
	cfg *FileConfig
}

func (PrescreenFile) ID() string { return DecisionFileID }

func (p *PrescreenFile) file() string {
	return p.cfg.path(p.env, filepath.Join(settings.PrescreenDir, "decisions.csv"))
}

func (p *PrescreenFile) RunPrescreen(ctx context.Context, op endpoint.PrescreenOperation, split []string) error {
	data := op.GetData()
	t, err := readTable(p.file())
	if err != nil {
		return err
	}
	if t == nil {
		return p.writeTemplate(data.Records)
	}
	pending := make(map[string]*record.Record, len(data.Records))
	for _, r := range data.Records {
		pending[r.ID] = r
	}
	for _, row := range t.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := t.get(row, "id")
		r, ok := pending[id]
		if !ok || !inSplit(split, id) {
			continue
		}
		included, ok := ParseDecision(t.get(row, "decision"))
		if !ok {
			continue
		}
		if err := op.Prescreen(r, included, t.get(row, "reason")); err != nil {
			return err
		}
	}
	return nil
}

func (p *PrescreenFile) writeTemplate(recs []*record.Record) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.ID, "", "", r.Get("title"), r.Get("author"), r.Get("year"), container(r)}
	}
	p.env.Reporter.Infof("fill in %s (in/out) and rerun prescreen", p.file())
	return writeTable(p.file(), []string{"ID", "decision", "reason", "title", "author", "year", "container"}, rows)
}

func container(r *record.Record) string {
	if v := r.Get("journal"); v != "" {
		return v
	}
	return r.Get("booktitle")
}

// ScreenFile applies decisions from data/screen/decisions.csv with
// columns ID, decision and criteria ("name=in;other=out").
type ScreenFile struct {
	env *endpoint.Env
	cfg *FileConfig
}

func (ScreenFile) ID() string { return DecisionFileID }

func (s *ScreenFile) file() string {
	return s.cfg.path(s.env, filepath.Join(settings.ScreenDir, "decisions.csv"))
}

// parseCriteria reads "name=in;other=out".
func parseCriteria(v string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(v, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name != "" {
			out[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return out
}

func (s *ScreenFile) RunScreen(ctx context.Context, op endpoint.ScreenOperation, split []string) error {
	data := op.GetData()
	t, err := readTable(s.file())
	if err != nil {
		return err
	}
	if t == nil {
		return s.writeTemplate(data.Records, op.Criteria())
	}
	pending := make(map[string]*record.Record, len(data.Records))
	for _, r := range data.Records {
		pending[r.ID] = r
	}
	for _, row := range t.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := t.get(row, "id")
		r, ok := pending[id]
		if !ok || !inSplit(split, id) {
			continue
		}
		included, ok := ParseDecision(t.get(row, "decision"))
		if !ok {
			continue
		}
		if err := op.Screen(r, included, parseCriteria(t.get(row, "criteria"))); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScreenFile) writeTemplate(recs []*record.Record, criteria map[string]settings.ScreenCriterion) error {
	var todo []string
	for _, name := range slices.Sorted(maps.Keys(criteria)) {
		todo = append(todo, name+"="+endpoint.CriterionTODO)
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.ID, "", strings.Join(todo, ";"), r.Get("title"), r.Get(record.KeyFile)}
	}
	s.env.Reporter.Infof("fill in %s and rerun screen", s.file())
	return writeTable(s.file(), []string{"ID", "decision", "criteria", "title", "file"}, rows)
}

// CriteriaFile screens by criterion. data/screen/criteria.csv has one
// column per configured criterion next to ID; a record is included when
// every criterion is "in" and excluded as soon as one is "out".
type CriteriaFile struct {
	env *endpoint.Env
	cfg *FileConfig
}

func (CriteriaFile) ID() string { return CriteriaFileID }

func (c *CriteriaFile) file() string {
	return c.cfg.path(c.env, filepath.Join(settings.ScreenDir, "criteria.csv"))
}

// decide derives the inclusion decision from criteria values. ok is false
// while a criterion is undecided and none is "out".
func decide(values map[string]string) (included, ok bool) {
	undecided := false
	for _, v := range values {
		switch v {
		case endpoint.CriterionOut:
			return false, true
		case endpoint.CriterionIn:
		default:
			undecided = true
		}
	}
	return !undecided, !undecided
}

func (c *CriteriaFile) RunScreen(ctx context.Context, op endpoint.ScreenOperation, split []string) error {
	data := op.GetData()
	names := slices.Sorted(maps.Keys(op.Criteria()))
	if len(names) == 0 {
		return errors.New("no screening criteria configured")
	}
	path := c.file()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		rows := make([][]string, len(data.Records))
		for i, r := range data.Records {
			row := []string{r.ID}
			for range names {
				row = append(row, endpoint.CriterionTODO)
			}
			rows[i] = append(row, r.Get("title"))
		}
		c.env.Reporter.Infof("mark criteria in %s as in/out and rerun screen", path)
		return writeTable(path, append(append([]string{"ID"}, names...), "title"), rows)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	all, err := rd.ReadAll()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(all) == 0 {
		return nil
	}
	t := &table{header: make(map[string]int), rows: all[1:]}
	for i, h := range all[0] {
		t.header[strings.TrimSpace(h)] = i
	}
	i, ok := t.header["ID"]
	if !ok {
		return fmt.Errorf("%s: missing ID column", path)
	}
	t.header["id"] = i

	pending := make(map[string]*record.Record, len(data.Records))
	for _, r := range data.Records {
		pending[r.ID] = r
	}
	for _, row := range t.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := t.get(row, "id")
		r, ok := pending[id]
		if !ok || !inSplit(split, id) {
			continue
		}
		values := make(map[string]string, len(names))
		for _, n := range names {
			v := strings.ToLower(t.get(row, n))
			if v == "" {
				v = endpoint.CriterionTODO
			}
			values[n] = v
		}
		included, ok := decide(values)
		if !ok {
			continue
		}
		for n, v := range values {
			if v != endpoint.CriterionIn && v != endpoint.CriterionOut {
				values[n] = endpoint.CriterionTODO
			}
		}
		if err := op.Screen(r, included, values); err != nil {
			return err
		}
	}
	return nil
}

// Manifests returns the manifests of the prescreen and screen endpoints.
func Manifests() []endpoint.Manifest {
	fileCfg := func() any { return &FileConfig{} }
	return []endpoint.Manifest{
		{
			ID:          ConditionalID,
			Type:        endpoint.TypePrescreen,
			New:         func(*endpoint.Env, any) (endpoint.Endpoint, error) { return Conditional{}, nil },
			CISupported: true,
		},
		{
			ID:       ScopeID,
			Type:     endpoint.TypePrescreen,
			Settings: func() any { return &ScopeConfig{} },
			New: func(_ *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return Scope{cfg: cfg.(*ScopeConfig)}, nil
			},
			CISupported: true,
		},
		{
			ID:       DecisionFileID,
			Type:     endpoint.TypePrescreen,
			Settings: fileCfg,
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &PrescreenFile{env: env, cfg: cfg.(*FileConfig)}, nil
			},
		},
		{
			ID:       DecisionFileID,
			Type:     endpoint.TypeScreen,
			Settings: fileCfg,
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &ScreenFile{env: env, cfg: cfg.(*FileConfig)}, nil
			},
		},
		{
			ID:       CriteriaFileID,
			Type:     endpoint.TypeScreen,
			Settings: fileCfg,
			New: func(env *endpoint.Env, cfg any) (endpoint.Endpoint, error) {
				return &CriteriaFile{env: env, cfg: cfg.(*FileConfig)}, nil
			},
		},
	}
}
