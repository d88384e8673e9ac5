package screen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/testutil"
)

type decision struct {
	included bool
	detail   string
}

// fakeOp collects decisions.
type fakeOp struct {
	recs       []*record.Record
	criteria   map[string]settings.ScreenCriterion
	decisions  map[string]decision
	criteriaOf map[string]map[string]string
}

func newFakeOp(ids ...string) *fakeOp {
	op := &fakeOp{
		decisions:  make(map[string]decision),
		criteriaOf: make(map[string]map[string]string),
	}
	op.criteria = map[string]settings.ScreenCriterion{
		"empirical": {Explanation: "empirical study", CriterionType: settings.CriterionInclusion},
		"erp":       {Explanation: "about ERP", CriterionType: settings.CriterionInclusion},
	}
	for _, id := range ids {
		r := record.New(id, "article")
		r.UpdateField("title", "Title "+id, "db.bib/"+id)
		r.UpdateField("year", "2010", "db.bib/"+id)
		op.recs = append(op.recs, r)
	}
	return op
}

func (f *fakeOp) GetData() endpoint.Selection {
	return endpoint.Selection{Records: f.recs, Count: len(f.recs), Pad: 4}
}

func (f *fakeOp) Prescreen(r *record.Record, included bool, reason string) error {
	f.decisions[r.ID] = decision{included, reason}
	return nil
}

func (f *fakeOp) Criteria() map[string]settings.ScreenCriterion { return f.criteria }

func (f *fakeOp) Screen(r *record.Record, included bool, criteria map[string]string) error {
	f.decisions[r.ID] = decision{included: included}
	f.criteriaOf[r.ID] = criteria
	return nil
}

func testEnv(t *testing.T) *endpoint.Env {
	t.Helper()
	return &endpoint.Env{Root: t.TempDir(), Logger: logging.Nop(), Reporter: logging.Discard()}
}

func TestConditional(t *testing.T) {
	op := newFakeOp("a", "b")
	require.NoError(t, Conditional{}.RunPrescreen(context.Background(), op, nil))
	assert.Equal(t, map[string]decision{"a": {true, ""}, "b": {true, ""}}, op.decisions)
}

func TestScope(t *testing.T) {
	op := newFakeOp("old", "new", "german", "board")
	op.recs[0].UpdateField("year", "1990", "fix")
	op.recs[2].UpdateField(record.KeyLanguage, "deu", "fix")
	op.recs[3].UpdateField("title", "Editorial Board", "fix")
	s := Scope{cfg: &ScopeConfig{MinYear: 2000, Languages: []string{"eng"}, ExcludeComplementary: true}}

	require.NoError(t, s.RunPrescreen(context.Background(), op, nil))
	assert.Len(t, op.decisions, 3)
	assert.Equal(t, decision{false, "out of scope: year before 2000"}, op.decisions["old"])
	assert.Equal(t, decision{false, "out of scope: language deu"}, op.decisions["german"])
	assert.False(t, op.decisions["board"].included)
	_, decided := op.decisions["new"]
	assert.False(t, decided)
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in           string
		included, ok bool
	}{
		{"in", true, true},
		{" Yes ", true, true},
		{"OUT", false, true},
		{"0", false, true},
		{"", false, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		included, ok := ParseDecision(tt.in)
		assert.Equal(t, tt.included, included, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestPrescreenFile(t *testing.T) {
	env := testEnv(t)
	p := &PrescreenFile{env: env, cfg: &FileConfig{}}
	op := newFakeOp("a", "b", "c")

	require.NoError(t, p.RunPrescreen(context.Background(), op, nil))
	assert.Empty(t, op.decisions)
	data, err := os.ReadFile(filepath.Join(env.Root, "data/prescreen/decisions.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,decision,reason,title"))
	assert.Contains(t, string(data), "a,,,Title a")

	testutil.WriteFile(t, env.Root, "data/prescreen/decisions.csv",
		"ID,decision,reason\na,in,\nb,out,not relevant\nc,,\nzzz,in,\n")
	require.NoError(t, p.RunPrescreen(context.Background(), op, nil))
	assert.Equal(t, map[string]decision{"a": {true, ""}, "b": {false, "not relevant"}}, op.decisions)
}

func TestPrescreenFile_Split(t *testing.T) {
	env := testEnv(t)
	testutil.WriteFile(t, env.Root, "data/prescreen/decisions.csv", "ID,decision\na,in\nb,in\n")
	p := &PrescreenFile{env: env, cfg: &FileConfig{}}
	op := newFakeOp("a", "b")

	require.NoError(t, p.RunPrescreen(context.Background(), op, []string{"b"}))
	assert.Len(t, op.decisions, 1)
	assert.Contains(t, op.decisions, "b")
}

func TestPrescreenFile_MissingColumn(t *testing.T) {
	env := testEnv(t)
	testutil.WriteFile(t, env.Root, "data/prescreen/decisions.csv", "ID,verdict\na,in\n")
	p := &PrescreenFile{env: env, cfg: &FileConfig{}}
	assert.ErrorContains(t, p.RunPrescreen(context.Background(), newFakeOp("a"), nil), "missing decision column")
}

func TestScreenFile(t *testing.T) {
	env := testEnv(t)
	s := &ScreenFile{env: env, cfg: &FileConfig{}}
	op := newFakeOp("a", "b")

	require.NoError(t, s.RunScreen(context.Background(), op, nil))
	data, err := os.ReadFile(filepath.Join(env.Root, "data/screen/decisions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "a,,empirical=TODO;erp=TODO,Title a")

	testutil.WriteFile(t, env.Root, "data/screen/decisions.csv",
		"ID,decision,criteria\na,in,empirical=in;erp=in\nb,out,empirical=out;erp=TODO\n")
	require.NoError(t, s.RunScreen(context.Background(), op, nil))
	assert.True(t, op.decisions["a"].included)
	assert.False(t, op.decisions["b"].included)
	assert.Equal(t, map[string]string{"empirical": "out", "erp": "TODO"}, op.criteriaOf["b"])
}

func TestCriteriaFile(t *testing.T) {
	env := testEnv(t)
	c := &CriteriaFile{env: env, cfg: &FileConfig{}}
	op := newFakeOp("a", "b", "c")

	require.NoError(t, c.RunScreen(context.Background(), op, nil))
	data, err := os.ReadFile(filepath.Join(env.Root, "data/screen/criteria.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,empirical,erp,title\n"))

	testutil.WriteFile(t, env.Root, "data/screen/criteria.csv",
		"ID,empirical,erp\na,in,in\nb,in,out\nc,in,\n")
	require.NoError(t, c.RunScreen(context.Background(), op, nil))
	assert.Equal(t, map[string]decision{"a": {included: true}, "b": {included: false}}, op.decisions)
	assert.Equal(t, map[string]string{"empirical": "in", "erp": "out"}, op.criteriaOf["b"])
}

func TestCriteriaFile_NoCriteria(t *testing.T) {
	op := newFakeOp("a")
	op.criteria = nil
	c := &CriteriaFile{env: testEnv(t), cfg: &FileConfig{}}
	assert.Error(t, c.RunScreen(context.Background(), op, nil))
}
