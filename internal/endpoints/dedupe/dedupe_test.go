package dedupe

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// fakeOp records merges instead of applying them.
type fakeOp struct {
	recs       map[string]*record.Record
	merges     [][2]string
	sameSource bool
}

func newFakeOp(recs ...*record.Record) *fakeOp {
	op := &fakeOp{recs: make(map[string]*record.Record)}
	for _, r := range recs {
		op.recs[r.ID] = r
	}
	return op
}

func (f *fakeOp) Records() []*record.Record {
	var out []*record.Record
	for _, r := range f.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeOp) IsNew(r *record.Record) bool { return r.Status == state.MDPrepared }

func (f *fakeOp) Merge(keepID, dropID string, _ float64) error {
	if f.recs[keepID] == nil || f.recs[dropID] == nil {
		return fmt.Errorf("unknown record %s or %s", keepID, dropID)
	}
	if f.sameSource {
		return fmt.Errorf("%w: %s and %s", endpoint.ErrSameSourceMerge, keepID, dropID)
	}
	f.merges = append(f.merges, [2]string{keepID, dropID})
	delete(f.recs, dropID)
	return nil
}

func article(id, title string, st state.RecordState) *record.Record {
	r := record.New(id, "article")
	r.UpdateField("author", "Staehr, Lorraine", "db.bib/"+id)
	r.UpdateField("title", title, "db.bib/"+id)
	r.UpdateField("journal", "Information Systems Journal", "db.bib/"+id)
	r.UpdateField("year", "2010", "db.bib/"+id)
	r.UpdateField("volume", "20", "db.bib/"+id)
	r.UpdateField("number", "3", "db.bib/"+id)
	r.Status = st
	return r
}

func testEnv() *endpoint.Env {
	return &endpoint.Env{Logger: logging.Nop(), Reporter: logging.Discard()}
}

func TestSimple_MergesDuplicates(t *testing.T) {
	op := newFakeOp(
		article("a", "Understanding the role of managerial agency", state.MDPrepared),
		article("b", "Understanding the Role of Managerial Agency.", state.MDPrepared),
		article("c", "A completely unrelated study of cats", state.MDPrepared),
	)
	d := &Simple{env: testEnv(), cfg: &Config{}}

	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Equal(t, [][2]string{{"a", "b"}}, op.merges)
}

func TestSimple_KeepsProcessedRecord(t *testing.T) {
	op := newFakeOp(
		article("a", "Understanding the role of managerial agency", state.MDPrepared),
		article("z", "Understanding the role of managerial agency", state.MDProcessed),
	)
	d := &Simple{env: testEnv(), cfg: &Config{}}

	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Equal(t, [][2]string{{"z", "a"}}, op.merges)
}

func TestSimple_IgnoresProcessedPairs(t *testing.T) {
	op := newFakeOp(
		article("a", "Understanding the role of managerial agency", state.MDProcessed),
		article("b", "Understanding the role of managerial agency", state.RevIncluded),
	)
	d := &Simple{env: testEnv(), cfg: &Config{}}

	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Empty(t, op.merges)
}

func TestSimple_ChainsMerges(t *testing.T) {
	op := newFakeOp(
		article("a", "Understanding the role of managerial agency", state.MDPrepared),
		article("b", "Understanding the role of managerial agency", state.MDPrepared),
		article("c", "Understanding the role of managerial agency", state.MDPrepared),
	)
	d := &Simple{env: testEnv(), cfg: &Config{}}

	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Len(t, op.merges, 2)
	assert.Len(t, op.recs, 1)
}

func TestSimple_YearWindow(t *testing.T) {
	a := article("a", "Understanding the role of managerial agency", state.MDPrepared)
	b := article("b", "Understanding the role of managerial agency", state.MDPrepared)
	b.UpdateField("year", "2011", "fix")

	d := &Simple{env: testEnv(), cfg: &Config{Threshold: 0.8}}
	assert.False(t, d.comparable(a, b))
	d.cfg.YearWindow = 1
	assert.True(t, d.comparable(a, b))
}

func TestSimple_SkipsSameSource(t *testing.T) {
	op := newFakeOp(
		article("a", "Understanding the role of managerial agency", state.MDPrepared),
		article("b", "Understanding the role of managerial agency", state.MDPrepared),
	)
	op.sameSource = true
	d := &Simple{env: testEnv(), cfg: &Config{}}

	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Len(t, op.recs, 2)
}

func TestColrevID(t *testing.T) {
	a := article("a", "First", state.MDProcessed)
	a.ColrevIDs = []string{"colrev_id1:|a|x|y|z"}
	b := article("b", "First (copy)", state.MDPrepared)
	b.ColrevIDs = []string{"colrev_id1:|a|x|y|z"}
	c := article("c", "Other", state.MDPrepared)
	c.ColrevIDs = []string{"colrev_id1:|a|other"}
	op := newFakeOp(b, a, c)

	d := &ColrevID{env: testEnv()}
	require.NoError(t, d.RunDedupe(context.Background(), op))
	assert.Equal(t, [][2]string{{"a", "b"}}, op.merges)
}
