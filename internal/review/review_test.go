package review

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
	"github.com/matsen/litreview/internal/testutil"
)

func TestMap_OrderAndLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := []int{5, 4, 3, 2, 1, 0}
	got, err := Map(context.Background(), 2, items, func(ctx context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Duration(n) * time.Millisecond)
		inFlight.Add(-1)
		return n * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 40, 30, 20, 10, 0}, got)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMap_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map(context.Background(), 1, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestCallWithTimeout(t *testing.T) {
	v, err := CallWithTimeout(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	release := make(chan struct{})
	defer close(release)
	_, err = CallWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})
	assert.True(t, IsTimeout(err), "err = %v", err)

	_, err = CallWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.True(t, IsTimeout(err), "err = %v", err)
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		configured int
		heavy      bool
		want       int
	}{
		{0, false, DefaultWorkers},
		{0, true, DefaultWorkers / 2},
		{8, false, 8},
		{1, true, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, poolSize(tt.configured, tt.heavy), "poolSize(%d, %v)", tt.configured, tt.heavy)
	}
}

func TestContainers_StopAll(t *testing.T) {
	c := NewContainers(nil)
	var stopped []string
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		stopped = append(stopped, strings.Join(append([]string{name}, args...), " "))
		if args[len(args)-1] == "bad" {
			return []byte("no such container"), errors.New("exit status 1")
		}
		return nil, nil
	}
	c.Register("grobid/grobid:0.8.0", "abc")
	c.Register("grobid/grobid:0.8.0", "bad")
	c.Register("ocrmypdf", "def")
	assert.Equal(t, []string{"grobid/grobid:0.8.0", "ocrmypdf"}, c.Images())

	err := c.StopAll(context.Background())
	assert.True(t, IsServiceNotAvailable(err))
	assert.Equal(t, []string{"docker stop abc", "docker stop bad", "docker stop def"}, stopped)
	assert.Empty(t, c.Images())
	assert.NoError(t, c.StopAll(context.Background()))
}

func TestLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lrv", "lock")
	first, err := acquireLock(path)
	require.NoError(t, err)
	_, err = acquireLock(path)
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, first.Release())

	again, err := acquireLock(path)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func openTestRepo(t *testing.T, recs ...*record.Record) (*Manager, *bytes.Buffer) {
	t.Helper()
	root := testutil.NewRepo(t, settings.Default("lrv.literature_review"))
	var out bytes.Buffer
	m, err := Open(root, Options{Reporter: logging.NewReporter(&out), Identity: testutil.Identity})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	if len(recs) > 0 {
		rs := dataset.NewRecords()
		for _, r := range recs {
			require.NoError(t, rs.Add(r))
		}
		require.NoError(t, m.Dataset.SaveRecords(rs))
	}
	return m, &out
}

func importedRecord(id string) *record.Record {
	r := record.New(id, "article")
	r.Origins = []string{"search.bib/" + id}
	r.UpdateField("title", "Understanding the role of managerial agency", "search.bib/"+id)
	r.UpdateField("author", "Staehr, Lorraine", "search.bib/"+id)
	r.UpdateField("journal", "Information Systems Journal", "search.bib/"+id)
	r.UpdateField("year", "2010", "search.bib/"+id)
	r.UpdateField("volume", "20", "search.bib/"+id)
	r.UpdateField("number", "3", "search.bib/"+id)
	r.Status = state.MDImported
	return r
}

func TestNewOperation_ProcessOrderViolation(t *testing.T) {
	m, _ := openTestRepo(t, importedRecord("Staehr2010"))

	_, err := m.NewOperation(state.Dedupe, true)
	var v *state.ProcessOrderViolation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []state.RecordState{state.MDImported}, v.States)

	_, err = m.NewOperation(state.Prep, true)
	assert.NoError(t, err)

	m.Settings.Project.DelayAutomatedProcessing = false
	_, err = m.NewOperation(state.Dedupe, true)
	assert.NoError(t, err)
}

func TestNewOperation_NoRecords(t *testing.T) {
	m, _ := openTestRepo(t)
	_, err := m.NewOperation(state.Prep, true)
	assert.ErrorIs(t, err, state.ErrNoRecords)
	_, err = m.NewOperation(state.Load, true)
	assert.NoError(t, err)
}

func TestOperation_RunCommitsAndReports(t *testing.T) {
	m, out := openTestRepo(t, importedRecord("Staehr2010"))
	op, err := m.NewOperation(state.Prep, true)
	require.NoError(t, err)
	op.SetPad(12)

	ctx := context.Background()
	sha, err := op.Run(ctx, func(ctx context.Context) (string, error) {
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return "", err
		}
		r := recs.Get("Staehr2010")
		if _, err := op.Transition(r, state.MDPrepared); err != nil {
			return "", err
		}
		if err := m.Dataset.SaveRecords(recs); err != nil {
			return "", err
		}
		summary := SummaryLine(m.Reporter.Counts())
		op.Summary()
		return summary, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, sha)

	assert.Contains(t, out.String(), "  Staehr2010  md_imported → md_prepared")
	assert.Contains(t, out.String(), "Prep summary: md_prepared: 1")

	log, err := m.Repo.Log(ctx, dataset.RecordsPath, 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "Prep: 1 md_prepared", log[0].Message)

	recs, err := m.Dataset.LoadRecords()
	require.NoError(t, err)
	r := recs.Get("Staehr2010")
	assert.Equal(t, state.MDPrepared, r.Status)
	assert.NotEmpty(t, r.ColrevIDs)

	sha, err = op.Run(ctx, func(ctx context.Context) (string, error) { return "", nil })
	require.NoError(t, err)
	assert.Empty(t, sha)
}

func TestOperation_TransitionRejectsInvalid(t *testing.T) {
	m, _ := openTestRepo(t, importedRecord("Staehr2010"))
	op, err := m.NewOperation(state.Screen, false)
	require.NoError(t, err)

	r := importedRecord("Staehr2010")
	_, err = op.Transition(r, state.RevIncluded)
	var it *state.InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, state.MDImported, r.Status)
}

func TestOperation_RunFailsWhileLocked(t *testing.T) {
	m, _ := openTestRepo(t, importedRecord("Staehr2010"))
	lock, err := acquireLock(m.Path(settings.LockFile))
	require.NoError(t, err)
	defer lock.Release()

	op, err := m.NewOperation(state.Prep, true)
	require.NoError(t, err)
	ran := false
	_, err = op.Run(context.Background(), func(ctx context.Context) (string, error) {
		ran = true
		return "", nil
	})
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, ran)
}

func TestCommitMessage(t *testing.T) {
	m, _ := openTestRepo(t)
	op, err := m.NewOperation(state.PDFGet, false)
	require.NoError(t, err)
	assert.Equal(t, "Get PDFs: 2 pdf_imported\n\nOperation: pdf_get\nCommitted-by: Test <test@example.org>\n",
		op.CommitMessage("2 pdf_imported"))
}
