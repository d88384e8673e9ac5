package endpoint

import (
	"context"
	"path/filepath"
	"time"

	"github.com/matsen/litreview/internal/localindex"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/quality"
	"github.com/matsen/litreview/internal/s2"
	"github.com/matsen/litreview/internal/settings"
)

// DefaultTimeout bounds one endpoint call on one record.
const DefaultTimeout = 60 * time.Second

// LocalIndex is the read-only view of the local index.
type LocalIndex interface {
	GetByColrevID(colrevID string) (*localindex.Entry, error)
	GetByDOI(doi string) (*localindex.Entry, error)
	File(colrevID string) (string, error)
}

// PaperLookup is the metadata service used by Semantic Scholar endpoints.
type PaperLookup interface {
	GetPaperByDOI(ctx context.Context, doi string) (*s2.Paper, error)
	SearchAll(ctx context.Context, query string, max int) ([]s2.Paper, error)
}

// Containers tracks external containers started during an operation so
// they can be stopped when it ends.
type Containers interface {
	Register(image, containerID string)
}

// Env is what an endpoint is constructed with. LocalIndex and Papers may
// be nil when unavailable. Sources holds the configured search sources
// while prep runs.
type Env struct {
	Root       string
	Settings   *settings.Settings
	Logger     *logging.Logger
	Reporter   *logging.Reporter
	Quality    *quality.Model
	LocalIndex LocalIndex
	Papers     PaperLookup
	Containers Containers
	Sources    []SearchSource
	Timeout    time.Duration
}

// Path resolves a repository-relative path.
func (e *Env) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.Root, rel)
}

// CallTimeout returns the per-call timeout.
func (e *Env) CallTimeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

type similarityKey struct{}

// WithSimilarity attaches the similarity threshold of the current prep
// round to ctx.
func WithSimilarity(ctx context.Context, threshold float64) context.Context {
	return context.WithValue(ctx, similarityKey{}, threshold)
}

// Similarity returns the prep round's similarity threshold, or def when
// none is set.
func Similarity(ctx context.Context, def float64) float64 {
	if t, ok := ctx.Value(similarityKey{}).(float64); ok && t > 0 {
		return t
	}
	return def
}
