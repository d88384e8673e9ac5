package ops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/litreview/internal/localindex"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// IndexResult describes a local index build.
type IndexResult struct {
	Path    string `json:"path"`
	Indexed int    `json:"indexed"`
	// UpToDate is true when the index already matched the records file.
	UpToDate bool `json:"up_to_date"`
}

// BuildIndex adds the repository's prepared records to the local index at
// path, or at the repository's default location when path is empty. The
// build is skipped when the records file is unchanged since the last one,
// unless force is set.
func BuildIndex(m *review.Manager, path string, force bool) (*IndexResult, error) {
	if path == "" {
		path = m.Path(settings.LocalIndexFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fp, err := localindex.Fingerprint(m.Dataset.Path())
	if err != nil {
		return nil, fmt.Errorf("fingerprinting records: %w", err)
	}
	idx, err := localindex.Open(path)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	res := &IndexResult{Path: path}
	if !force {
		stale, err := idx.NeedsRebuild(m.Root, fp)
		if err != nil {
			return nil, err
		}
		if !stale {
			res.UpToDate = true
			res.Indexed, err = idx.Count()
			return res, err
		}
	}
	recs, err := m.Dataset.LoadRecords()
	if err != nil {
		return nil, err
	}
	res.Indexed, err = idx.Build(m.Root, fp, recs.InState(statesAfter(state.MDPrepared)...))
	if err != nil {
		return nil, err
	}
	m.Logger.Info("local index built", "path", path, "records", res.Indexed)
	return res, nil
}
