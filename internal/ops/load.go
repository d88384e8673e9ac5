package ops

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// LoadOptions configures Load.
type LoadOptions struct {
	Options
	// Rerun asks API sources to repeat their full search.
	Rerun bool
}

// Load imports new records from every search source.
func Load(ctx context.Context, m *review.Manager, opts LoadOptions) (*Result, error) {
	op, err := m.NewOperation(state.Load, true)
	if err != nil {
		return nil, err
	}
	return run(ctx, op, func(ctx context.Context) error {
		added, err := DiscoverSources(m)
		if err != nil {
			return err
		}
		if len(added) > 0 {
			if err := m.SaveSettings(); err != nil {
				return err
			}
			op.AddPaths(settings.SettingsFile)
		}

		sources, err := m.Registry.LoadSearchSources(m.Env(), m.Settings.Sources, opts.load())
		if err != nil {
			return err
		}
		recs, err := m.Dataset.LoadRecords()
		if err != nil {
			return err
		}
		origins := recs.OriginIndex()

		var imported []*record.Record
		for _, src := range sources {
			if err := src.Search(ctx, opts.Rerun); err != nil {
				return fmt.Errorf("searching %s: %w", src.Filename(), err)
			}
			var batch []*record.Record
			for r, err := range src.Records(ctx) {
				if err != nil {
					return fmt.Errorf("reading %s: %w", src.Filename(), err)
				}
				batch = append(batch, r)
			}
			batch = src.LoadFixes(batch)

			base := filepath.Base(src.Filename())
			n := 0
			for _, r := range batch {
				origin := base + "/" + r.ID
				if _, seen := origins[origin]; seen {
					continue
				}
				r.Origins = []string{origin}
				r.InitProvenance(origin)
				r.ID = GenerateID(r, m.Settings.Project.IDPattern, recs.Has)
				r.Status = state.MDRetrieved
				if err := recs.Add(r); err != nil {
					return err
				}
				origins[origin] = r.ID
				imported = append(imported, r)
				n++
			}
			m.Logger.Info("loaded search source", "source", src.Filename(), "new", n, "total", len(batch))
			if _, err := os.Stat(m.Path(src.Filename())); err == nil {
				op.AddPaths(src.Filename())
			}
		}

		op.SetPad(dataset.MaxIDWidth(imported))
		for _, r := range imported {
			if _, err := op.Transition(r, state.MDImported); err != nil {
				return err
			}
		}
		return m.Dataset.SaveRecords(recs)
	})
}

// DiscoverSources registers files in the search directory that no source
// reads yet, picking the endpoint with the highest heuristic confidence.
// Files no heuristic recognizes are skipped with a warning.
func DiscoverSources(m *review.Manager) ([]settings.SearchSource, error) {
	dir := m.Path(settings.SearchDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading search directory: %w", err)
	}
	var added []settings.SearchSource
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rel := path.Join(settings.SearchDir, e.Name())
		if m.Settings.SourceByFilename(rel) != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		results := m.Registry.Heuristic(e.Name(), data)
		if len(results) == 0 {
			m.Reporter.Warnf("no search source recognizes %s", rel)
			continue
		}
		src := settings.SearchSource{
			Endpoint:   results[0].Endpoint,
			Filename:   rel,
			SearchType: settings.SearchTypeDB,
		}
		m.Logger.Info("discovered search source", "file", rel, "endpoint", src.Endpoint, "confidence", results[0].Confidence)
		m.Settings.Sources = append(m.Settings.Sources, src)
		added = append(added, src)
	}
	return added, nil
}
