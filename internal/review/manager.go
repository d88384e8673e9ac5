// Package review ties a review repository together: settings, dataset,
// git, endpoint registry, and the process-wide resources operations share.
package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/localindex"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/quality"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// Options configures Open. Zero values select defaults.
type Options struct {
	Logger   *logging.Logger
	Reporter *logging.Reporter
	Registry *pkgmgr.Registry
	Identity git.Identity

	// LocalIndexPath is opened read-only when the file exists.
	LocalIndexPath string
	Papers         endpoint.PaperLookup

	Workers int
	Timeout time.Duration
}

// Manager is an open review repository.
type Manager struct {
	Root       string
	Settings   *settings.Settings
	Dataset    *dataset.Dataset
	Repo       *git.Repo
	StateModel *state.Model
	Quality    *quality.Model
	Registry   *pkgmgr.Registry
	Logger     *logging.Logger
	Reporter   *logging.Reporter
	LocalIndex *localindex.Index
	Containers *Containers
	Papers     endpoint.PaperLookup

	workers int
	timeout time.Duration
}

// Open loads the repository at root. root must contain settings.json and
// be inside a git working tree.
func Open(root string, opts Options) (*Manager, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	s, err := settings.Load(root)
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(root, opts.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a git repository", ErrRepoSetup, root)
	}

	m := &Manager{
		Root:       root,
		Settings:   s,
		Dataset:    dataset.New(root, repo),
		Repo:       repo,
		StateModel: state.NewModel(),
		Quality:    quality.NewModel(),
		Registry:   opts.Registry,
		Logger:     opts.Logger,
		Reporter:   opts.Reporter,
		Papers:     opts.Papers,
		workers:    opts.Workers,
		timeout:    opts.Timeout,
	}
	if m.Logger == nil {
		m.Logger = logging.Nop()
	}
	if m.Reporter == nil {
		m.Reporter = logging.Discard()
	}
	if m.Registry == nil {
		m.Registry = pkgmgr.NewRegistry()
	}
	m.Containers = NewContainers(m.Logger)

	if opts.LocalIndexPath != "" {
		idx, err := localindex.OpenReadOnly(opts.LocalIndexPath)
		switch {
		case err == nil:
			m.LocalIndex = idx
		case errors.Is(err, localindex.ErrNotFound):
			m.Logger.Debug("local index not built", "path", opts.LocalIndexPath)
		default:
			return nil, fmt.Errorf("opening local index: %w", err)
		}
	}
	return m, nil
}

// Close stops registered containers and closes the local index.
func (m *Manager) Close() error {
	err := m.Containers.StopAll(context.Background())
	if m.LocalIndex != nil {
		if cerr := m.LocalIndex.Close(); err == nil {
			err = cerr
		}
		m.LocalIndex = nil
	}
	return err
}

// Env returns the environment endpoints are constructed with.
func (m *Manager) Env() *endpoint.Env {
	env := &endpoint.Env{
		Root:       m.Root,
		Settings:   m.Settings,
		Logger:     m.Logger,
		Reporter:   m.Reporter,
		Quality:    m.Quality,
		Papers:     m.Papers,
		Containers: m.Containers,
		Timeout:    m.timeout,
	}
	if m.LocalIndex != nil {
		env.LocalIndex = m.LocalIndex
	}
	return env
}

// Workers returns the size of the per-record worker pool.
func (m *Manager) Workers(renderingHeavy bool) int {
	return poolSize(m.workers, renderingHeavy)
}

// Timeout returns the per-call endpoint timeout.
func (m *Manager) Timeout() time.Duration {
	if m.timeout > 0 {
		return m.timeout
	}
	return endpoint.DefaultTimeout
}

// Path resolves a repository-relative path.
func (m *Manager) Path(rel string) string {
	return filepath.Join(m.Root, rel)
}

// SaveSettings writes the settings back to settings.json.
func (m *Manager) SaveSettings() error {
	if err := m.Settings.Validate(); err != nil {
		return err
	}
	return m.Settings.Save(m.Root)
}
