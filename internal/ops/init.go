package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/endpoint"
	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/pkgmgr"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/settings"
)

// DefaultReviewType is used when init is given none.
const DefaultReviewType = "lrv.literature_review"

// InitOptions configures Init.
type InitOptions struct {
	ReviewType string
	Title      string
	Registry   *pkgmgr.Registry
	Identity   git.Identity
	// Force allows a directory that already holds files.
	Force bool
}

// gitignore lists paths kept out of version control.
var gitignore = []string{
	settings.WorkDir + "/",
	settings.PDFDir + "/",
	"*.tmp",
}

// Init creates a review repository in dir: settings from the review type,
// the empty records file, the search directory, and a first commit.
func Init(ctx context.Context, dir string, opts InitOptions) (*Result, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if !opts.Force {
		if err := checkEmpty(dir); err != nil {
			return nil, err
		}
	}
	if settings.IsRepository(dir) {
		return nil, fmt.Errorf("%w: %s already holds %s", review.ErrRepoInit, dir, settings.SettingsFile)
	}
	if opts.ReviewType == "" {
		opts.ReviewType = DefaultReviewType
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: no endpoint registry", review.ErrRepoInit)
	}

	s := settings.Default(opts.ReviewType)
	s.Project.Title = opts.Title
	rt, err := opts.Registry.ReviewType(&endpoint.Env{Root: dir, Settings: s}, opts.ReviewType)
	if err != nil {
		return nil, err
	}
	rt.ApplyDefaults(s)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("review type %s: %w", opts.ReviewType, err)
	}

	repo, err := git.Init(ctx, dir, opts.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrRepoInit, err)
	}
	for _, sub := range []string{settings.SearchDir, settings.PDFDir, settings.WorkDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", review.ErrRepoInit, err)
		}
	}
	files := []struct {
		rel     string
		content string
	}{
		{settings.GitIgnoreFile, strings.Join(gitignore, "\n") + "\n"},
		{filepath.Join(settings.SearchDir, ".gitkeep"), ""},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.rel), []byte(f.content), 0o644); err != nil {
			return nil, fmt.Errorf("%w: %v", review.ErrRepoInit, err)
		}
	}
	if err := s.Save(dir); err != nil {
		return nil, err
	}
	ds := dataset.New(dir, repo)
	if err := ds.SaveRecords(dataset.NewRecords()); err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = filepath.Base(dir)
	}
	sha, err := ds.Commit(ctx, "Init: "+title+"\n\nReview type: "+opts.ReviewType+"\n",
		settings.SettingsFile, settings.GitIgnoreFile, settings.SearchDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrRepoInit, err)
	}
	return &Result{Operation: "init", Commit: sha, Counts: map[string]int{}, Summary: title}, nil
}

// checkEmpty fails when dir holds visible files.
func checkEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			return fmt.Errorf("%w: %s contains %s", review.ErrNonEmptyDirectory, dir, e.Name())
		}
	}
	return nil
}
