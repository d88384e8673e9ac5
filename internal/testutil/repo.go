package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/settings"
)

// Identity is the committer used by test repositories.
var Identity = git.Identity{Name: "Test", Email: "test@example.org"}

// NewRepo creates a committed review repository holding s and an empty
// records file. The test is skipped when git is not installed.
func NewRepo(t testing.TB, s *settings.Settings) string {
	t.Helper()
	if !git.Available() {
		t.Skip("git not available")
	}
	ctx := context.Background()
	root := t.TempDir()
	repo, err := git.Init(ctx, root, Identity)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(root); err != nil {
		t.Fatal(err)
	}
	WriteFile(t, root, settings.GitIgnoreFile, settings.WorkDir+"/\n")
	WriteFile(t, root, "data/records.bib", "")
	WriteFile(t, root, settings.SearchDir+"/.gitkeep", "")
	if err := repo.Add(ctx, settings.SettingsFile, settings.GitIgnoreFile, "data"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Commit(ctx, "Init"); err != nil {
		t.Fatal(err)
	}
	return root
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
