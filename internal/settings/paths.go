package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

// Repository layout, relative to the root.
const (
	SettingsFile   = "settings.json"
	DataDir        = "data"
	SearchDir      = "data/search"
	PDFDir         = "data/pdfs"
	PrepManDir     = "data/prep_man"
	PDFGetManDir   = "data/pdf_get_man"
	PDFPrepManDir  = "data/pdf_prep_man"
	PrescreenDir   = "data/prescreen"
	ScreenDir      = "data/screen"
	OutputDir      = "data/data"
	WorkDir        = ".lrv"
	LockFile       = ".lrv/lock"
	LocalIndexFile = ".lrv/localindex.db"
	GitIgnoreFile  = ".gitignore"
)

// SettingsPath returns the path to settings.json from a root path.
func SettingsPath(root string) string {
	return filepath.Join(root, SettingsFile)
}

// IsRepository checks if the given path contains a review repository.
func IsRepository(root string) bool {
	info, err := os.Stat(SettingsPath(root))
	return err == nil && !info.IsDir()
}

// FindRepository walks up from the given path to find a review repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w (no %s found)", ErrNotRepository, SettingsFile)
		}
		abs = parent
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
