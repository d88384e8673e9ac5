package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Viewer opens the PDFs of a review in an external application, for the
// manual PDF steps.
type Viewer struct {
	root string
	app  string
}

// NewViewer returns a viewer for PDFs under root. app names the
// application ("system" when empty).
func NewViewer(root, app string) *Viewer {
	if app == "" {
		app = "system"
	}
	return &Viewer{root: root, app: app}
}

// Resolve returns the absolute path of a record's file field, which may be
// relative to the review root.
func (v *Viewer) Resolve(file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("record has no file")
	}
	full := file
	if !filepath.IsAbs(full) {
		full = filepath.Join(v.root, file)
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("PDF not found: %s", full)
		}
		return "", fmt.Errorf("checking PDF: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", full)
	}
	return full, nil
}

// Open resolves file and starts the viewer without waiting for it.
func (v *Viewer) Open(file string) error {
	full, err := v.Resolve(file)
	if err != nil {
		return err
	}
	cmd, err := v.command(runtime.GOOS, full)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func (v *Viewer) command(goos, path string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		switch v.app {
		case "skim":
			return exec.Command("open", "-a", "Skim", path), nil
		case "preview":
			return exec.Command("open", "-a", "Preview", path), nil
		}
		return exec.Command("open", path), nil
	case "linux":
		switch v.app {
		case "zathura", "evince", "okular":
			return exec.Command(v.app, path), nil
		}
		return exec.Command("xdg-open", path), nil
	}
	return nil, fmt.Errorf("unsupported platform: %s", goos)
}
