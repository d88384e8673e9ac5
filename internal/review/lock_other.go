//go:build !unix

package review

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileLock falls back to an exclusively created lock file.
type fileLock struct {
	path string
}

func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	f.Close()
	return &fileLock{path: path}, nil
}

func (l *fileLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}
