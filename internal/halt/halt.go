// Package halt persists the daily trading halt. The flag is a plain-text
// file; its absence means trading is allowed.
package halt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const Sentinel = "halted"

type Store interface {
	Halted() (bool, error)
	Halt() error
}

type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Halted() (bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read halt file: %w", err)
	}
	return strings.TrimSpace(string(data)) == Sentinel, nil
}

// Halt writes the sentinel through a temp file and rename so a crash never
// leaves a half-written flag behind.
func (s *FileStore) Halt() error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create halt dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".halt-*")
	if err != nil {
		return fmt.Errorf("create halt temp file: %w", err)
	}
	if _, err := tmp.WriteString(Sentinel); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write halt file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close halt file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename halt file: %w", err)
	}
	return nil
}
