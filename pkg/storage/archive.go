package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Archive keeps rendered export documents on disk so past rosters stay
// retrievable after their cache entries lapse.
type Archive struct {
	baseDir string
}

// NewArchive creates the base directory if needed and returns a handle.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("archive directory not configured")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Save writes data under the base directory and returns the full path. Path
// separators in filename are stripped so callers cannot escape the base.
func (a *Archive) Save(filename string, data []byte) (string, error) {
	path := a.Path(filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return path, nil
}

// Prune removes archived files older than ttl and returns how many went.
func (a *Archive) Prune(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read archive directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("stat archive file: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.baseDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove archive file: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Path resolves filename inside the base directory.
func (a *Archive) Path(filename string) string {
	return filepath.Join(a.baseDir, filepath.Base(filename))
}
