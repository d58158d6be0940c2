package mover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ScanForeign walks systemDir and reports every regular file whose path,
// relative to rootDir and POSIX-normalized, is not a key of known — the
// set of Romfile.Path values the catalog already tracks for this System.
// spec.md §4.7 "files under the System's directory not known to C1 are
// reported".
func ScanForeign(rootDir, systemDir string, known map[string]bool) ([]string, error) {
	var foreign []string
	err := filepath.WalkDir(systemDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if !known[rel] {
			foreign = append(foreign, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mover: scan foreign under %s: %w", systemDir, err)
	}
	return foreign, nil
}

// DeleteForeign removes every path in foreign (as returned by ScanForeign,
// relative to rootDir) and returns the subset actually deleted — the `-f
// foreign` flag's effect. It keeps going past individual removal errors so
// one locked or already-gone file doesn't abort the rest of the batch.
func DeleteForeign(rootDir string, foreign []string) ([]string, error) {
	deleted := make([]string, 0, len(foreign))
	var firstErr error
	for _, rel := range foreign {
		abs := filepath.Join(rootDir, filepath.FromSlash(rel))
		if err := os.Remove(abs); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("mover: delete foreign %s: %w", rel, err)
			}
			continue
		}
		deleted = append(deleted, rel)
	}
	return deleted, firstErr
}
