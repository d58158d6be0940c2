package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// jbFolderSource recursively walks a directory, producing one entry per
// regular file with a logical name relative to the folder root — spec.md
// §4.4 "JB folder (directory) | recursive walk; logical names relative to
// folder root | Used for PS3 IRD matching". Grounded on the teacher's
// collectPaths (internal/sdk/sdk.go), generalized from "build a flat path
// list" to "build Entry values with lazy per-file opens".
type jbFolderSource struct {
	entries []Entry
}

func openJBFolder(root string) (ContentSource, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = strings.ReplaceAll(rel, string(filepath.Separator), "/")
		fi, err := d.Info()
		if err != nil {
			return err
		}
		path := p
		entries = append(entries, newStaticEntry(rel, fi.Size(), func() (io.ReadCloser, error) {
			return os.Open(path)
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("container: walk jb folder %s: %w", root, err)
	}
	return &jbFolderSource{entries: entries}, nil
}

func (s *jbFolderSource) Entries() []Entry { return s.entries }
func (s *jbFolderSource) Close() error     { return nil }

func isDirectory(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("container: stat %s: %w", path, err)
	}
	return fi.IsDir(), nil
}
