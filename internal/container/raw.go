package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type rawSource struct {
	path  string
	entry Entry
}

func openRaw(path string) (ContentSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("container: stat %s: %w", path, err)
	}
	size := fi.Size()
	entry := newStaticEntry(filepath.Base(path), size, func() (io.ReadCloser, error) {
		return os.Open(path)
	})
	return &rawSource{path: path, entry: entry}, nil
}

func (s *rawSource) Entries() []Entry { return []Entry{s.entry} }
func (s *rawSource) Close() error     { return nil }
