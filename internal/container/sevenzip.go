package container

import (
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZipSource wraps github.com/bodgit/sevenzip, exactly as the
// teacher's openArchive does for the ".7z" case in internal/sdk/sdk.go —
// promoted here from an undeclared transitive import in the teacher's
// go.mod to a properly declared direct dependency.
type sevenZipSource struct {
	rc      *sevenzip.ReadCloser
	entries []Entry
}

func openSevenZip(path string) (ContentSource, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("container: open 7z %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(rc.File))
	for _, f := range rc.File {
		f := f
		size := int64(f.UncompressedSize)
		crc := f.CRC32
		entries = append(entries, Entry{
			LogicalName: f.Name,
			Size:        &size,
			CRC32:       &crc,
			open: func() (io.ReadCloser, error) {
				return f.Open()
			},
			peekHead: func(n int) ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				buf := make([]byte, n)
				m, err := io.ReadFull(rc, buf)
				if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
					return nil, err
				}
				return buf[:m], nil
			},
		})
	}
	return &sevenZipSource{rc: rc, entries: entries}, nil
}

func (s *sevenZipSource) Entries() []Entry { return s.entries }
func (s *sevenZipSource) Close() error     { return s.rc.Close() }
