package container

import (
	"archive/zip"
	"fmt"
	"io"
)

// zipSource wraps stdlib archive/zip, the same library the teacher's
// openArchive uses for the ".zip" case in internal/sdk/sdk.go — one entry
// per member, CRC32 preserved from the central directory (spec.md §4.4
// "preserves CRC from central directory if trustworthy").
type zipSource struct {
	rc      *zip.ReadCloser
	entries []Entry
}

func openZip(path string) (ContentSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("container: open zip %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(rc.File))
	for _, f := range rc.File {
		f := f
		size := int64(f.UncompressedSize64)
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
	return &zipSource{rc: rc, entries: entries}, nil
}

func (s *zipSource) Entries() []Entry { return s.entries }
func (s *zipSource) Close() error     { return s.rc.Close() }
