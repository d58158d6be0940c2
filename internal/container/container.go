// Package container is the Archive/Container Adapter (C4): a uniform
// interface over raw files, ZIP/7Z archives, CHD, and the delegated
// compressed-disc formats (CSO/ZSO/RVZ/NSZ/CIA), plus JB-folder directory
// trees used for PS3 IRD matching.
package container

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Entry is one logical member a ContentSource exposes — spec.md §4.4
// "{logical_name, size?, read_stream, peek_head}".
type Entry struct {
	LogicalName string
	Size        *int64
	CRC32       *uint32 // trusted value from the container's own index, if any

	open     func() (io.ReadCloser, error)
	peekHead func(n int) ([]byte, error)
}

// Open returns a fresh reader over the entry's bytes; the caller closes it.
func (e Entry) Open() (io.ReadCloser, error) { return e.open() }

// PeekHead returns up to n bytes from the start of the entry without
// consuming a stream the caller will Open separately — used by
// header-aware hashing probes.
func (e Entry) PeekHead(n int) ([]byte, error) { return e.peekHead(n) }

// ContentSource yields the logical entries found inside one opened
// container. Container operations never modify their inputs (spec.md
// §4.4); Close releases whatever file handles were opened.
type ContentSource interface {
	Entries() []Entry
	Close() error
}

// ExternalDecoder delegates decompression of a container kind this
// package cannot read natively (CSO/ZSO/RVZ/NSZ/CIA) to the External Tool
// Adapter (C9). Declared here, rather than importing internal/tooladapter's
// concrete registry type, to avoid a container<->tooladapter import cycle;
// the app wiring layer supplies the concrete implementation.
type ExternalDecoder interface {
	// DecodeToFile decompresses srcPath into a freshly created file under
	// destDir and returns its path.
	DecodeToFile(ctx context.Context, srcPath, destDir string) (string, error)
}

// Kind identifies which adapter Open dispatched to.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindZip       Kind = "zip"
	KindSevenZip  Kind = "7z"
	KindCHD       Kind = "chd"
	KindCSO       Kind = "cso"
	KindZSO       Kind = "zso"
	KindRVZ       Kind = "rvz"
	KindNSZ       Kind = "nsz"
	KindCIA       Kind = "cia"
	KindJBFolder  Kind = "jbfolder"
)

// delegatedExtensions maps a delegated-format extension to its Kind,
// spec.md §4.4's "CSO / ZSO / RVZ | one ISO-equivalent stream | Delegates
// decompression to C9" row plus the NSZ/CIA row.
var delegatedExtensions = map[string]Kind{
	".cso": KindCSO,
	".zso": KindZSO,
	".rvz": KindRVZ,
	".nsz": KindNSZ,
	".cia": KindCIA,
}

// Open dispatches path to the right adapter by its extension alone: a
// known archive or delegated-format extension picks that adapter, any
// other path opens as a JB folder if it is a directory and as a raw file
// otherwise. File contents are not sniffed, so a file with a missing or
// wrong extension opens as raw. decoder may be nil if the caller never
// touches a delegated format.
func Open(ctx context.Context, path string, decoder ExternalDecoder, arena *Arena) (ContentSource, Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".zip":
		src, err := openZip(path)
		return src, KindZip, err
	case ".7z":
		src, err := openSevenZip(path)
		return src, KindSevenZip, err
	case ".chd":
		src, err := openCHD(path)
		return src, KindCHD, err
	}

	if kind, ok := delegatedExtensions[ext]; ok {
		src, err := openDelegated(ctx, path, kind, decoder, arena)
		return src, kind, err
	}

	if isDir, err := isDirectory(path); err != nil {
		return nil, "", err
	} else if isDir {
		src, err := openJBFolder(path)
		return src, KindJBFolder, err
	}

	src, err := openRaw(path)
	return src, KindRaw, err
}

func newStaticEntry(name string, size int64, open func() (io.ReadCloser, error)) Entry {
	s := size
	return Entry{
		LogicalName: name,
		Size:        &s,
		open:        open,
		peekHead: func(n int) ([]byte, error) {
			rc, err := open()
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
	}
}

func unsupportedFormat(ext string) error {
	return fmt.Errorf("container: unsupported format %q", ext)
}
