package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// delegatedSource decodes a compressed-disc format this package cannot
// read natively by handing it to the External Tool Adapter (C9) once, into
// a scratch file under the caller-supplied Arena, then exposes that
// decoded file as a single raw entry — spec.md §4.4 "CSO / ZSO / RVZ |
// one ISO-equivalent stream | Delegates decompression to C9", same row
// for NSZ/CIA.
type delegatedSource struct {
	cleanup func()
	entry   Entry
}

func openDelegated(ctx context.Context, path string, kind Kind, decoder ExternalDecoder, arena *Arena) (ContentSource, error) {
	if decoder == nil {
		return nil, fmt.Errorf("container: %s requires an external decoder but none was configured", kind)
	}
	if arena == nil {
		return nil, fmt.Errorf("container: %s requires a tmp arena but none was configured", kind)
	}

	scopeDir, cleanup, err := arena.Scope()
	if err != nil {
		return nil, err
	}

	decoded, err := decoder.DecodeToFile(ctx, path, scopeDir)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("container: decode %s via external tool: %w", kind, err)
	}

	fi, err := os.Stat(decoded)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("container: stat decoded %s: %w", kind, err)
	}

	entry := newStaticEntry(filepath.Base(decoded), fi.Size(), func() (io.ReadCloser, error) {
		return os.Open(decoded)
	})
	return &delegatedSource{cleanup: cleanup, entry: entry}, nil
}

func (s *delegatedSource) Entries() []Entry { return []Entry{s.entry} }
func (s *delegatedSource) Close() error     { s.cleanup(); return nil }
