package hashengine

import (
	"context"
	"fmt"
	"os"

	"github.com/xxxsen/romvault/internal/model"
)

// HashFile opens path and runs a plain HashReader pass over it — the
// direct file-path entry point the teacher's fileMD5/fileSHA1 exposed,
// kept for callers (C5 Matcher, the check-roms runner) that just need a
// path's digests and don't have a Header in scope.
func HashFile(ctx context.Context, path string, chunkKB int) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("hashengine: open %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(ctx, f, chunkKB)
}

// HashFileWithHeader is HashFile's header-aware counterpart.
func HashFileWithHeader(ctx context.Context, path string, h *model.Header, chunkKB int) (HeaderResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return HeaderResult{}, fmt.Errorf("hashengine: open %s: %w", path, err)
	}
	defer f.Close()
	return HashWithHeader(ctx, f, h, chunkKB)
}
