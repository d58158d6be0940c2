package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Arena manages TMP_DIRECTORY: every extraction gets its own
// uuid-suffixed subdirectory, with cleanup guaranteed on every exit path
// (spec.md §4.4 "extraction is always into TMP_DIRECTORY under a
// per-invocation unique subdirectory, with scoped cleanup guaranteed on
// every exit path"). google/uuid is already a transitive dependency of
// the teacher's stack (pulled in via xxxsen/common); promoted to direct
// use here for subdirectory naming.
type Arena struct {
	root string
}

// NewArena returns an Arena rooted at tmpDir, creating it if absent.
func NewArena(tmpDir string) (*Arena, error) {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("container: create tmp arena root %s: %w", tmpDir, err)
	}
	return &Arena{root: tmpDir}, nil
}

// Scope creates a fresh uuid-named subdirectory and returns its path plus
// a cleanup function the caller must invoke (typically via defer) on every
// exit path — success, error, or cancellation.
func (a *Arena) Scope() (string, func(), error) {
	dir := filepath.Join(a.root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("container: create tmp scope %s: %w", dir, err)
	}
	cleanup := func() { os.RemoveAll(dir) }
	return dir, cleanup, nil
}
