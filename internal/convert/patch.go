package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/tooladapter"
)

// PatchApplier applies a Patch's Romfile against a Rom's current on-disk
// bytes to produce the patched ROM, the operation "import-patches"
// ultimately exists to drive — spec.md §3 "Patch: belongs to a Rom;
// ordered by index; references its own Romfile", supplemented here since
// the distilled spec names the entity but not its apply step.
type PatchApplier struct {
	Tools *tooladapter.Registry
}

// Apply dispatches by the patch file's extension: .xdelta goes to
// xdelta3, .ips/.bps to flips (the two patch formats it supports).
func (p *PatchApplier) Apply(ctx context.Context, baseRomPath, patchPath, outPath string) error {
	ext := strings.ToLower(filepath.Ext(patchPath))
	switch ext {
	case ".xdelta":
		_, err := p.Tools.XDelta3.Run(ctx, []string{"-d", "-s", baseRomPath, patchPath, outPath}, nil, nil)
		return err
	case ".ips", ".bps":
		_, err := p.Tools.Flips.Run(ctx, []string{"--apply", patchPath, baseRomPath, outPath}, nil, nil)
		return err
	default:
		return fmt.Errorf("convert: no patch applier for %s", ext)
	}
}

// ForPatch resolves the base Rom and patch Romfile paths under rootDir and
// runs Apply, writing patched-<patch id><base ext> beside the base file.
func (p *PatchApplier) ForPatch(ctx context.Context, rootDir string, patch model.Patch, basePath, patchPath string) (string, error) {
	outPath := filepath.Join(filepath.Dir(filepath.Join(rootDir, filepath.FromSlash(basePath))), fmt.Sprintf("patched-%d%s", patch.ID, filepath.Ext(basePath)))
	if err := p.Apply(ctx, filepath.Join(rootDir, filepath.FromSlash(basePath)), filepath.Join(rootDir, filepath.FromSlash(patchPath)), outPath); err != nil {
		return "", err
	}
	return outPath, nil
}
