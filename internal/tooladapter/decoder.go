package tooladapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/romvault/internal/container"
)

// Registry resolves the Tool for every external binary the core shells
// out to, and implements container.ExternalDecoder so the delegated
// archive kinds (CSO/ZSO/RVZ/NSZ/CIA) can decode through the same
// probe()/run() machinery as the Converter/Rebuilder.
type Registry struct {
	SevenZip    *Tool
	CHDMan      *Tool
	MaxCSO      *Tool
	DolphinTool *Tool
	Flips       *Tool
	Wit         *Tool
	BChunk      *Tool
	XDelta3     *Tool
	NSZ         *Tool
	CTRTool     *Tool
}

// PathConfig is the per-tool explicit-path override read from settings
// (spec.md §4.9 "Tool discovery order: explicit path in config → PATH").
type PathConfig struct {
	SevenZip    string
	CHDMan      string
	MaxCSO      string
	DolphinTool string
	Flips       string
	Wit         string
	BChunk      string
	XDelta3     string
	NSZ         string
	CTRTool     string
}

// NewRegistry wires every tool with its discovery candidates, sharing one
// Semaphore of size concurrency across all of them so TOOL_CONCURRENCY
// bounds the total external-tool subprocess count (spec.md §5). concurrency
// <= 0 falls back to DefaultConcurrency. 7z gets the Mac 7zz-then-7z
// fallback named explicitly in spec.md §4.9; the rest have one canonical
// binary name.
func NewRegistry(cfg PathConfig, concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	sem := NewSemaphore(concurrency)
	reg := &Registry{
		SevenZip:    New("7z", cfg.SevenZip, "7zz", "7z"),
		CHDMan:      New("chdman", cfg.CHDMan, "chdman"),
		MaxCSO:      New("maxcso", cfg.MaxCSO, "maxcso"),
		DolphinTool: New("dolphin-tool", cfg.DolphinTool, "dolphin-tool"),
		Flips:       New("flips", cfg.Flips, "flips"),
		Wit:         New("wit", cfg.Wit, "wit"),
		BChunk:      New("bchunk", cfg.BChunk, "bchunk"),
		XDelta3:     New("xdelta3", cfg.XDelta3, "xdelta3"),
		NSZ:         New("nsz", cfg.NSZ, "nsz"),
		CTRTool:     New("ctrtool", cfg.CTRTool, "ctrtool"),
	}
	for _, t := range []*Tool{reg.SevenZip, reg.CHDMan, reg.MaxCSO, reg.DolphinTool, reg.Flips, reg.Wit, reg.BChunk, reg.XDelta3, reg.NSZ, reg.CTRTool} {
		t.Sem = sem
	}
	return reg
}

// DecodeToFile dispatches by source extension to the tool that can
// produce a raw ISO-equivalent stream, satisfying container.ExternalDecoder.
func (r *Registry) DecodeToFile(ctx context.Context, srcPath, destDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(srcPath))
	switch ext {
	case ".cso", ".zso":
		return r.decodeViaMaxCSO(ctx, srcPath, destDir)
	case ".rvz":
		return r.decodeViaDolphinTool(ctx, srcPath, destDir)
	case ".nsz":
		return r.decodeViaNSZ(ctx, srcPath, destDir)
	case ".cia":
		return r.decodeViaCTRTool(ctx, srcPath, destDir)
	default:
		return "", fmt.Errorf("tooladapter: no external decoder for %s", ext)
	}
}

func (r *Registry) decodeViaMaxCSO(ctx context.Context, srcPath, destDir string) (string, error) {
	out := filepath.Join(destDir, swapExt(srcPath, ".iso"))
	if _, err := r.MaxCSO.Run(ctx, []string{"--decompress", srcPath, "-o", out}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Registry) decodeViaDolphinTool(ctx context.Context, srcPath, destDir string) (string, error) {
	out := filepath.Join(destDir, swapExt(srcPath, ".iso"))
	if _, err := r.DolphinTool.Run(ctx, []string{"convert", "-i", srcPath, "-o", out, "-f", "iso"}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Registry) decodeViaNSZ(ctx context.Context, srcPath, destDir string) (string, error) {
	out := filepath.Join(destDir, swapExt(srcPath, ".nsp"))
	if _, err := r.NSZ.Run(ctx, []string{"-D", "-o", destDir, srcPath}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Registry) decodeViaCTRTool(ctx context.Context, srcPath, destDir string) (string, error) {
	out := filepath.Join(destDir, swapExt(srcPath, ".3ds"))
	if _, err := r.CTRTool.Run(ctx, []string{srcPath, "--output=" + out}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func swapExt(path, newExt string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + newExt
}

var _ container.ExternalDecoder = (*Registry)(nil)
