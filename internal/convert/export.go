package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/storage"
	"github.com/xxxsen/romvault/internal/store"
	"github.com/xxxsen/romvault/internal/tooladapter"
)

// ExportTarget is a local directory, or an S3 key prefix when S3Prefix is
// set, spec.md §4.8 "writes to an out-of-tree target directory".
type ExportTarget struct {
	LocalDir string
	S3Prefix string // set when exporting to storage.Client instead of LocalDir
}

// ExportOptions mirrors Options but never mutates the catalog: export
// never calls reconcile, never trashes a Romfile, and never touches
// ROOT_DIR — only LocalDir/S3 gets written.
type ExportOptions struct {
	Target     Format
	OnlyOneG1R bool
}

// Exporter writes Converter-equivalent output to a target outside
// ROOT_DIR, leaving the catalog and original Romfiles untouched —
// spec.md §4.8 "like Converter but writes to an out-of-tree target
// directory; original Romfiles untouched". Reuses Converter's stage and
// encode stages since the format-dispatch logic is identical; only the
// publish step differs (copy-out instead of swap-rename-reconcile).
type Exporter struct {
	RootDir string
	Tools   *tooladapter.Registry
	Arena   *container.Arena
	Store   *store.Store
	ChunkKB int

	conv *Converter
}

func (e *Exporter) converter() *Converter {
	if e.conv == nil {
		e.conv = &Converter{RootDir: e.RootDir, Tools: e.Tools, Arena: e.Arena, Store: e.Store, ChunkKB: e.ChunkKB}
	}
	return e.conv
}

// Export stages and encodes rf the same way Convert does, then copies
// the result to target instead of back into ROOT_DIR. Lossy targets
// (WBFS, NSZ, ISO via bchunk) are permitted here even though Convert's
// equivalence classes would also accept them — export has no
// obligation to keep the catalog's declared hash meaningful afterward.
func (e *Exporter) Export(ctx context.Context, rom model.Rom, rf model.Romfile, target ExportTarget, opts ExportOptions) (model.ConversionResult, error) {
	c := e.converter()
	result := model.ConversionResult{RomName: rom.Name, FromPath: rf.Path, State: string(StatePlanned)}

	srcAbs := filepath.Join(c.RootDir, filepath.FromSlash(rf.Path))
	srcFormat := FormatFromExt(filepath.Ext(rf.Path))

	if !SameClass(srcFormat, opts.Target) {
		return c.fail(result, ErrIncompatibleFormat)
	}

	scopeDir, cleanup, err := c.Arena.Scope()
	if err != nil {
		return c.fail(result, err)
	}
	defer cleanup()

	staged, err := c.stage(ctx, srcAbs, scopeDir)
	if err != nil {
		return c.fail(result, fmt.Errorf("stage: %w", err))
	}
	result.State = string(StateStaged)

	var encoded string
	if opts.Target == FormatISO {
		// spec.md §4.8's Exporter note names bchunk specifically for ISO
		// export, distinct from Convert's chdman-based intermediate ISO
		// decode used when chaining toward CSO/RVZ targets.
		encoded, err = e.decodeViaBChunk(ctx, staged, scopeDir)
	} else {
		encoded, err = c.encode(ctx, staged, srcFormat, Options{Target: opts.Target}, scopeDir)
	}
	if err != nil {
		return c.fail(result, fmt.Errorf("encode: %w", err))
	}
	result.State = string(StateEncoded)

	destRel, downloadURL, err := e.publish(ctx, encoded, rf.Path, opts.Target, target)
	if err != nil {
		return c.fail(result, fmt.Errorf("publish: %w", err))
	}
	result.ToPath = destRel
	result.DownloadURL = downloadURL
	result.State = string(StatePublished)
	return result, nil
}

// decodeViaBChunk splits a staged CHD/BIN+CUE-style disc image into a
// standalone ISO via bchunk, which works from a .bin/.cue pair rather
// than the CHD container itself — chdman extracts the CUE sheet first.
func (e *Exporter) decodeViaBChunk(ctx context.Context, staged, scopeDir string) (string, error) {
	c := e.converter()
	cueOut := filepath.Join(scopeDir, swapExt(staged, ".cue"))
	binOut := filepath.Join(scopeDir, swapExt(staged, ".bin"))
	if strings.EqualFold(filepath.Ext(staged), ".chd") {
		if _, err := c.Tools.CHDMan.Run(ctx, []string{"extractcd", "-i", staged, "-o", cueOut}, nil, nil); err != nil {
			return "", err
		}
	} else {
		cueOut = staged
	}
	isoOut := filepath.Join(scopeDir, strings.TrimSuffix(filepath.Base(cueOut), filepath.Ext(cueOut)))
	if _, err := c.Tools.BChunk.Run(ctx, []string{cueOut, binOut, isoOut}, nil, nil); err != nil {
		return "", err
	}
	return isoOut + "01.iso", nil
}

func (e *Exporter) publish(ctx context.Context, encoded, origRelPath string, target Format, dst ExportTarget) (string, string, error) {
	destRel := filepath.ToSlash(swapExt(origRelPath, "."+string(target)))

	if dst.S3Prefix != "" {
		client := storage.DefaultClient()
		if client == nil {
			return "", "", fmt.Errorf("convert: export to s3 requested but no storage client configured")
		}
		key := strings.TrimSuffix(dst.S3Prefix, "/") + "/" + destRel
		if err := client.UploadFile(ctx, key, encoded, ""); err != nil {
			return "", "", err
		}
		return key, client.GetDownloadLink(ctx, key), nil
	}

	destAbs := filepath.Join(dst.LocalDir, filepath.FromSlash(destRel))
	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return "", "", err
	}
	if err := publishFile(encoded, destAbs); err != nil {
		return "", "", err
	}
	return destRel, "", nil
}
