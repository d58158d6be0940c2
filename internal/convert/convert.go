package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/hashengine"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/store"
	"github.com/xxxsen/romvault/internal/tooladapter"
)

// recompressLevel is the deflate level used by the native zip recompress
// path (§4.8 "-r forces a round-trip even when the source is already in
// the target format, used to change compression level/algorithm").
// klauspost/compress/flate's encoder is a drop-in faster/better-ratio
// replacement for compress/flate at the same levels, registered as
// archive/zip's Deflate method instead of shelling out to 7z a second
// time for the exact same container format.
const recompressLevel = 9

// Options are the per-invocation flags from the convert-roms/export-roms
// CLI surface that affect a single conversion (spec.md §4.8).
type Options struct {
	Target     Format
	Recompress bool
	Verify     bool
	ChdParent  *model.Rom // set for the second+ disc of a playlist being CHD-compressed
}

// Converter runs one Romfile through Planned→...→Reconciled, grounded on
// internal/app/upload.go's stage-then-upload-then-record structure.
type Converter struct {
	RootDir string
	Tools   *tooladapter.Registry
	Arena   *container.Arena
	Store   *store.Store
	ChunkKB int
}

// Convert runs the full pipeline for one Rom/Romfile pair and returns the
// result plus the final state reached. A Failed result is returned
// alongside an error rather than panicking, so batch callers can continue
// past one item's failure per spec.md §7's "per-item errors are captured
// and the batch continues".
func (c *Converter) Convert(ctx context.Context, rom model.Rom, rf model.Romfile, opts Options) (model.ConversionResult, error) {
	result := model.ConversionResult{
		RomName:  rom.Name,
		FromPath: rf.Path,
		State:    string(StatePlanned),
	}

	srcAbs := filepath.Join(c.RootDir, filepath.FromSlash(rf.Path))
	srcFormat := FormatFromExt(filepath.Ext(rf.Path))

	if srcFormat == opts.Target && !opts.Recompress {
		return c.fail(result, ErrNoOpConversion)
	}
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

	encoded, err := c.encode(ctx, staged, srcFormat, opts, scopeDir)
	if err != nil {
		return c.fail(result, fmt.Errorf("encode: %w", err))
	}
	result.State = string(StateEncoded)

	if opts.Verify {
		if err := c.verify(ctx, encoded, rom); err != nil {
			return c.fail(result, err)
		}
		result.Verified = true
		result.State = string(StateVerified)
	}

	destRel, err := c.publish(encoded, rf.Path, opts.Target)
	if err != nil {
		return c.fail(result, fmt.Errorf("publish: %w", err))
	}
	result.ToPath = destRel
	result.State = string(StatePublished)

	if err := c.reconcile(ctx, rom, rf, destRel, opts); err != nil {
		return c.fail(result, fmt.Errorf("reconcile: %w", err))
	}
	result.State = string(StateReconciled)
	return result, nil
}

func (c *Converter) fail(result model.ConversionResult, err error) (model.ConversionResult, error) {
	result.State = string(StateFailed)
	result.Error = err.Error()
	return result, err
}

// stage materializes the source's raw bytes — descending one archive
// level via the Archive/Container Adapter if needed — into a plain file
// under scopeDir, the form every C9 tool expects to operate on. Grounded
// on matcher.go's descendOnce materialization of a container entry to a
// scratch file.
func (c *Converter) stage(ctx context.Context, srcAbs, scopeDir string) (string, error) {
	src, _, err := container.Open(ctx, srcAbs, c.Tools, c.Arena)
	if err != nil {
		return "", err
	}
	defer src.Close()

	entries := src.Entries()
	if len(entries) == 0 {
		return "", fmt.Errorf("convert: %s has no entries to stage", srcAbs)
	}
	entry := entries[0]

	dest := filepath.Join(scopeDir, filepath.Base(entry.LogicalName))
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// encode invokes the right External Tool Adapter (C9) command for the
// source/target format pair, writing its output alongside staged in
// scopeDir. A raw target returns the staged file as is (staging already
// extracted it); zip and 7z targets go through the SevenZip tool, except a
// zip recompression, which is rebuilt natively; disc-image pairs go through
// chdman/maxcso/dolphin-tool.
func (c *Converter) encode(ctx context.Context, staged string, srcFormat Format, opts Options, scopeDir string) (string, error) {
	switch opts.Target {
	case FormatRaw:
		return staged, nil
	case FormatZip:
		if opts.Recompress {
			return c.recompressZipNative(staged, scopeDir)
		}
		return c.sevenZipCompress(ctx, staged, scopeDir, "-tzip")
	case Format7z:
		return c.sevenZipCompress(ctx, staged, scopeDir, "-t7z")
	case FormatCHD:
		return c.encodeCHD(ctx, staged, srcFormat, opts, scopeDir)
	case FormatISO:
		return c.decodeCHDToISO(ctx, staged, scopeDir)
	case FormatCSO, FormatZSO:
		return c.maxCSOCompress(ctx, staged, scopeDir, opts.Target)
	case FormatRVZ:
		return c.dolphinToolConvert(ctx, staged, scopeDir, "rvz")
	case FormatWBFS:
		return c.witConvert(ctx, staged, scopeDir)
	case FormatNSZ:
		return c.nszCompress(ctx, staged, scopeDir)
	default:
		return "", fmt.Errorf("convert: no encoder for target format %s", opts.Target)
	}
}

func (c *Converter) sevenZipCompress(ctx context.Context, staged, scopeDir, typeFlag string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, extFor(typeFlag)))
	if _, err := c.Tools.SevenZip.Run(ctx, []string{"a", typeFlag, out, staged}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

// recompressZipNative rebuilds staged as a single-entry zip using
// klauspost/compress/flate in place of shelling out to 7z a second time
// for a format the source is already in (Options.Recompress, spec.md
// §4.8 "-r forces a round-trip ... to change compression level"). Registering
// the compressor on the zip.Writer gets klauspost's faster, better-ratio
// deflate implementation without changing the on-disk zip format.
func (c *Converter) recompressZipNative(staged, scopeDir string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, ".zip"))

	dst, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("%w: create recompress target: %v", ErrStage, err)
	}
	defer dst.Close()

	zw := zip.NewWriter(dst)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, recompressLevel)
	})

	src, err := os.Open(staged)
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: open staged file: %v", ErrStage, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: stat staged file: %v", ErrStage, err)
	}

	base := filepath.Base(staged)
	hdr := &zip.FileHeader{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Method: zip.Deflate,
	}
	hdr.SetMode(info.Mode())

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: create zip entry: %v", ErrStage, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: write zip entry: %v", ErrStage, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("%w: finalize zip: %v", ErrStage, err)
	}
	return out, nil
}

func extFor(typeFlag string) string {
	if typeFlag == "-tzip" {
		return ".zip"
	}
	return ".7z"
}

func (c *Converter) encodeCHD(ctx context.Context, staged string, srcFormat Format, opts Options, scopeDir string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, ".chd"))
	args := []string{"createcd", "-i", staged, "-o", out}
	if srcFormat == FormatISO {
		args = []string{"createdvd", "-i", staged, "-o", out}
	}
	if opts.ChdParent != nil {
		parentPath, err := c.romfilePath(ctx, opts.ChdParent)
		if err != nil {
			return "", err
		}
		args = append(args, "-op", parentPath)
	}
	if _, err := c.Tools.CHDMan.Run(ctx, args, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Converter) romfilePath(ctx context.Context, rom *model.Rom) (string, error) {
	if rom.RomfileID == nil {
		return "", fmt.Errorf("convert: chd parent rom %s has no romfile", rom.Name)
	}
	rf, err := c.Store.Romfiles.GetByID(ctx, *rom.RomfileID)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.RootDir, filepath.FromSlash(rf.Path)), nil
}

func (c *Converter) decodeCHDToISO(ctx context.Context, staged, scopeDir string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, ".iso"))
	if _, err := c.Tools.CHDMan.Run(ctx, []string{"extractdvd", "-i", staged, "-o", out}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Converter) maxCSOCompress(ctx context.Context, staged, scopeDir string, target Format) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, "."+string(target)))
	if _, err := c.Tools.MaxCSO.Run(ctx, []string{staged, "-o", out}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Converter) dolphinToolConvert(ctx context.Context, staged, scopeDir, format string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, "."+format))
	if _, err := c.Tools.DolphinTool.Run(ctx, []string{"convert", "-i", staged, "-o", out, "-f", format}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Converter) witConvert(ctx context.Context, staged, scopeDir string) (string, error) {
	out := filepath.Join(scopeDir, swapExt(staged, ".wbfs"))
	if _, err := c.Tools.Wit.Run(ctx, []string{"COPY", staged, out, "--wbfs"}, nil, nil); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Converter) nszCompress(ctx context.Context, staged, scopeDir string) (string, error) {
	if _, err := c.Tools.NSZ.Run(ctx, []string{"-C", "-o", scopeDir, staged}, nil, nil); err != nil {
		return "", err
	}
	return filepath.Join(scopeDir, swapExt(staged, ".nsz")), nil
}

func swapExt(path, newExt string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + newExt
}

// verify recomputes the encoded output's digest and compares it against
// the Rom's declared identity, spec.md §4.8 "optionally verify (-c)".
// Lossy targets have no meaningful digest to compare and always pass.
func (c *Converter) verify(ctx context.Context, encoded string, rom model.Rom) error {
	if Lossy(FormatFromExt(filepath.Ext(encoded))) {
		return nil
	}
	digest, err := hashengine.HashFile(ctx, encoded, c.ChunkKB)
	if err != nil {
		return err
	}
	if rom.SHA1 != nil && *rom.SHA1 != "" && digest.SHA1 != *rom.SHA1 {
		return fmt.Errorf("%w: %s", ErrVerifyMismatch, rom.Name)
	}
	return nil
}

// publish moves encoded into ROOT_DIR at the same directory as the
// original Romfile, replacing its extension, and returns the new
// ROOT_DIR-relative path. Uses a .tmp-suffix-then-rename swap, the same
// safe-replace pattern internal/mover uses for cross-device copies.
func (c *Converter) publish(encoded, origRelPath string, target Format) (string, error) {
	destRel := filepath.ToSlash(swapExt(origRelPath, "."+string(target)))
	destAbs := filepath.Join(c.RootDir, filepath.FromSlash(destRel))

	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return "", err
	}
	if err := publishFile(encoded, destAbs); err != nil {
		return "", err
	}
	return destRel, nil
}

func publishFile(src, dst string) error {
	tmp := dst + ".tmp"
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// reconcile records the new Romfile, re-links the Rom to it, trashes the
// superseded Romfile if nothing else references it, and wires the CHD
// parent link when present — spec.md §4.8's final pipeline stage.
func (c *Converter) reconcile(ctx context.Context, rom model.Rom, oldRf model.Romfile, newRelPath string, opts Options) error {
	fi, err := os.Stat(filepath.Join(c.RootDir, filepath.FromSlash(newRelPath)))
	if err != nil {
		return err
	}

	newID, err := c.Store.Romfiles.Upsert(ctx, nil, model.Romfile{Path: newRelPath, Size: fi.Size(), Kind: model.RomfileKindRom})
	if err != nil {
		return err
	}
	if err := c.Store.Roms.AttachRomfile(ctx, nil, rom.ID, newID); err != nil {
		return err
	}

	if oldRf.ID != 0 && oldRf.ID != newID {
		referenced, err := c.Store.Romfiles.IsReferenced(ctx, oldRf.ID)
		if err != nil {
			return err
		}
		if !referenced {
			if err := c.Store.Romfiles.Delete(ctx, oldRf.ID); err != nil {
				return err
			}
		}
	}

	if opts.Target == FormatCHD && opts.ChdParent != nil {
		if err := c.Store.Roms.SetChdParent(ctx, rom.ID, &opts.ChdParent.ID); err != nil {
			return err
		}
	}
	return nil
}
