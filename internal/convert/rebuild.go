package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/store"
)

// Rebuilder rewrites a Game's ZIP to match its System's arcade merging
// strategy, sourcing ROMs missing from the Game's own Romfile from its
// parent and/or BIOS Game — spec.md §4.8 "Rebuilder: re-zips arcade sets
// to the System's merging strategy, sourcing missing ROMs from the parent
// or BIOS set". Regenerating the whole archive from canonical sources on
// every call makes it idempotent by construction rather than by diffing.
type Rebuilder struct {
	RootDir string
	Store   *store.Store
	Arena   *container.Arena
}

// Rebuild writes RootDir/<game>.zip containing every Rom the strategy
// requires: the Game's own entries always; the parent Game's entries
// added for non-merged and full-non-merged; the BIOS Game's entries
// added only for full-non-merged. For MergingNone and MergingSplit (the
// default arcade layout) the zip is still rewritten, holding only the
// Game's own entries.
func (r *Rebuilder) Rebuild(ctx context.Context, game model.Game, strategy model.MergingStrategy) (string, error) {
	roms, err := r.Store.Roms.ListByGame(ctx, game.ID)
	if err != nil {
		return "", err
	}

	sources := append([]model.Rom{}, roms...)

	if strategy == model.MergingNonMerged || strategy == model.MergingFullNonMerged {
		if game.ParentID != nil {
			parentRoms, err := r.inheritedRoms(ctx, *game.ParentID)
			if err != nil {
				return "", err
			}
			sources = append(sources, parentRoms...)
		}
	}
	if strategy == model.MergingFullNonMerged {
		if game.BiosID != nil {
			biosRoms, err := r.inheritedRoms(ctx, *game.BiosID)
			if err != nil {
				return "", err
			}
			sources = append(sources, biosRoms...)
		}
	}

	destAbs := filepath.Join(r.RootDir, game.Name+".zip")

	scopeDir, cleanup, err := r.Arena.Scope()
	if err != nil {
		return "", err
	}
	defer cleanup()

	tmpZip := filepath.Join(scopeDir, filepath.Base(destAbs)+".tmp")
	if err := r.writeZip(ctx, tmpZip, sources); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return "", err
	}
	if err := publishFile(tmpZip, destAbs); err != nil {
		return "", err
	}
	return destAbs, nil
}

// inheritedRoms collects every Rom belonging to sourceGameID, deduping
// against nothing — writeZip is responsible for skipping a
// Rom name already present when merging strategies overlap a parent and
// a BIOS Game that happen to share a name.
func (r *Rebuilder) inheritedRoms(ctx context.Context, sourceGameID int64) ([]model.Rom, error) {
	return r.Store.Roms.ListByGame(ctx, sourceGameID)
}

// writeZip opens each Rom's current Romfile through the Archive/Container
// Adapter (C4), so an already-compressed source (the common arcade case:
// every ROM lives in its own single-entry ZIP) is transparently read back
// to raw bytes before being re-added under its own logical name, and
// writes them into a fresh ZIP at dest. Roms with no attached Romfile are
// skipped — the set stays incomplete for that entry, same as the
// teacher's own best-effort archive assembly.
func (r *Rebuilder) writeZip(ctx context.Context, dest string, roms []model.Rom) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	seen := make(map[string]bool)

	for _, rom := range roms {
		if rom.RomfileID == nil || seen[rom.Name] {
			continue
		}
		rf, err := r.Store.Romfiles.GetByID(ctx, *rom.RomfileID)
		if err != nil {
			continue
		}
		srcAbs := filepath.Join(r.RootDir, filepath.FromSlash(rf.Path))
		if err := r.addEntry(ctx, zw, srcAbs, rom.Name); err != nil {
			return fmt.Errorf("rebuild: add %s: %w", rom.Name, err)
		}
		seen[rom.Name] = true
	}

	return zw.Close()
}

func (r *Rebuilder) addEntry(ctx context.Context, zw *zip.Writer, srcAbs, logicalName string) error {
	src, _, err := container.Open(ctx, srcAbs, nil, r.Arena)
	if err != nil {
		return err
	}
	defer src.Close()

	entries := src.Entries()
	if len(entries) == 0 {
		return fmt.Errorf("rebuild: %s has no entries", srcAbs)
	}

	rc, err := entries[0].Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := zw.Create(logicalName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}
