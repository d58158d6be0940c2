package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/datfile"
	"github.com/xxxsen/romvault/internal/model"
)

// ps3SystemName is the fixed System every IRD-derived Game lands under.
// IRDs carry no System metadata of their own — unlike a Logiqx dat, one
// IRD describes exactly one PS3 disc (spec.md §4.2, §6 import-irds).
const ps3SystemName = "Sony - PlayStation 3"

// ImportIrdsOptions carries the import-irds flag surface (spec.md §6
// "import-irds [-i|-f] <FILES…>").
type ImportIrdsOptions struct {
	Files []string
	Force bool
}

// ImportIrdsCommand runs import-irds.
type ImportIrdsCommand struct {
	deps *Deps
	opts ImportIrdsOptions
}

func NewImportIrdsCommand(deps *Deps, opts ImportIrdsOptions) *ImportIrdsCommand {
	return &ImportIrdsCommand{deps: deps, opts: opts}
}

func (c *ImportIrdsCommand) Name() string { return "import-irds" }

func (c *ImportIrdsCommand) Desc() string {
	return "Decode PS3 IRD files and record them as one-Rom Games under the PS3 System"
}

func (c *ImportIrdsCommand) Init(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.opts.Files, "files", "i", nil, "comma-separated IRD file paths to import")
	fs.BoolVarP(&c.opts.Force, "force", "f", false, "overwrite the PS3 System on version collision")
}

func (c *ImportIrdsCommand) PreRun(ctx context.Context) error {
	if len(c.opts.Files) == 0 {
		return errors.New("import-irds: --files is required")
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("import-irds: app not initialized")
	}
	return nil
}

func (c *ImportIrdsCommand) PostRun(ctx context.Context) error { return nil }

func (c *ImportIrdsCommand) Run(ctx context.Context) error {
	summary, err := ImportIrds(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("import-irds: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// ImportIrds decodes each IRD and records it as a one-Rom Game under the
// fixed PS3 System. An IRD's per-sector hash table (IRDFile.FileHashes)
// exists to validate an already-extracted JB folder sector-by-sector, not
// to identify the whole-disc artifact up front, so the catalog Rom for a
// PS3 title carries RegionHashes[0] — the disc's own identity hash — as
// its MD5, not a sector digest. JB-folder content matching against the
// full sector table is the Matcher's job at match time (spec.md §4.5), not
// the importer's.
func ImportIrds(ctx context.Context, deps *Deps, opts ImportIrdsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	systemID, err := deps.Store.Systems.Upsert(ctx, model.System{Name: ps3SystemName}, opts.Force)
	if err != nil {
		return summary, fmt.Errorf("import-irds: ensure ps3 system: %w", err)
	}

	for _, path := range opts.Files {
		ird, err := datfile.LoadIRD(path)
		if err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", path, err))
			continue
		}
		if err := importIRD(ctx, deps, systemID, ird); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", path, err))
			continue
		}
		summary.AddOK()
	}
	return summary, nil
}

func importIRD(ctx context.Context, deps *Deps, systemID int64, ird *datfile.IRDFile) error {
	name := ird.GameName
	if name == "" {
		name = ird.GameID
	}

	var discHash string
	if len(ird.RegionHashes) > 0 {
		discHash = ird.RegionHashes[0]
	}

	return deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		gameID, err := deps.Store.Games.Upsert(ctx, tx, model.Game{
			SystemID: systemID,
			Name:     name,
		})
		if err != nil {
			return err
		}
		rom := model.Rom{
			GameID: gameID,
			Name:   name + ".iso",
			Status: model.RomStatusGood,
		}
		if discHash != "" {
			rom.MD5 = &discHash
		}
		_, err = deps.Store.Roms.Upsert(ctx, tx, rom)
		return err
	})
}

func init() {
	RegisterRunner("import-irds", func() IRunner { return &ImportIrdsCommand{} })
}
