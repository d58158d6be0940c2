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

// ImportDatsOptions carries the import-dats flag surface (spec.md §6
// "import-dats [-i|-s|-f|-a] <FILES…>").
type ImportDatsOptions struct {
	Files             []string
	HeaderOverrideDir string
	Force             bool // -f: overwrite an existing System even on dat version collision
}

// ImportDatsCommand runs import-dats: parse each dat file, upsert its
// System and Header, and sync its Games/Roms in one transaction per dat
// Record, so a partially-bad dat never leaves its Games/Roms half synced
// (the System and Header upserts run before, outside that transaction).
// Grounded on the teacher's EnsureCommand/Ensure split — the
// command holds flags, the doer (ImportDats) holds the work.
type ImportDatsCommand struct {
	deps *Deps
	opts ImportDatsOptions
}

func NewImportDatsCommand(deps *Deps, opts ImportDatsOptions) *ImportDatsCommand {
	return &ImportDatsCommand{deps: deps, opts: opts}
}

func (c *ImportDatsCommand) Name() string { return "import-dats" }

func (c *ImportDatsCommand) Desc() string {
	return "Parse dat files and sync their Systems/Games/Roms into the catalog"
}

func (c *ImportDatsCommand) Init(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.opts.Files, "files", "i", nil, "comma-separated dat file paths to import")
	fs.StringVarP(&c.opts.HeaderOverrideDir, "header-dir", "s", "", "directory of header overrides (*.header.json templates)")
	fs.BoolVarP(&c.opts.Force, "force", "f", false, "overwrite an existing System on dat version collision")
}

func (c *ImportDatsCommand) PreRun(ctx context.Context) error {
	if len(c.opts.Files) == 0 {
		return errors.New("import-dats: --files is required")
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("import-dats: app not initialized")
	}
	return nil
}

func (c *ImportDatsCommand) PostRun(ctx context.Context) error { return nil }

func (c *ImportDatsCommand) Run(ctx context.Context) error {
	summary, err := ImportDats(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("import-dats: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// ImportDats is the importer's doer, usable directly by the webapi
// service layer as well as the CLI runner above.
func ImportDats(ctx context.Context, deps *Deps, opts ImportDatsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary
	loader := datfile.HeaderLoader{OverrideDir: opts.HeaderOverrideDir}

	for _, path := range opts.Files {
		records, err := datfile.LoadFile(path, loader)
		if err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, rec := range records {
			if err := importRecord(ctx, deps, rec, opts.Force); err != nil {
				summary.AddFailed(fmt.Errorf("%s (%s): %w", path, rec.System.Name, err))
				continue
			}
			summary.AddOK()
		}
	}
	return summary, nil
}

// importRecord upserts one dat's System/Header outside the transaction
// (each is independently idempotent) then syncs its Games and Roms
// inside one transaction, resolving ParentHints as a second pass once
// every Game in the batch has a real id (datfile.Record's documented
// two-pass design).
func importRecord(ctx context.Context, deps *Deps, rec datfile.Record, force bool) error {
	systemID, err := deps.Store.Systems.Upsert(ctx, rec.System, force)
	if err != nil {
		return err
	}

	if rec.Header != nil {
		rec.Header.SystemID = systemID
		if _, err := deps.Store.Headers.Upsert(ctx, *rec.Header); err != nil {
			return err
		}
	}

	return deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ids, err := deps.Store.Games.SyncGames(ctx, tx, systemID, rec.Games)
		if err != nil {
			return err
		}

		idByName := make(map[string]int64, len(rec.Games))
		for i, g := range rec.Games {
			idByName[g.Name] = ids[i]
		}

		for _, g := range rec.Games {
			gameID := idByName[g.Name]
			for _, r := range rec.Roms[g.Name] {
				r.GameID = gameID
				if _, err := deps.Store.Roms.Upsert(ctx, tx, r); err != nil {
					return err
				}
			}
		}

		for childName, parentName := range rec.ParentHints {
			childID, ok := idByName[childName]
			if !ok {
				continue
			}
			parentID, ok := idByName[parentName]
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE games SET parent_id = ? WHERE id = ?`, parentID, childID); err != nil {
				return fmt.Errorf("resolve parent hint %s -> %s: %w", childName, parentName, err)
			}
		}

		return nil
	})
}

func init() {
	RegisterRunner("import-dats", func() IRunner { return &ImportDatsCommand{} })
}
