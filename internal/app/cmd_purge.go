package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/storage"
)

// PurgeRomsOptions carries the purge-roms flag surface (spec.md §6
// "purge-roms [-m|-o|-t|-f|-y]").
type PurgeRomsOptions struct {
	Missing     bool // -m: Romfile rows whose on-disk file no longer exists
	Orphans     bool // -o: Romfile rows nothing references anymore
	Trash       bool // -t: files laid out under a System's Trash bucket
	ClearBucket bool // empty the configured storage client's bucket too
	Force       bool // -f: actually delete; otherwise report counts only
	AssumeYes   bool // -y
}

// PurgeRomsCommand runs purge-roms.
type PurgeRomsCommand struct {
	deps *Deps
	opts PurgeRomsOptions
}

func NewPurgeRomsCommand(deps *Deps, opts PurgeRomsOptions) *PurgeRomsCommand {
	return &PurgeRomsCommand{deps: deps, opts: opts}
}

func (c *PurgeRomsCommand) Name() string { return "purge-roms" }

func (c *PurgeRomsCommand) Desc() string {
	return "Reconcile Romfile bookkeeping against disk: drop missing/orphaned rows, empty Trash"
}

func (c *PurgeRomsCommand) Init(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.opts.Missing, "missing", "m", false, "drop Romfile rows whose file no longer exists on disk")
	fs.BoolVarP(&c.opts.Orphans, "orphans", "o", false, "drop Romfile rows nothing references anymore")
	fs.BoolVarP(&c.opts.Trash, "trash", "t", false, "empty every System's Trash bucket")
	fs.BoolVar(&c.opts.ClearBucket, "clear-bucket", false, "also empty the configured storage client's bucket")
	fs.BoolVarP(&c.opts.Force, "force", "f", false, "actually delete; without this only counts are reported")
	fs.BoolVarP(&c.opts.AssumeYes, "yes", "y", false, "skip the confirmation prompt")
}

func (c *PurgeRomsCommand) PreRun(ctx context.Context) error {
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("purge-roms: app not initialized")
	}
	return nil
}

func (c *PurgeRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *PurgeRomsCommand) Run(ctx context.Context) error {
	summary, err := PurgeRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("purge-roms: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// PurgeRoms reconciles the catalog's Romfile bookkeeping against what is
// actually on disk: -m drops rows whose file vanished (spec.md §5 scenario
// 5, "a missing file deletes the Romfile row, an orphan Rom row that lost
// its Romfile is re-queued as missing"), -o drops rows nothing references
// anymore, -t empties every System's Trash bucket. Without -f the
// operation only counts what it would do, per the CLI's "exit 1 on user
// error, never destroy state the user didn't explicitly ask to destroy"
// posture (spec.md §7).
func PurgeRoms(ctx context.Context, deps *Deps, opts PurgeRomsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	var candidates []model.Romfile
	if opts.Missing {
		missing, err := missingOnDisk(ctx, deps)
		if err != nil {
			return summary, err
		}
		candidates = append(candidates, missing...)
	}
	if opts.Orphans {
		orphans, err := deps.Store.Romfiles.Orphans(ctx)
		if err != nil {
			return summary, err
		}
		candidates = append(candidates, orphans...)
	}

	if len(candidates) > 0 && !opts.AssumeYes && deps.Prompt != nil {
		ok, err := deps.Prompt.Confirm(ctx, fmt.Sprintf("purge %d romfile row(s)?", len(candidates)), false)
		if err != nil {
			return summary, err
		}
		if !ok {
			return summary, nil
		}
	}

	for _, rf := range candidates {
		if !opts.Force {
			summary.AddSkipped(fmt.Sprintf("%s: dry run, pass -f to delete", rf.Path))
			continue
		}
		if err := deps.Store.Romfiles.Delete(ctx, rf.ID); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", rf.Path, err))
			continue
		}
		summary.AddOK()
	}

	if opts.Trash && opts.Force {
		n, err := purgeTrash(ctx, deps)
		if err != nil {
			return summary, err
		}
		for i := 0; i < n; i++ {
			summary.AddOK()
		}
	}

	if opts.ClearBucket && opts.Force {
		client := storage.DefaultClient()
		if client == nil {
			return summary, errors.New("purge-roms: --clear-bucket given but no storage client configured")
		}
		if err := client.ClearBucket(ctx); err != nil {
			summary.AddFailed(fmt.Errorf("clear-bucket: %w", err))
		} else {
			summary.AddOK()
		}
	}

	return summary, nil
}

func missingOnDisk(ctx context.Context, deps *Deps) ([]model.Romfile, error) {
	systems, err := deps.Store.Systems.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.Romfile
	for _, sys := range systems {
		games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
		if err != nil {
			return nil, err
		}
		for _, g := range games {
			roms, err := deps.Store.Roms.ListByGame(ctx, g.ID)
			if err != nil {
				return nil, err
			}
			for _, r := range roms {
				if r.RomfileID == nil {
					continue
				}
				rf, err := deps.Store.Romfiles.GetByID(ctx, *r.RomfileID)
				if err != nil {
					continue
				}
				if _, err := os.Stat(filepath.Join(deps.RootDir, filepath.FromSlash(rf.Path))); os.IsNotExist(err) {
					out = append(out, rf)
				}
			}
		}
	}
	return out, nil
}

// purgeTrash removes every file found on disk under a "Trash" directory
// anywhere inside ROOT_DIR, matching mover.bucketDir's BucketTrash layout.
func purgeTrash(ctx context.Context, deps *Deps) (int, error) {
	count := 0
	err := filepath.WalkDir(deps.RootDir, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "Trash" {
			entries, rerr := os.ReadDir(path)
			if rerr != nil {
				return rerr
			}
			for _, e := range entries {
				if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
					return err
				}
				count++
			}
			return filepath.SkipDir
		}
		return nil
	})
	return count, err
}

// PurgeSystemsCommand runs purge-systems.
type PurgeSystemsCommand struct {
	deps *Deps
}

func NewPurgeSystemsCommand(deps *Deps) *PurgeSystemsCommand {
	return &PurgeSystemsCommand{deps: deps}
}

func (c *PurgeSystemsCommand) Name() string { return "purge-systems" }

func (c *PurgeSystemsCommand) Desc() string {
	return "Remove every System with zero Games left"
}

func (c *PurgeSystemsCommand) Init(fs *pflag.FlagSet) {}

func (c *PurgeSystemsCommand) PreRun(ctx context.Context) error {
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("purge-systems: app not initialized")
	}
	return nil
}

func (c *PurgeSystemsCommand) PostRun(ctx context.Context) error { return nil }

func (c *PurgeSystemsCommand) Run(ctx context.Context) error {
	n, err := PurgeSystems(ctx, c.deps)
	if err != nil {
		return err
	}
	fmt.Printf("purge-systems: removed %d empty system(s)\n", n)
	return nil
}

// PurgeSystems removes every System with zero Games left — the catalog
// bookkeeping left behind once a dat re-import or purge-roms drops a
// System's last Game (spec.md §6 "purge-systems").
func PurgeSystems(ctx context.Context, deps *Deps) (int, error) {
	systems, err := deps.Store.Systems.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sys := range systems {
		games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
		if err != nil {
			return removed, err
		}
		if len(games) > 0 {
			continue
		}
		if err := deps.Store.Systems.Delete(ctx, sys.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func init() {
	RegisterRunner("purge-roms", func() IRunner { return &PurgeRomsCommand{} })
	RegisterRunner("purge-systems", func() IRunner { return &PurgeSystemsCommand{} })
}
