package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
)

// RebuildRomsOptions carries the rebuild-roms flag surface (spec.md §6
// "rebuild-roms [-m MERGING|-a|-y]").
type RebuildRomsOptions struct {
	SystemID   *int64
	AllSystems bool
	Merging    model.MergingStrategy
	AssumeYes  bool
}

// RebuildRomsCommand runs rebuild-roms.
type RebuildRomsCommand struct {
	deps     *Deps
	opts     RebuildRomsOptions
	systemID int64
	merging  string
}

func NewRebuildRomsCommand(deps *Deps, opts RebuildRomsOptions) *RebuildRomsCommand {
	return &RebuildRomsCommand{deps: deps, opts: opts}
}

func (c *RebuildRomsCommand) Name() string { return "rebuild-roms" }

func (c *RebuildRomsCommand) Desc() string {
	return "Re-archive arcade Games under a merging strategy"
}

func (c *RebuildRomsCommand) Init(fs *pflag.FlagSet) {
	fs.Int64VarP(&c.systemID, "system", "s", 0, "restrict to one System id")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "rebuild every arcade System")
	fs.StringVarP(&c.merging, "merging", "m", string(model.MergingSplit), "one of split|non-merged|full-non-merged|none")
	fs.BoolVarP(&c.opts.AssumeYes, "yes", "y", false, "skip the confirmation prompt")
}

func (c *RebuildRomsCommand) PreRun(ctx context.Context) error {
	if c.systemID != 0 {
		c.opts.SystemID = &c.systemID
	}
	if c.merging != "" {
		c.opts.Merging = model.MergingStrategy(c.merging)
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("rebuild-roms: app not initialized")
	}
	return nil
}

func (c *RebuildRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *RebuildRomsCommand) Run(ctx context.Context) error {
	summary, err := RebuildRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("rebuild-roms: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// RebuildRoms re-archives every arcade Game in scope under opts.Merging,
// confirming once up front rather than per-Game since the Rebuilder
// overwrites each Game's existing archive in place.
func RebuildRoms(ctx context.Context, deps *Deps, opts RebuildRomsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	systems, err := resolveRebuildSystems(ctx, deps, opts)
	if err != nil {
		return summary, err
	}

	var games []model.Game
	for _, sys := range systems {
		if !sys.Arcade {
			continue
		}
		gs, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
		if err != nil {
			return summary, err
		}
		games = append(games, gs...)
	}

	if len(games) > 0 && !opts.AssumeYes && deps.Prompt != nil {
		ok, err := deps.Prompt.Confirm(ctx, fmt.Sprintf("rebuild %d arcade game archive(s)?", len(games)), true)
		if err != nil {
			return summary, err
		}
		if !ok {
			return summary, nil
		}
	}

	rb := deps.rebuilder()
	for _, g := range games {
		if _, err := rb.Rebuild(ctx, g, opts.Merging); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", g.Name, err))
			continue
		}
		summary.AddOK()
	}
	return summary, nil
}

func resolveRebuildSystems(ctx context.Context, deps *Deps, opts RebuildRomsOptions) ([]model.System, error) {
	if opts.SystemID != nil {
		s, err := deps.Store.Systems.GetByID(ctx, *opts.SystemID)
		if err != nil {
			return nil, err
		}
		return []model.System{s}, nil
	}
	return deps.Store.Systems.List(ctx)
}

func init() {
	RegisterRunner("rebuild-roms", func() IRunner { return &RebuildRomsCommand{} })
}
