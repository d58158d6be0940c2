package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/convert"
	"github.com/xxxsen/romvault/internal/model"
)

// ConvertRomsOptions carries the convert-roms flag surface (spec.md §6
// "convert-roms [-f FMT|-g GAME|-s SYS|-a|-r|-d|-c|-p]").
type ConvertRomsOptions struct {
	Target     convert.Format
	GameID     *int64
	SystemID   *int64
	AllSystems bool
	Recompress bool
	Verify     bool
	// ChdParents shares one CHD parent across a multi-disc Game when
	// Target is FormatCHD, per spec.md §4.8 "additional discs are
	// compressed with the first disc as parent".
	ChdParents bool
}

// ConvertRomsCommand runs convert-roms.
type ConvertRomsCommand struct {
	deps     *Deps
	opts     ConvertRomsOptions
	target   string
	gameID   int64
	systemID int64
}

func NewConvertRomsCommand(deps *Deps, opts ConvertRomsOptions) *ConvertRomsCommand {
	return &ConvertRomsCommand{deps: deps, opts: opts}
}

func (c *ConvertRomsCommand) Name() string { return "convert-roms" }

func (c *ConvertRomsCommand) Desc() string {
	return "Convert attached Romfiles to a target container format in place"
}

func (c *ConvertRomsCommand) Init(fs *pflag.FlagSet) {
	fs.StringVarP(&c.target, "format", "f", "", "target format (zip|7z|chd|rvz)")
	fs.Int64VarP(&c.gameID, "game", "g", 0, "convert one Game id")
	fs.Int64VarP(&c.systemID, "system", "s", 0, "convert one System id")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "convert every System")
	fs.BoolVarP(&c.opts.Recompress, "recompress", "r", false, "recompress even if already in the target format")
	fs.BoolVarP(&c.opts.Verify, "verify", "c", false, "verify converted digests against the catalog before swapping in")
	fs.BoolVarP(&c.opts.ChdParents, "chd-parents", "p", false, "share one CHD parent across a multi-disc Game")
}

func (c *ConvertRomsCommand) PreRun(ctx context.Context) error {
	if c.target != "" {
		c.opts.Target = convert.Format(c.target)
	}
	if c.gameID != 0 {
		c.opts.GameID = &c.gameID
	}
	if c.systemID != 0 {
		c.opts.SystemID = &c.systemID
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("convert-roms: app not initialized")
	}
	return nil
}

func (c *ConvertRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *ConvertRomsCommand) Run(ctx context.Context) error {
	summary, err := ConvertRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("convert-roms: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// ConvertRoms resolves the requested scope to a set of Games, then runs
// the Converter (C8) over every Rom with an attached Romfile, one Game at
// a time so a multi-disc Game's discs can share a CHD parent when
// opts.ChdParents is set.
func ConvertRoms(ctx context.Context, deps *Deps, opts ConvertRomsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	games, err := resolveConvertGames(ctx, deps, opts)
	if err != nil {
		return summary, err
	}

	conv := deps.converter()
	for _, game := range games {
		roms, err := deps.Store.Roms.ListByGame(ctx, game.ID)
		if err != nil {
			summary.AddFailed(fmt.Errorf("game %s: %w", game.Name, err))
			continue
		}

		var chdParent *model.Rom
		for _, rom := range roms {
			if rom.RomfileID == nil {
				summary.AddSkipped(fmt.Sprintf("%s: no romfile", rom.Name))
				continue
			}
			rf, err := deps.Store.Romfiles.GetByID(ctx, *rom.RomfileID)
			if err != nil {
				summary.AddFailed(fmt.Errorf("%s: %w", rom.Name, err))
				continue
			}

			convOpts := convert.Options{Target: opts.Target, Recompress: opts.Recompress, Verify: opts.Verify}
			if opts.ChdParents && opts.Target == convert.FormatCHD {
				convOpts.ChdParent = chdParent
			}

			if _, err := conv.Convert(ctx, rom, rf, convOpts); err != nil {
				summary.AddFailed(fmt.Errorf("%s: %w", rom.Name, err))
				continue
			}
			summary.AddOK()

			if opts.ChdParents && opts.Target == convert.FormatCHD && chdParent == nil {
				updated, err := deps.Store.Roms.GetByID(ctx, rom.ID)
				if err == nil {
					chdParent = &updated
				}
			}
		}
	}
	return summary, nil
}

func resolveConvertGames(ctx context.Context, deps *Deps, opts ConvertRomsOptions) ([]model.Game, error) {
	if opts.GameID != nil {
		g, err := deps.Store.Games.GetByID(ctx, *opts.GameID)
		if err != nil {
			return nil, err
		}
		return []model.Game{g}, nil
	}

	var systems []model.System
	switch {
	case opts.SystemID != nil:
		s, err := deps.Store.Systems.GetByID(ctx, *opts.SystemID)
		if err != nil {
			return nil, err
		}
		systems = []model.System{s}
	case opts.AllSystems:
		s, err := deps.Store.Systems.List(ctx)
		if err != nil {
			return nil, err
		}
		systems = s
	default:
		return nil, fmt.Errorf("convert-roms: one of -g, -s, -a is required")
	}

	var games []model.Game
	for _, s := range systems {
		gs, err := deps.Store.Games.ListBySystem(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		games = append(games, gs...)
	}
	return games, nil
}

func init() {
	RegisterRunner("convert-roms", func() IRunner { return &ConvertRomsCommand{} })
}
