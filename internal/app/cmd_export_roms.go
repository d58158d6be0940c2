package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/convert"
	"github.com/xxxsen/romvault/internal/elector"
	"github.com/xxxsen/romvault/internal/model"
)

// ExportRomsOptions carries the export-roms flag surface (spec.md §6
// "export-roms -d DIR [-f FMT|-g GAME|-s SYS|-o]").
type ExportRomsOptions struct {
	Dir        string
	S3Prefix   string
	Target     convert.Format
	GameID     *int64
	SystemID   *int64
	AllSystems bool
	OnlyOneG1R bool
}

// ExportRomsCommand runs export-roms.
type ExportRomsCommand struct {
	deps     *Deps
	opts     ExportRomsOptions
	target   string
	gameID   int64
	systemID int64
}

func NewExportRomsCommand(deps *Deps, opts ExportRomsOptions) *ExportRomsCommand {
	return &ExportRomsCommand{deps: deps, opts: opts}
}

func (c *ExportRomsCommand) Name() string { return "export-roms" }

func (c *ExportRomsCommand) Desc() string {
	return "Write a copy of matched Romfiles outside ROM_DIRECTORY without touching the catalog"
}

func (c *ExportRomsCommand) Init(fs *pflag.FlagSet) {
	fs.StringVarP(&c.opts.Dir, "dir", "d", "", "destination directory (or S3 prefix with --s3-prefix)")
	fs.StringVar(&c.opts.S3Prefix, "s3-prefix", "", "optional S3 key prefix to export under")
	fs.StringVarP(&c.target, "format", "f", "", "target format (zip|7z|chd|rvz); empty keeps the source format")
	fs.Int64VarP(&c.gameID, "game", "g", 0, "export one Game id")
	fs.Int64VarP(&c.systemID, "system", "s", 0, "export one System id")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "export every System")
	fs.BoolVarP(&c.opts.OnlyOneG1R, "one-g1r", "o", false, "export only each parent-clone cluster's current 1G1R winner")
}

func (c *ExportRomsCommand) PreRun(ctx context.Context) error {
	if c.opts.Dir == "" {
		return errors.New("export-roms: --dir is required")
	}
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
		return errors.New("export-roms: app not initialized")
	}
	return nil
}

func (c *ExportRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *ExportRomsCommand) Run(ctx context.Context) error {
	summary, err := ExportRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("export-roms: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// ExportRoms mirrors ConvertRoms' scope resolution but hands every Rom to
// the Exporter (C8), which writes out-of-tree and never touches the
// catalog (spec.md §4.8 "Export: like convert, but writes outside
// ROM_DIRECTORY and never updates the catalog").
func ExportRoms(ctx context.Context, deps *Deps, opts ExportRomsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	games, err := resolveConvertGames(ctx, deps, ConvertRomsOptions{
		GameID: opts.GameID, SystemID: opts.SystemID, AllSystems: opts.AllSystems,
	})
	if err != nil {
		return summary, err
	}
	if opts.OnlyOneG1R {
		games = filterToOneG1R(games)
	}

	exp := deps.exporter()
	target := convert.ExportTarget{LocalDir: opts.Dir, S3Prefix: opts.S3Prefix}

	for _, game := range games {
		roms, err := deps.Store.Roms.ListByGame(ctx, game.ID)
		if err != nil {
			summary.AddFailed(fmt.Errorf("game %s: %w", game.Name, err))
			continue
		}
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
			if _, err := exp.Export(ctx, rom, rf, target, convert.ExportOptions{Target: opts.Target, OnlyOneG1R: opts.OnlyOneG1R}); err != nil {
				summary.AddFailed(fmt.Errorf("%s: %w", rom.Name, err))
				continue
			}
			summary.AddOK()
		}
	}
	return summary, nil
}

// filterToOneG1R narrows games to just the 1G1R winner of each
// parent-clone cluster, spec.md §6 export-roms "-o" flag. Runs the
// Elector with no region/language preferences — export-roms carries no
// policy flags of its own, it defers to whatever the catalog's Games
// already express (spec.md §4.8 "-o exports only each cluster's current
// 1G1R winner").
func filterToOneG1R(games []model.Game) []model.Game {
	clusters := clusterByParent(games)
	out := make([]model.Game, 0, len(games))
	for _, cluster := range clusters {
		if len(cluster) == 1 {
			out = append(out, cluster[0])
			continue
		}
		winner, _ := elector.Elect(cluster, elector.Settings{})
		if winner != nil {
			out = append(out, *winner)
		}
	}
	return out
}

func init() {
	RegisterRunner("export-roms", func() IRunner { return &ExportRomsCommand{} })
}
