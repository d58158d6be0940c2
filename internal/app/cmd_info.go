package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
)

// InfoCommand runs `info`: a per-System summary table (game/rom counts,
// completion, and total on-disk size of attached Romfiles), the read-only
// counterpart to `config -l`.
type InfoCommand struct {
	deps *Deps
}

func NewInfoCommand(deps *Deps) *InfoCommand {
	return &InfoCommand{deps: deps}
}

func (c *InfoCommand) Name() string { return "info" }

func (c *InfoCommand) Desc() string {
	return "Print a per-System summary: game/rom counts, completion, total size"
}

func (c *InfoCommand) Init(fs *pflag.FlagSet) {}

func (c *InfoCommand) PreRun(ctx context.Context) error {
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("info: app not initialized")
	}
	return nil
}

func (c *InfoCommand) PostRun(ctx context.Context) error { return nil }

func (c *InfoCommand) Run(ctx context.Context) error {
	rows, err := Info(ctx, c.deps)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Printf("%-28s games=%-6d roms=%-6d missing=%-6d size=%s completion=%s\n",
			r.SystemName, r.Games, r.Roms, r.Missing, humanize.Bytes(uint64(r.TotalSize)), r.Completion)
	}
	return nil
}

// SystemInfo is one row of `info`'s output.
type SystemInfo struct {
	SystemName string
	Games      int
	Roms       int
	Missing    int
	TotalSize  int64
	Completion model.CompletionLevel
}

// Info lists every System with its game/rom counts and cached
// completion, grounded on the same per-System aggregation query shape
// SystemDAO.RefreshCompletion already runs, reused here read-only.
func Info(ctx context.Context, deps *Deps) ([]SystemInfo, error) {
	systems, err := deps.Store.Systems.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SystemInfo, 0, len(systems))
	for _, sys := range systems {
		games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
		if err != nil {
			return nil, err
		}

		info := SystemInfo{SystemName: sys.DisplayName(), Games: len(games), Completion: sys.Completion}
		for _, g := range games {
			roms, err := deps.Store.Roms.ListByGame(ctx, g.ID)
			if err != nil {
				return nil, err
			}
			info.Roms += len(roms)
			for _, r := range roms {
				if r.RomfileID == nil {
					info.Missing++
					continue
				}
				rf, err := deps.Store.Romfiles.GetByID(ctx, *r.RomfileID)
				if err != nil {
					continue
				}
				info.TotalSize += rf.Size
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func init() {
	RegisterRunner("info", func() IRunner { return &InfoCommand{} })
}
