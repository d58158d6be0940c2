package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/elector"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/mover"
)

// SortRomsOptions carries the sort-roms flag surface (spec.md §6
// "sort-roms [-r REGIONS…|--subfolders|-o ONE…|--1g1r-subfolders|-w|-a|-y]").
type SortRomsOptions struct {
	SystemIDs  []int64
	AllSystems bool

	RegionsOne    []string
	PreferParents bool
	Subfolders    bool
	AssumeYes     bool
}

// SortRomsCommand runs sort-roms.
type SortRomsCommand struct {
	deps    *Deps
	opts    SortRomsOptions
	systems []int64
}

func NewSortRomsCommand(deps *Deps, opts SortRomsOptions) *SortRomsCommand {
	return &SortRomsCommand{deps: deps, opts: opts}
}

func (c *SortRomsCommand) Name() string { return "sort-roms" }

func (c *SortRomsCommand) Desc() string {
	return "Elect each System's 1G1R winners and move Romfiles into bucketed place"
}

func (c *SortRomsCommand) Init(fs *pflag.FlagSet) {
	fs.Int64SliceVar(&c.systems, "systems", nil, "comma-separated System ids to sort")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "sort every System")
	fs.StringSliceVarP(&c.opts.RegionsOne, "regions", "r", nil, "ordered region preference for 1G1R election")
	fs.BoolVarP(&c.opts.PreferParents, "prefer-parents", "p", false, "prefer a cluster's parent over its clones when scores tie")
	fs.BoolVar(&c.opts.Subfolders, "subfolders", false, "place Romfiles under alpha subfolders")
	fs.BoolVarP(&c.opts.AssumeYes, "yes", "y", false, "skip the confirmation prompt")
}

func (c *SortRomsCommand) PreRun(ctx context.Context) error {
	c.opts.SystemIDs = c.systems
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("sort-roms: app not initialized")
	}
	return nil
}

func (c *SortRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *SortRomsCommand) Run(ctx context.Context) error {
	reports, err := SortRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Printf("sort-roms: %s: %d moves\n", r.SystemName, len(r.Moves))
	}
	return nil
}

// SortRoms groups each targeted System's Games into parent-clone clusters,
// runs the 1G1R Elector (C6) over each cluster, and hands the resulting
// placements to the Mover (C7) to plan and execute. A cluster's winner
// lands in the 1G1R bucket; every other member (including Games outside
// any cluster) stays in the default bucket — nothing is trashed or
// deleted here.
func SortRoms(ctx context.Context, deps *Deps, opts SortRomsOptions) ([]model.SortReport, error) {
	systems, err := resolveSortTargets(ctx, deps, opts)
	if err != nil {
		return nil, err
	}

	settings := elector.Settings{
		RegionsOne:    opts.RegionsOne,
		PreferParents: opts.PreferParents,
	}
	subfolder := mover.SubfolderNone
	if opts.Subfolders {
		subfolder = mover.SubfolderAlpha
	}

	var reports []model.SortReport
	for _, sys := range systems {
		report, err := sortSystem(ctx, deps, sys, settings, subfolder, opts.AssumeYes)
		if err != nil {
			return reports, fmt.Errorf("sort-roms: system %s: %w", sys.Name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func resolveSortTargets(ctx context.Context, deps *Deps, opts SortRomsOptions) ([]model.System, error) {
	if opts.AllSystems || len(opts.SystemIDs) == 0 {
		return deps.Store.Systems.List(ctx)
	}
	out := make([]model.System, 0, len(opts.SystemIDs))
	for _, id := range opts.SystemIDs {
		sys, err := deps.Store.Systems.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, nil
}

func sortSystem(ctx context.Context, deps *Deps, sys model.System, settings elector.Settings, subfolder mover.SubfolderScheme, assumeYes bool) (model.SortReport, error) {
	games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
	if err != nil {
		return model.SortReport{}, err
	}

	clusters := clusterByParent(games)

	placements := make([]mover.Placement, 0, len(games))
	for parentKey, cluster := range clusters {
		bucket := map[int64]mover.Bucket{}
		if len(cluster) > 1 && !sys.Arcade {
			winner, _ := elector.Elect(cluster, settings)
			if winner != nil {
				bucket[winner.ID] = mover.BucketOneG1R
			}
		}
		for _, g := range cluster {
			b, ok := bucket[g.ID]
			if !ok {
				b = mover.BucketDefault
			}
			ps, err := placementsForGame(ctx, deps, g, b)
			if err != nil {
				return model.SortReport{}, err
			}
			placements = append(placements, ps...)
		}
		_ = parentKey
	}

	mv := deps.mvr(mover.Settings{Subfolder: subfolder, ChunkKB: deps.ChunkKB})
	moves := mv.Plan(sys, placements)

	if len(moves) > 0 && !assumeYes && deps.Prompt != nil {
		ok, err := deps.Prompt.Confirm(ctx, fmt.Sprintf("apply %d move(s) for %s?", len(moves), sys.DisplayName()), true)
		if err != nil {
			return model.SortReport{}, err
		}
		if !ok {
			return mover.ToReport(sys.Name, nil, nil), nil
		}
	}

	executed, err := mv.Execute(ctx, moves)
	if err != nil {
		return model.SortReport{}, err
	}
	for _, mv := range executed {
		if !mv.Executed {
			continue
		}
		rel, rerr := filepath.Rel(deps.RootDir, mv.To)
		if rerr != nil {
			continue
		}
		if err := deps.Store.Romfiles.Rename(ctx, mv.RomfileID, filepath.ToSlash(rel)); err != nil {
			return model.SortReport{}, err
		}
	}

	return mover.ToReport(sys.Name, executed, nil), nil
}

func placementsForGame(ctx context.Context, deps *Deps, g model.Game, bucket mover.Bucket) ([]mover.Placement, error) {
	roms, err := deps.Store.Roms.ListByGame(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	var out []mover.Placement
	for _, r := range roms {
		if r.RomfileID == nil {
			continue
		}
		rf, err := deps.Store.Romfiles.GetByID(ctx, *r.RomfileID)
		if err != nil {
			continue
		}
		out = append(out, mover.Placement{Rom: r, Romfile: rf, Bucket: bucket})
	}
	return out, nil
}

// clusterByParent groups Games by their effective parent: a clone's own
// ParentID, or its own id when it has none, per spec.md §4.6 "parent-clone
// group".
func clusterByParent(games []model.Game) map[int64][]model.Game {
	clusters := make(map[int64][]model.Game)
	for _, g := range games {
		key := g.ID
		if g.ParentID != nil {
			key = *g.ParentID
		}
		clusters[key] = append(clusters[key], g)
	}
	return clusters
}

func init() {
	RegisterRunner("sort-roms", func() IRunner { return &SortRomsCommand{} })
}
