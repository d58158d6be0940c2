package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/hashengine"
	"github.com/xxxsen/romvault/internal/model"
)

// CheckRomsOptions carries the check-roms flag surface (spec.md §6
// "check-roms [-a|-g GAME|-s]").
type CheckRomsOptions struct {
	SystemID   *int64
	AllSystems bool
}

// CheckRomsCommand runs check-roms.
type CheckRomsCommand struct {
	deps     *Deps
	opts     CheckRomsOptions
	systemID int64 // 0 == unset, bound from --system
}

func NewCheckRomsCommand(deps *Deps, opts CheckRomsOptions) *CheckRomsCommand {
	return &CheckRomsCommand{deps: deps, opts: opts}
}

func (c *CheckRomsCommand) Name() string { return "check-roms" }

func (c *CheckRomsCommand) Desc() string {
	return "Audit attached Romfiles for missing files and digest mismatches"
}

func (c *CheckRomsCommand) Init(fs *pflag.FlagSet) {
	fs.Int64VarP(&c.systemID, "system", "s", 0, "restrict the check to one System id")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "check every System")
}

func (c *CheckRomsCommand) PreRun(ctx context.Context) error {
	if c.systemID != 0 {
		c.opts.SystemID = &c.systemID
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("check-roms: app not initialized")
	}
	return nil
}

func (c *CheckRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *CheckRomsCommand) Run(ctx context.Context) error {
	reports, err := CheckRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Printf("check-roms: %s: %d missing, %d mismatched, %d ok\n", r.SystemName, len(r.Missing), len(r.Mismatched), r.OK)
	}
	return nil
}

// CheckRoms reports, per System, which Roms have no attached Romfile
// (RomDAO.Missing) and which attached Romfiles no longer match their
// Rom's declared digest on disk — the catalog/filesystem reconciliation
// audit spec.md §4.1 describes as the invariant every other operation
// preserves.
func CheckRoms(ctx context.Context, deps *Deps, opts CheckRomsOptions) ([]model.CheckReport, error) {
	systems, err := resolveRebuildSystems(ctx, deps, RebuildRomsOptions{SystemID: opts.SystemID})
	if err != nil {
		return nil, err
	}

	var reports []model.CheckReport
	for _, sys := range systems {
		report, err := checkSystem(ctx, deps, sys)
		if err != nil {
			return reports, fmt.Errorf("check-roms: system %s: %w", sys.Name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func checkSystem(ctx context.Context, deps *Deps, sys model.System) (model.CheckReport, error) {
	report := model.CheckReport{SystemName: sys.Name}

	missing, err := deps.Store.Roms.Missing(ctx, &sys.ID)
	if err != nil {
		return report, err
	}
	for _, r := range missing {
		report.Missing = append(report.Missing, r.Name)
	}

	games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
	if err != nil {
		return report, err
	}
	for _, g := range games {
		roms, err := deps.Store.Roms.ListByGame(ctx, g.ID)
		if err != nil {
			return report, err
		}
		for _, r := range roms {
			if r.RomfileID == nil {
				continue
			}
			ok, err := romMatchesOnDisk(ctx, deps, r)
			if err != nil {
				report.Mismatched = append(report.Mismatched, r.Name)
				continue
			}
			if ok {
				report.OK++
			} else {
				report.Mismatched = append(report.Mismatched, r.Name)
			}
		}
	}
	return report, nil
}

func romMatchesOnDisk(ctx context.Context, deps *Deps, r model.Rom) (bool, error) {
	rf, err := deps.Store.Romfiles.GetByID(ctx, *r.RomfileID)
	if err != nil {
		return false, err
	}
	digest, err := hashengine.HashFile(ctx, filepath.Join(deps.RootDir, filepath.FromSlash(rf.Path)), deps.ChunkKB)
	if err != nil {
		return false, err
	}
	if r.SHA1 != nil && *r.SHA1 != "" {
		return digest.SHA1 == *r.SHA1, nil
	}
	if r.MD5 != nil && *r.MD5 != "" {
		return digest.MD5 == *r.MD5, nil
	}
	if r.CRC32 != nil && *r.CRC32 != "" {
		return digest.CRC32 == *r.CRC32, nil
	}
	return true, nil
}

func init() {
	RegisterRunner("check-roms", func() IRunner { return &CheckRomsCommand{} })
}
