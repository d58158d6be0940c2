package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
)

var discSuffixPattern = regexp.MustCompile(`\s*\(Disc \d+\).*$`)

// GeneratePlaylistsOptions carries the generate-playlists flag surface
// (spec.md §6 "generate-playlists [-a]").
type GeneratePlaylistsOptions struct {
	SystemID   *int64
	AllSystems bool
}

// GeneratePlaylistsCommand runs generate-playlists.
type GeneratePlaylistsCommand struct {
	deps     *Deps
	opts     GeneratePlaylistsOptions
	systemID int64
}

func NewGeneratePlaylistsCommand(deps *Deps, opts GeneratePlaylistsOptions) *GeneratePlaylistsCommand {
	return &GeneratePlaylistsCommand{deps: deps, opts: opts}
}

func (c *GeneratePlaylistsCommand) Name() string { return "generate-playlists" }

func (c *GeneratePlaylistsCommand) Desc() string {
	return "Rebuild M3U playlists for multi-disc Games grouped by disc-number suffix"
}

func (c *GeneratePlaylistsCommand) Init(fs *pflag.FlagSet) {
	fs.Int64VarP(&c.systemID, "system", "s", 0, "restrict generation to one System id")
	fs.BoolVarP(&c.opts.AllSystems, "all", "a", false, "generate for every System")
}

func (c *GeneratePlaylistsCommand) PreRun(ctx context.Context) error {
	if c.systemID != 0 {
		c.opts.SystemID = &c.systemID
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("generate-playlists: app not initialized")
	}
	return nil
}

func (c *GeneratePlaylistsCommand) PostRun(ctx context.Context) error { return nil }

func (c *GeneratePlaylistsCommand) Run(ctx context.Context) error {
	summary, err := GeneratePlaylists(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("generate-playlists: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// GeneratePlaylists tears down every existing Playlist and rebuilds the
// set from scratch by grouping each System's Games on their disc-number
// suffix (" (Disc N)"), the same grouping original_source/generate_playlists.rs
// drives off its DISC_REGEX. A group of one Game is not a playlist; a
// group of two or more gets one M3U Romfile listing the file name (base
// name only) of each disc's attached Romfile in disc order.
func GeneratePlaylists(ctx context.Context, deps *Deps, opts GeneratePlaylistsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	existing, err := deps.Store.Playlists.ListAll(ctx)
	if err != nil {
		return summary, err
	}
	for _, p := range existing {
		if err := deps.Store.Romfiles.Delete(ctx, p.RomfileID); err != nil {
			summary.AddFailed(fmt.Errorf("playlist %d: %w", p.ID, err))
			continue
		}
		if err := deps.Store.Playlists.Delete(ctx, p.ID); err != nil {
			summary.AddFailed(fmt.Errorf("playlist %d: %w", p.ID, err))
		}
	}

	systems, err := resolveRebuildSystems(ctx, deps, RebuildRomsOptions{SystemID: opts.SystemID})
	if err != nil {
		return summary, err
	}

	for _, sys := range systems {
		if err := generateSystemPlaylists(ctx, deps, sys, &summary); err != nil {
			return summary, fmt.Errorf("generate-playlists: system %s: %w", sys.Name, err)
		}
	}
	return summary, nil
}

func generateSystemPlaylists(ctx context.Context, deps *Deps, sys model.System, summary *model.BatchSummary) error {
	games, err := deps.Store.Games.ListBySystem(ctx, sys.ID)
	if err != nil {
		return err
	}

	groups := make(map[string][]model.Game)
	for _, g := range games {
		base := discSuffixPattern.ReplaceAllString(g.Name, "")
		groups[base] = append(groups[base], g)
	}

	for base, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

		if err := writePlaylist(ctx, deps, sys, base, members); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", base, err))
			continue
		}
		summary.AddOK()
	}
	return nil
}

func writePlaylist(ctx context.Context, deps *Deps, sys model.System, base string, members []model.Game) error {
	var lines []string
	gameIDs := make([]int64, 0, len(members))
	for _, g := range members {
		roms, err := deps.Store.Roms.ListByGame(ctx, g.ID)
		if err != nil {
			return err
		}
		var rf *model.Romfile
		for _, r := range roms {
			if r.RomfileID == nil {
				continue
			}
			got, err := deps.Store.Romfiles.GetByID(ctx, *r.RomfileID)
			if err != nil {
				continue
			}
			rf = &got
			break
		}
		if rf == nil {
			return fmt.Errorf("disc %s has no attached romfile", g.Name)
		}
		lines = append(lines, filepath.Base(rf.Path))
		gameIDs = append(gameIDs, g.ID)
	}

	destRel := filepath.ToSlash(filepath.Join(sanitizeSegment(sys.DisplayName()), base+".m3u"))
	destAbs := filepath.Join(deps.RootDir, filepath.FromSlash(destRel))
	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return err
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(destAbs+".tmp", []byte(content), 0o644); err != nil {
		return err
	}
	if err := os.Rename(destAbs+".tmp", destAbs); err != nil {
		return err
	}

	return deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		romfileID, err := deps.Store.Romfiles.Upsert(ctx, tx, model.Romfile{
			Path: destRel, Size: int64(len(content)), Kind: model.RomfileKindPlaylist,
		})
		if err != nil {
			return err
		}
		_, err = deps.Store.Playlists.Insert(ctx, model.Playlist{RomfileID: romfileID, GameIDs: gameIDs})
		return err
	})
}

func init() {
	RegisterRunner("generate-playlists", func() IRunner { return &GeneratePlaylistsCommand{} })
}
