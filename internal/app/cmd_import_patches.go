package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
)

// ImportPatchesOptions carries the import-patches flag surface (spec.md §6
// "import-patches [-n|-f] <FILES…>").
type ImportPatchesOptions struct {
	Files []string
}

// ImportPatchesCommand runs import-patches.
type ImportPatchesCommand struct {
	deps *Deps
	opts ImportPatchesOptions
}

func NewImportPatchesCommand(deps *Deps, opts ImportPatchesOptions) *ImportPatchesCommand {
	return &ImportPatchesCommand{deps: deps, opts: opts}
}

func (c *ImportPatchesCommand) Name() string { return "import-patches" }

func (c *ImportPatchesCommand) Desc() string {
	return "Attach patch files to their matching Rom's patch chain"
}

func (c *ImportPatchesCommand) Init(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.opts.Files, "files", "n", nil, "comma-separated patch file paths to import")
}

func (c *ImportPatchesCommand) PreRun(ctx context.Context) error {
	if len(c.opts.Files) == 0 {
		return errors.New("import-patches: --files is required")
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("import-patches: app not initialized")
	}
	return nil
}

func (c *ImportPatchesCommand) PostRun(ctx context.Context) error { return nil }

func (c *ImportPatchesCommand) Run(ctx context.Context) error {
	summary, err := ImportPatches(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("import-patches: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// ImportPatches resolves each supplied patch file against the Rom whose
// name matches the patch's own basename (a patch carries no System
// context of its own, spec.md §3 "Patch belongs to a Rom"), prompting to
// disambiguate when the name is shared across Systems, copies the patch
// under ROOT_DIR/_patches, and records it as the next entry in that Rom's
// patch chain.
func ImportPatches(ctx context.Context, deps *Deps, opts ImportPatchesOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	for _, path := range opts.Files {
		if err := importPatch(ctx, deps, path); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", path, err))
			continue
		}
		summary.AddOK()
	}
	return summary, nil
}

func importPatch(ctx context.Context, deps *Deps, path string) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	candidates, err := deps.Store.Roms.FindByName(ctx, base)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no rom named %q in catalog", base)
	}

	rom := candidates[0]
	if len(candidates) > 1 && deps.Prompt != nil {
		labels := make([]string, len(candidates))
		for i, r := range candidates {
			g, _ := deps.Store.Games.GetByID(ctx, r.GameID)
			labels[i] = fmt.Sprintf("%s (game id %d)", r.Name, g.ID)
		}
		idx, err := deps.Prompt.ChooseOne(ctx, fmt.Sprintf("multiple roms named %q, pick target", base), labels)
		if err != nil {
			return fmt.Errorf("disambiguate patch target: %w", err)
		}
		rom = candidates[idx]
	}

	destRel := filepath.ToSlash(filepath.Join("_patches", filepath.Base(path)))
	destAbs := filepath.Join(deps.RootDir, destRel)
	size, err := copyPatchFile(path, destAbs)
	if err != nil {
		return err
	}

	return deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		romfileID, err := deps.Store.Romfiles.Upsert(ctx, tx, model.Romfile{
			Path: destRel,
			Size: size,
			Kind: model.RomfileKindPatch,
		})
		if err != nil {
			return err
		}
		existing, err := deps.Store.Patches.ListByRom(ctx, rom.ID)
		if err != nil {
			return err
		}
		_, err = deps.Store.Patches.Insert(ctx, model.Patch{
			RomID:     rom.ID,
			Index:     len(existing),
			RomfileID: romfileID,
		})
		return err
	})
}

func copyPatchFile(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return 0, err
	}
	return n, nil
}

func init() {
	RegisterRunner("import-patches", func() IRunner { return &ImportPatchesCommand{} })
}
