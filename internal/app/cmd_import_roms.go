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

	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/matcher"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/storage"
)

// ImportRomsOptions carries the import-roms flag surface (spec.md §6
// "import-roms [-s SYS|-t|-f|-a HASH|-u|-x] <PATHS…>").
type ImportRomsOptions struct {
	Paths           []string
	S3Keys          []string // object keys fetched from storage.DefaultClient before matching
	SystemID        *int64
	Unattended      bool
	ExtractTopLevel bool
	TrialRun        bool // -t: report matches without moving anything into place
}

// ImportRomsCommand runs import-roms.
type ImportRomsCommand struct {
	deps     *Deps
	opts     ImportRomsOptions
	systemID int64
}

func NewImportRomsCommand(deps *Deps, opts ImportRomsOptions) *ImportRomsCommand {
	return &ImportRomsCommand{deps: deps, opts: opts}
}

func (c *ImportRomsCommand) Name() string { return "import-roms" }

func (c *ImportRomsCommand) Desc() string {
	return "Match loose ROM files against the catalog and copy bound ones into place"
}

func (c *ImportRomsCommand) Init(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.opts.Paths, "paths", "p", nil, "comma-separated file or directory paths to scan")
	fs.StringSliceVar(&c.opts.S3Keys, "s3-keys", nil, "comma-separated object keys to fetch from the configured storage client before matching")
	fs.Int64VarP(&c.systemID, "system", "s", 0, "restrict matching to one System id")
	fs.BoolVarP(&c.opts.TrialRun, "trial", "t", false, "report matches without copying anything into place")
	fs.BoolVarP(&c.opts.Unattended, "unattended", "u", false, "never prompt; skip anything ambiguous")
	fs.BoolVarP(&c.opts.ExtractTopLevel, "extract-top-level", "x", false, "descend one level into nested archives while matching")
}

func (c *ImportRomsCommand) PreRun(ctx context.Context) error {
	if len(c.opts.Paths) == 0 && len(c.opts.S3Keys) == 0 {
		return errors.New("import-roms: --paths or --s3-keys is required")
	}
	if c.systemID != 0 {
		c.opts.SystemID = &c.systemID
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("import-roms: app not initialized")
	}
	return nil
}

func (c *ImportRomsCommand) PostRun(ctx context.Context) error { return nil }

func (c *ImportRomsCommand) Run(ctx context.Context) error {
	report, err := ImportRoms(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("import-roms: %d bound, %d residual, %d ambiguous\n",
		len(report.Bindings), len(report.Residuals), len(report.Ambiguous))
	return nil
}

// ImportRoms resolves opts.Paths against the catalog with the Matcher
// (C5), then — unless TrialRun — materializes every binding: the matched
// bytes are copied into ROOT_DIR/<system>/<rom name>.<original ext> and
// recorded as a Romfile attached to its Rom. Residual and ambiguous
// entries are left exactly as the Matcher reported them; sort-roms (C7)
// is responsible for moving a bound file into its final bucketed location.
func ImportRoms(ctx context.Context, deps *Deps, opts ImportRomsOptions) (*model.MatchReport, error) {
	paths := opts.Paths
	if len(opts.S3Keys) > 0 {
		fetched, cleanup, err := fetchS3Keys(ctx, deps, opts.S3Keys)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		paths = append(append([]string{}, paths...), fetched...)
	}

	m := &matcher.Matcher{
		Store:           deps.Store,
		Decoder:         deps.Tools,
		Arena:           deps.Arena,
		Prompt:          deps.Prompt,
		Unattended:      opts.Unattended,
		ExtractTopLevel: opts.ExtractTopLevel,
		ChunkKB:         deps.ChunkKB,
	}

	report, err := m.Match(ctx, paths, opts.SystemID)
	if err != nil {
		return report, err
	}
	if opts.TrialRun {
		return report, nil
	}

	for _, binding := range report.Bindings {
		if err := materializeBinding(ctx, deps, binding); err != nil {
			return report, fmt.Errorf("materialize %s: %w", binding.RomName, err)
		}
	}
	return report, nil
}

// fetchS3Keys downloads every key from the configured storage client into
// one Arena scope so import-roms can match against an S3-staged batch the
// same way it matches local paths — the download-side counterpart to
// export-roms' S3 publish target. The returned cleanup removes the scope
// once the caller is done matching and materializing bindings.
func fetchS3Keys(ctx context.Context, deps *Deps, keys []string) ([]string, func(), error) {
	client := storage.DefaultClient()
	if client == nil {
		return nil, nil, errors.New("import-roms: --s3-keys given but no storage client configured")
	}
	scopeDir, cleanup, err := deps.Arena.Scope()
	if err != nil {
		return nil, nil, err
	}

	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		dest := filepath.Join(scopeDir, filepath.Base(key))
		if err := client.DownloadToFile(ctx, key, dest); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		paths = append(paths, dest)
	}
	return paths, cleanup, nil
}

func materializeBinding(ctx context.Context, deps *Deps, binding model.MatchBinding) error {
	rc, ext, cleanup, err := openBindingEntry(ctx, deps, binding)
	if err != nil {
		return err
	}
	defer cleanup()
	defer rc.Close()

	sys, err := deps.Store.Systems.GetByID(ctx, mustGameSystemID(ctx, deps, binding))
	if err != nil {
		return err
	}

	destRel := filepath.ToSlash(filepath.Join(sanitizeSegment(sys.DisplayName()), binding.RomName+ext))
	destAbs := filepath.Join(deps.RootDir, filepath.FromSlash(destRel))

	size, err := copyToFile(rc, destAbs)
	if err != nil {
		return err
	}

	return deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		romfileID, err := deps.Store.Romfiles.Upsert(ctx, tx, model.Romfile{
			Path: destRel,
			Size: size,
			Kind: model.RomfileKindRom,
		})
		if err != nil {
			return err
		}
		return deps.Store.Roms.AttachRomfile(ctx, tx, binding.RomID, romfileID)
	})
}

func mustGameSystemID(ctx context.Context, deps *Deps, binding model.MatchBinding) int64 {
	rom, err := deps.Store.Roms.GetByID(ctx, binding.RomID)
	if err != nil {
		return 0
	}
	game, err := deps.Store.Games.GetByID(ctx, rom.GameID)
	if err != nil {
		return 0
	}
	return game.SystemID
}

// openBindingEntry re-opens the container the Matcher originally read the
// binding from and returns a stream over the exact entry it bound,
// supporting the same single level of archive descent the Matcher's
// ExtractTopLevel option performs (spec.md §4.5 step 1).
func openBindingEntry(ctx context.Context, deps *Deps, binding model.MatchBinding) (io.ReadCloser, string, func(), error) {
	src, _, err := container.Open(ctx, binding.SourcePath, deps.Tools, deps.Arena)
	if err != nil {
		return nil, "", nil, err
	}

	if binding.EntryName == "" {
		entries := src.Entries()
		if len(entries) == 0 {
			src.Close()
			return nil, "", nil, fmt.Errorf("no entries in %s", binding.SourcePath)
		}
		rc, err := entries[0].Open()
		if err != nil {
			src.Close()
			return nil, "", nil, err
		}
		return rc, filepath.Ext(binding.SourcePath), func() { src.Close() }, nil
	}

	top, rest, nested := strings.Cut(binding.EntryName, "/")
	for _, e := range src.Entries() {
		if e.LogicalName != top {
			continue
		}
		if !nested {
			rc, err := e.Open()
			if err != nil {
				src.Close()
				return nil, "", nil, err
			}
			return rc, filepath.Ext(e.LogicalName), func() { src.Close() }, nil
		}

		scopeDir, cleanupScope, err := deps.Arena.Scope()
		if err != nil {
			src.Close()
			return nil, "", nil, err
		}
		tmpPath := filepath.Join(scopeDir, filepath.Base(e.LogicalName))
		if err := copyEntryToPath(e, tmpPath); err != nil {
			cleanupScope()
			src.Close()
			return nil, "", nil, err
		}
		nestedSrc, _, err := container.Open(ctx, tmpPath, deps.Tools, deps.Arena)
		if err != nil {
			cleanupScope()
			src.Close()
			return nil, "", nil, err
		}
		for _, ne := range nestedSrc.Entries() {
			if ne.LogicalName == rest {
				rc, err := ne.Open()
				if err != nil {
					nestedSrc.Close()
					cleanupScope()
					src.Close()
					return nil, "", nil, err
				}
				return rc, filepath.Ext(ne.LogicalName), func() { nestedSrc.Close(); cleanupScope(); src.Close() }, nil
			}
		}
		nestedSrc.Close()
		cleanupScope()
		src.Close()
		return nil, "", nil, fmt.Errorf("nested entry %s not found in %s", rest, top)
	}
	src.Close()
	return nil, "", nil, fmt.Errorf("entry %s not found in %s", binding.EntryName, binding.SourcePath)
}

func copyEntryToPath(e container.Entry, dst string) error {
	rc, err := e.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyToFile(rc io.Reader, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
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

func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	return strings.ReplaceAll(s, "\\", "-")
}

func init() {
	RegisterRunner("import-roms", func() IRunner { return &ImportRomsCommand{} })
}
