package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/model"
)

// DownloadDatsOptions carries the download-dats flag surface (spec.md §6
// "download-dats [-n|-r|-u|-a|-f]").
type DownloadDatsOptions struct {
	NamePattern string // -n: only descriptors whose Name contains this substring
	UpdateOnly  bool   // -u: not read by DownloadDats; every fetched dat is imported, and a System already at the same dat version is re-imported
	Force       bool   // -f: force SystemDAO.Upsert to overwrite version collisions
	CacheDir    string // -a equivalent: where downloaded dats land before import
}

// DownloadDatsCommand runs download-dats: lists the configured DatSource,
// fetches each matching descriptor into CacheDir, and feeds the results
// through the same ImportDats doer import-dats uses.
type DownloadDatsCommand struct {
	deps     *Deps
	source   DatSource
	opts     DownloadDatsOptions
	indexURL string
}

func NewDownloadDatsCommand(deps *Deps, source DatSource, opts DownloadDatsOptions) *DownloadDatsCommand {
	return &DownloadDatsCommand{deps: deps, source: source, opts: opts}
}

func (c *DownloadDatsCommand) Name() string { return "download-dats" }

func (c *DownloadDatsCommand) Desc() string {
	return "Fetch dat archives from a configured index and import them"
}

func (c *DownloadDatsCommand) Init(fs *pflag.FlagSet) {
	fs.StringVarP(&c.indexURL, "index-url", "r", "", "URL of the flat \"name url\" dat index to fetch from")
	fs.StringVarP(&c.opts.NamePattern, "name", "n", "", "only descriptors whose name contains this substring")
	fs.BoolVarP(&c.opts.UpdateOnly, "update-only", "u", false, "accepted but has no effect: every fetched dat is imported")
	fs.BoolVarP(&c.opts.Force, "force", "f", false, "overwrite version collisions")
	fs.StringVarP(&c.opts.CacheDir, "cache-dir", "a", "", "directory downloaded dats land in before import")
}

func (c *DownloadDatsCommand) PreRun(ctx context.Context) error {
	if c.indexURL == "" {
		return errors.New("download-dats: --index-url is required")
	}
	if c.source == nil {
		c.source = &HTTPDatSource{IndexURL: c.indexURL}
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("download-dats: app not initialized")
	}
	return nil
}

func (c *DownloadDatsCommand) PostRun(ctx context.Context) error { return nil }

func (c *DownloadDatsCommand) Run(ctx context.Context) error {
	summary, err := DownloadDats(ctx, c.deps, c.source, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("download-dats: %d ok, %d skipped, %d failed\n", summary.OK, summary.Skipped, summary.Failed)
	return nil
}

// DownloadDats is download-dats' doer.
func DownloadDats(ctx context.Context, deps *Deps, source DatSource, opts DownloadDatsOptions) (model.BatchSummary, error) {
	var summary model.BatchSummary

	descriptors, err := source.List(ctx)
	if err != nil {
		return summary, err
	}

	var files []string
	for _, d := range descriptors {
		if opts.NamePattern != "" && !containsSubstring(d.Name, opts.NamePattern) {
			continue
		}
		dest := filepath.Join(opts.CacheDir, sanitizeFilename(d.Name)+".dat")
		if err := source.Fetch(ctx, d, dest); err != nil {
			summary.AddFailed(fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		files = append(files, dest)
	}

	imported, err := ImportDats(ctx, deps, ImportDatsOptions{Files: files, Force: opts.Force})
	if err != nil {
		return summary, err
	}
	summary.OK += imported.OK
	summary.Skipped += imported.Skipped
	summary.Failed += imported.Failed
	summary.Errors = append(summary.Errors, imported.Errors...)
	summary.Total = summary.OK + summary.Skipped + summary.Failed
	return summary, nil
}

func containsSubstring(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func init() {
	RegisterRunner("download-dats", func() IRunner { return &DownloadDatsCommand{} })
}
