package app

import (
	"context"

	"github.com/spf13/pflag"
)

// IRunner represents a runnable command in the application layer: one
// CLI subcommand (spec.md §6), registered by name through RegisterRunner
// and driven by internal/cli's cobra wiring. Init binds the subcommand's
// flag surface; PreRun resolves shared dependencies (the package-level
// Deps set once by cmd/romvault/main.go via SetDeps) and validates flag
// combinations before any Catalog Store write; PostRun runs cleanup that
// must happen even when Run returned an error, whose error is then the one
// reported.
type IRunner interface {
	Name() string
	Desc() string
	Init(fs *pflag.FlagSet)
	PreRun(ctx context.Context) error
	Run(ctx context.Context) error
	PostRun(ctx context.Context) error
}
