package app

import (
	"github.com/xxxsen/romvault/internal/config"
	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/convert"
	"github.com/xxxsen/romvault/internal/mover"
	"github.com/xxxsen/romvault/internal/prompt"
	"github.com/xxxsen/romvault/internal/store"
	"github.com/xxxsen/romvault/internal/tooladapter"
)

// Deps is the shared wiring every runner needs: the Catalog Store (C1),
// the Archive/Container Adapter's Arena (C4), the External Tool Adapter
// registry (C9), the deployment Config, and the PromptAdapter. Built once
// in cmd/romvault/main.go and threaded into every RegisterRunner factory,
// the same role internal/config.Config plays for the teacher's own
// command constructors (NewEnsureCommand(cfg, ...), NewUploadCommand(cfg, ...)).
type Deps struct {
	Store  *store.Store
	Cfg    *config.Config
	Arena  *container.Arena
	Tools  *tooladapter.Registry
	Prompt *prompt.Adapter

	RootDir string // resolved ROM_DIRECTORY
	ChunkKB int
}

func (d *Deps) converter() *convert.Converter {
	return &convert.Converter{RootDir: d.RootDir, Tools: d.Tools, Arena: d.Arena, Store: d.Store, ChunkKB: d.ChunkKB}
}

func (d *Deps) exporter() *convert.Exporter {
	return &convert.Exporter{RootDir: d.RootDir, Tools: d.Tools, Arena: d.Arena, Store: d.Store, ChunkKB: d.ChunkKB}
}

func (d *Deps) rebuilder() *convert.Rebuilder {
	return &convert.Rebuilder{RootDir: d.RootDir, Store: d.Store, Arena: d.Arena}
}

func (d *Deps) mvr(settings mover.Settings) *mover.Mover {
	return &mover.Mover{RootDir: d.RootDir, Settings: settings}
}

// current holds the Deps built once by cmd/romvault/main.go. cobra's
// RunnerList/MustResolveRunner factories run from package init(), before
// main() has anything to construct Deps from, so a runner's factory
// closure can't capture Deps by value the way NewSortRomsCommand(deps,
// opts) does for direct/test callers; SetDeps/CurrentDeps bridges that
// gap the same way the teacher's storage.DefaultClient() lets UploadCommand.Run
// reach a client nobody passed it explicitly. Every IRunner resolves
// CurrentDeps() in PreRun rather than at construction time.
var current *Deps

// SetDeps installs the process-wide Deps every CLI-registered runner
// resolves in PreRun. Called exactly once, by cmd/romvault/main.go,
// before cli.Execute.
func SetDeps(d *Deps) { current = d }

// CurrentDeps returns the Deps installed by SetDeps, or nil before
// SetDeps has run.
func CurrentDeps() *Deps { return current }
