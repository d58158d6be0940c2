package main

import (
	"context"
	"os"

	"github.com/xxxsen/romvault/internal/app"
	"github.com/xxxsen/romvault/internal/cli"
	"github.com/xxxsen/romvault/internal/config"
	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/hashengine"
	"github.com/xxxsen/romvault/internal/prompt"
	"github.com/xxxsen/romvault/internal/storage"
	"github.com/xxxsen/romvault/internal/store"
	"github.com/xxxsen/romvault/internal/tooladapter"

	// registers the "server" subcommand via app.RegisterRunner.
	_ "github.com/xxxsen/romvault/internal/webapi"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func main() {
	logger.Init("", "debug", 0, 0, 0, true)
	ctx := context.Background()

	deps, err := buildDeps(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Fatal("init app failed", zap.Error(err))
		os.Exit(1)
	}
	app.SetDeps(deps)

	if err := cli.Execute(); err != nil {
		logutil.GetLogger(ctx).Fatal("exec cli failed", zap.Error(err))
		os.Exit(1)
	}
}

// buildDeps assembles the process-wide app.Deps: loads the deployment
// Config, opens the Catalog Store (applying pending migrations), reads
// the catalog-level Settings that shape the Arena/Registry/Prompt, and
// wires all four together. Mirrors cmd/retrog/main.go's role except the
// teacher never built anything beyond the logger before calling
// cli.Execute — every other collaborator here lived behind its own
// ambient global.
func buildDeps(ctx context.Context) (*app.Deps, error) {
	cfg, err := cli.LoadConfig(os.Getenv(config.EnvConfigFile))
	if err != nil {
		return nil, err
	}

	dataDir, err := config.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if _, err := config.EnsureDataDir(dataDir); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, config.DatabasePath(dataDir))
	if err != nil {
		return nil, err
	}

	rootDir, err := st.Settings.Get(ctx, config.SettingRomDirectory)
	if err != nil {
		return nil, err
	}
	if rootDir == "" {
		rootDir = dataDir
	}

	tmpDir, err := st.Settings.Get(ctx, config.SettingTmpDirectory)
	if err != nil {
		return nil, err
	}
	if tmpDir == "" {
		tmpDir = config.TmpDir(dataDir)
	}
	arena, err := container.NewArena(tmpDir)
	if err != nil {
		return nil, err
	}

	chunkKBRaw, err := st.Settings.Get(ctx, config.SettingHashChunkKB)
	if err != nil {
		return nil, err
	}
	chunkKB := config.DecodeInt(chunkKBRaw, hashengine.DefaultChunkKB)

	concurrencyRaw, err := st.Settings.Get(ctx, config.SettingToolConcurrency)
	if err != nil {
		return nil, err
	}
	concurrency := config.DecodeInt(concurrencyRaw, 0)
	tools := tooladapter.NewRegistry(tooladapter.PathConfig{
		SevenZip:    cfg.Tools.SevenZip,
		CHDMan:      cfg.Tools.Chdman,
		MaxCSO:      cfg.Tools.Maxcso,
		DolphinTool: cfg.Tools.DolphinTool,
		Flips:       cfg.Tools.Flips,
		Wit:         cfg.Tools.Wit,
		BChunk:      cfg.Tools.Bchunk,
		XDelta3:     cfg.Tools.Xdelta3,
		NSZ:         cfg.Tools.Nsz,
		CTRTool:     cfg.Tools.Ctrtool,
	}, concurrency)

	unattendedRaw, err := st.Settings.Get(ctx, config.SettingUnattended)
	if err != nil {
		return nil, err
	}
	prmpt := prompt.New(os.Stdin, os.Stdout, config.DecodeBool(unattendedRaw), prompt.PolicyFail)

	if cfg.S3 != nil {
		s3Client, err := storage.NewS3Client(ctx, *cfg.S3)
		if err != nil {
			return nil, err
		}
		storage.SetDefaultClient(s3Client)
	}

	return &app.Deps{
		Store:   st,
		Cfg:     cfg,
		Arena:   arena,
		Tools:   tools,
		Prompt:  prmpt,
		RootDir: rootDir,
		ChunkKB: chunkKB,
	}, nil
}
