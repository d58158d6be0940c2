package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/hashengine"
)

// benchmarkPayloadSize is the synthetic payload streamed through the Hash
// Engine for `benchmark` — large enough that chunking overhead and a
// single syscall round-trip don't dominate the measurement.
const benchmarkPayloadSize = 256 << 20 // 256 MiB

// BenchmarkOptions carries the benchmark flag surface (spec.md §6
// "benchmark [-c CHUNK_SIZE_KB]").
type BenchmarkOptions struct {
	ChunkKB int
}

// BenchmarkCommand runs `benchmark`: streams a synthetic payload through
// the Hash Engine (C3) at the configured chunk size and reports
// throughput, so an operator can size TOOL_CONCURRENCY/HASH_CHUNK_KB for
// their disks before running a large import-roms/sort-roms batch.
type BenchmarkCommand struct {
	deps *Deps
	opts BenchmarkOptions
}

func NewBenchmarkCommand(deps *Deps, opts BenchmarkOptions) *BenchmarkCommand {
	return &BenchmarkCommand{deps: deps, opts: opts}
}

func (c *BenchmarkCommand) Name() string { return "benchmark" }

func (c *BenchmarkCommand) Desc() string {
	return "Stream a synthetic payload through the Hash Engine and report throughput"
}

func (c *BenchmarkCommand) Init(fs *pflag.FlagSet) {
	fs.IntVarP(&c.opts.ChunkKB, "chunk-size", "c", hashengine.DefaultChunkKB, "chunk size in KiB fed to the hasher per read")
}

func (c *BenchmarkCommand) PreRun(ctx context.Context) error { return nil }

func (c *BenchmarkCommand) PostRun(ctx context.Context) error { return nil }

func (c *BenchmarkCommand) Run(ctx context.Context) error {
	result, err := Benchmark(ctx, c.opts)
	if err != nil {
		return err
	}
	fmt.Printf("benchmark: chunk=%dKiB hashed=%s in %s (%s/s)\n",
		c.opts.ChunkKB, humanize.Bytes(uint64(result.Bytes)), result.Elapsed, humanize.Bytes(uint64(result.BytesPerSecond)))
	return nil
}

// BenchmarkResult is benchmark's measured outcome.
type BenchmarkResult struct {
	Bytes          int64
	Elapsed        time.Duration
	BytesPerSecond float64
}

// Benchmark streams a pseudo-random payload of fixed size through
// hashengine.HashReader once, timing the whole pass — the CRC32/MD5/SHA1
// fan-out is what actually drives import-roms/check-roms throughput, so
// benchmarking it directly (rather than a synthetic loop) is meaningful.
func Benchmark(ctx context.Context, opts BenchmarkOptions) (BenchmarkResult, error) {
	chunkKB := opts.ChunkKB
	if chunkKB <= 0 {
		chunkKB = hashengine.DefaultChunkKB
	}

	start := time.Now()
	src := io.LimitReader(rand.Reader, benchmarkPayloadSize)
	digest, err := hashengine.HashReader(ctx, src, chunkKB)
	if err != nil {
		return BenchmarkResult{}, err
	}
	elapsed := time.Since(start)

	result := BenchmarkResult{Bytes: digest.Size, Elapsed: elapsed}
	if elapsed > 0 {
		result.BytesPerSecond = float64(digest.Size) / elapsed.Seconds()
	}
	return result, nil
}

func init() {
	RegisterRunner("benchmark", func() IRunner { return &BenchmarkCommand{} })
}
