// Package tooladapter is the External Tool Adapter (C9): a thin,
// uniform probe()/run() wrapper around the external binaries the
// Converter/Rebuilder/Exporter and the container package's delegated
// formats shell out to (7z/7zz, chdman, maxcso, dolphin-tool, flips, wit,
// bchunk, xdelta3, nsz, ctrtool). The core never embeds format-specific
// knowledge it cannot independently verify — after any external
// conversion, the caller re-hashes the output via internal/hashengine.
//
// Grounded on internal/storage/s3.go's defensive error-wrapping style
// (every failure path names the operation and wraps the underlying
// error) generalized from one HTTP client to many subprocesses; the
// teacher has no subprocess code of its own to copy directly.
package tooladapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// ErrNotInstalled is returned by Probe when none of a Tool's candidate
// binaries can be found, per spec.md §4.9 "ToolMissing".
var ErrNotInstalled = errors.New("tooladapter: tool not installed")

// ToolInfo describes a resolved binary.
type ToolInfo struct {
	Name string
	Path string
}

// Result is one completed subprocess invocation.
type Result struct {
	Code   int
	Stdout []byte
	Stderr []byte
}

// Tool wraps one external program. Candidates are tried in order during
// discovery (e.g. the Mac `7zz`-then-`7z` fallback); ConfiguredPath, when
// set, is tried first, and the Candidates are looked up on PATH only if
// it does not resolve — spec.md §4.9
// "Tool discovery order: explicit path in config → ${PATH}".
type Tool struct {
	Name           string
	Candidates     []string
	ConfiguredPath string

	// Sem caps concurrent subprocess invocations of this Tool, shared
	// across every Tool in a Registry so TOOL_CONCURRENCY bounds the
	// external-tool subprocess count as a whole, not per-tool.
	Sem *Semaphore

	mu       sync.Mutex
	resolved string
	probed   bool
}

// New constructs a Tool that resolves to the first of candidates found on
// PATH, or configuredPath if non-empty.
func New(name, configuredPath string, candidates ...string) *Tool {
	return &Tool{Name: name, Candidates: candidates, ConfiguredPath: configuredPath}
}

// Probe resolves the tool's binary path, caching the result. It never
// invokes the binary — existence on PATH (or the configured path) is
// sufficient.
func (t *Tool) Probe(_ context.Context) (ToolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.probed {
		if t.resolved == "" {
			return ToolInfo{}, fmt.Errorf("%w: %s", ErrNotInstalled, t.Name)
		}
		return ToolInfo{Name: t.Name, Path: t.resolved}, nil
	}
	t.probed = true

	if t.ConfiguredPath != "" {
		if _, err := exec.LookPath(t.ConfiguredPath); err == nil {
			t.resolved = t.ConfiguredPath
			return ToolInfo{Name: t.Name, Path: t.resolved}, nil
		}
	}
	for _, candidate := range t.Candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			t.resolved = path
			return ToolInfo{Name: t.Name, Path: t.resolved}, nil
		}
	}
	return ToolInfo{}, fmt.Errorf("%w: %s", ErrNotInstalled, t.Name)
}

// Run executes the tool with args, piping stdin (if non-nil) and
// collecting stdout/stderr. The subprocess runs in its own process group
// so Run can kill the whole group on context cancellation instead of
// leaving orphaned children behind — see killOnCancel.
func (t *Tool) Run(ctx context.Context, args []string, env []string, stdin io.Reader) (Result, error) {
	info, err := t.Probe(ctx)
	if err != nil {
		return Result{}, err
	}

	if t.Sem != nil {
		if err := t.Sem.Acquire(ctx); err != nil {
			return Result{}, err
		}
		defer t.Sem.Release()
	}

	cmd := exec.Command(info.Path, args...)
	if len(env) > 0 {
		cmd.Env = env
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setpgid(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("tooladapter: start %s: %w", t.Name, err)
	}

	stop := killOnCancel(ctx, cmd)
	defer stop()

	err = cmd.Wait()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Code = 0
		return result, nil
	case errors.As(err, &exitErr):
		result.Code = exitErr.ExitCode()
		return result, fmt.Errorf("tooladapter: %s exited %d: %s: %w", t.Name, result.Code, strings.TrimSpace(stderr.String()), err)
	default:
		return result, fmt.Errorf("tooladapter: run %s: %w", t.Name, err)
	}
}

// DefaultConcurrency is the semaphore size used when no override is
// configured — CPU count, spec.md §5 "unbounded concurrency is
// disallowed; a semaphore caps concurrent subprocess count to a
// user-configurable value (default = CPU count)".
func DefaultConcurrency() int {
	return runtime.NumCPU()
}
