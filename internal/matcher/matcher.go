// Package matcher is the Matcher (C5): resolves a set of input paths
// against the catalog by digest, with archive descent, arcade-specific
// name fallback and header headered/stripped double matching (spec.md
// §4.5). It only reads the Catalog Store — materializing bindings into the
// catalog is the caller's job.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/romvault/internal/container"
	"github.com/xxxsen/romvault/internal/hashengine"
	"github.com/xxxsen/romvault/internal/model"
	"github.com/xxxsen/romvault/internal/store"
)

// DisambiguationPrompt is the narrow surface the Matcher needs from the
// Prompt Adapter (§6) to ask the user to break a tie. Declared locally,
// the same way internal/container declares ExternalDecoder, so this
// package never has to import internal/prompt directly.
type DisambiguationPrompt interface {
	ChooseOne(ctx context.Context, question string, options []string) (int, error)
}

// ambiguityMargin/ambiguityMinScore gate unattended auto-selection: the
// winner must clearly lead the runner-up, not just edge it out.
const (
	ambiguityMargin   = 0.12
	ambiguityMinScore = 0.55
)

// Matcher implements the Matcher (C5). It is pure with respect to C1
// (spec.md §4.5 "reads, never writes").
type Matcher struct {
	Store           *store.Store
	Decoder         container.ExternalDecoder
	Arena           *container.Arena
	Prompt          DisambiguationPrompt
	Unattended      bool
	ExtractTopLevel bool
	ChunkKB         int
}

// leaf is one hashable unit discovered under a top-level input path — a
// bare file, or one member of an opened container.
type leaf struct {
	sourcePath string
	entryName  string // empty for a bare top-level file
	entry      container.Entry
}

func (l leaf) display() string {
	if l.entryName == "" {
		return l.sourcePath
	}
	return l.sourcePath + "#" + l.entryName
}

func (l leaf) basisName() string {
	if l.entryName != "" {
		return baseNameNoExt(l.entryName)
	}
	return baseNameNoExt(l.sourcePath)
}

// Match resolves every path in paths against the catalog, optionally
// restricted to one System, per spec.md §4.5's six steps. Output is always
// returned, even on a partial failure, so a caller can inspect whatever
// was resolved before a ContainerError aborted the rest of the batch.
func (m *Matcher) Match(ctx context.Context, paths []string, systemID *int64) (*model.MatchReport, error) {
	report := &model.MatchReport{}

	var sys *model.System
	if systemID != nil {
		s, err := m.Store.Systems.GetByID(ctx, *systemID)
		if err != nil {
			return report, fmt.Errorf("matcher: load system %d: %w", *systemID, err)
		}
		sys = &s
	}

	for _, path := range paths {
		if err := m.matchPath(ctx, path, sys, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (m *Matcher) matchPath(ctx context.Context, path string, sys *model.System, report *model.MatchReport) error {
	leaves, kind, cleanup, err := m.openLeaves(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrContainerError, path, err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	for _, lf := range leaves {
		if err := m.matchLeaf(ctx, lf, kind, sys, report); err != nil {
			switch {
			case errors.Is(err, ErrAmbiguous):
				report.Ambiguous = append(report.Ambiguous, lf.display())
			case errors.Is(err, ErrNoCandidate):
				report.Residuals = append(report.Residuals, lf.display())
			default:
				return err
			}
		}
	}
	return nil
}

// openLeaves opens path via C4 (step 1) and, when ExtractTopLevel is set,
// descends one level into any top-level entry that is itself an archive.
// The returned cleanup must be called once every leaf has been consumed —
// it closes the container and any scratch files a descent step wrote.
func (m *Matcher) openLeaves(ctx context.Context, path string) ([]leaf, container.Kind, func(), error) {
	src, kind, err := container.Open(ctx, path, m.Decoder, m.Arena)
	if err != nil {
		return nil, "", nil, err
	}

	var cleanups []func()
	cleanups = append(cleanups, func() { src.Close() })
	ok := false
	defer func() {
		if !ok {
			runCleanups(cleanups)
		}
	}()

	entries := src.Entries()
	leaves := make([]leaf, 0, len(entries))
	for _, e := range entries {
		if m.ExtractTopLevel && isArchiveName(e.LogicalName) {
			nested, nestedCleanup, err := m.descendOnce(ctx, path, e)
			if err != nil {
				return nil, "", nil, err
			}
			if nestedCleanup != nil {
				cleanups = append(cleanups, nestedCleanup)
			}
			leaves = append(leaves, nested...)
			continue
		}
		leaves = append(leaves, leaf{sourcePath: path, entryName: e.LogicalName, entry: e})
	}

	ok = true
	return leaves, kind, func() { runCleanups(cleanups) }, nil
}

// descendOnce materializes one container entry into a scratch file and
// opens it as its own container — a single level of recursion, per
// spec.md §4.5 step 1 "recursively descend one level". It does not check
// isArchiveName on the result, so a triply-nested archive is left as one
// opaque leaf rather than being expanded further.
func (m *Matcher) descendOnce(ctx context.Context, parentPath string, e container.Entry) ([]leaf, func(), error) {
	if m.Arena == nil {
		return []leaf{{sourcePath: parentPath, entryName: e.LogicalName, entry: e}}, nil, nil
	}

	scopeDir, cleanupScope, err := m.Arena.Scope()
	if err != nil {
		return nil, nil, err
	}
	ok := false
	defer func() {
		if !ok {
			cleanupScope()
		}
	}()

	tmpPath := filepath.Join(scopeDir, filepath.Base(e.LogicalName))
	rc, err := e.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return nil, nil, err
	}
	if err := f.Close(); err != nil {
		return nil, nil, err
	}

	nestedSrc, _, err := container.Open(ctx, tmpPath, m.Decoder, m.Arena)
	if err != nil {
		return nil, nil, err
	}

	var leaves []leaf
	for _, ne := range nestedSrc.Entries() {
		leaves = append(leaves, leaf{sourcePath: parentPath, entryName: e.LogicalName + "/" + ne.LogicalName, entry: ne})
	}

	ok = true
	return leaves, func() { nestedSrc.Close(); cleanupScope() }, nil
}

// matchLeaf runs steps 2-6 of spec.md §4.5 against one leaf.
func (m *Matcher) matchLeaf(ctx context.Context, lf leaf, kind container.Kind, sys *model.System, report *model.MatchReport) error {
	var header *model.Header
	if sys != nil {
		h, err := m.Store.Headers.GetBySystem(ctx, sys.ID)
		switch {
		case err == nil:
			header = &h
		case errors.Is(err, store.ErrNotFound):
			// most systems carry no header definition; nothing to strip.
		default:
			return fmt.Errorf("%w: load header for system %d: %v", ErrContainerError, sys.ID, err)
		}
	}

	candidates, headered, err := m.digestCandidates(ctx, lf, header)
	if err != nil {
		return fmt.Errorf("%w: digest %s: %v", ErrContainerError, lf.display(), err)
	}

	// Step 5: arcade ZIP fallback, tried only once digest matching alone
	// came up empty.
	if len(candidates) == 0 && sys != nil && sys.Arcade && kind == container.KindZip {
		binding, ok, err := m.arcadeNameMatch(ctx, lf, sys)
		if err != nil {
			return fmt.Errorf("%w: arcade fallback %s: %v", ErrContainerError, lf.display(), err)
		}
		if ok {
			report.Bindings = append(report.Bindings, binding)
			return nil
		}
	}

	if sys != nil {
		filtered, err := m.filterBySystem(ctx, candidates, sys.ID)
		if err != nil {
			return fmt.Errorf("%w: filter candidates %s: %v", ErrContainerError, lf.display(), err)
		}
		candidates = filtered
	}

	switch len(candidates) {
	case 0:
		return ErrNoCandidate
	case 1:
		binding, err := m.toBinding(ctx, lf, candidates[0], headered)
		if err != nil {
			return fmt.Errorf("%w: bind %s: %v", ErrContainerError, lf.display(), err)
		}
		report.Bindings = append(report.Bindings, binding)
		return nil
	default:
		winner, ok := m.resolveAmbiguous(ctx, lf, candidates)
		if !ok {
			return ErrAmbiguous
		}
		binding, err := m.toBinding(ctx, lf, winner, headered)
		if err != nil {
			return fmt.Errorf("%w: bind %s: %v", ErrContainerError, lf.display(), err)
		}
		report.Bindings = append(report.Bindings, binding)
		return nil
	}
}

// digestCandidates implements step 2 (compute digests), step 3 (query by
// size+digest, falling back crc32 -> sha1 -> md5) and step 6 (header
// headered/stripped double match, stripped preferred). headered reports
// whether the binding that was ultimately found came from the stripped
// digest (i.e. the rom's declared hashes are the header-free form).
func (m *Matcher) digestCandidates(ctx context.Context, lf leaf, header *model.Header) ([]model.Rom, bool, error) {
	full, stripped, err := m.digestsForLeaf(ctx, lf, header)
	if err != nil {
		return nil, false, err
	}

	if stripped != nil {
		candidates, err := m.queryCandidates(ctx, *stripped)
		if err != nil {
			return nil, false, err
		}
		if len(candidates) > 0 {
			return candidates, true, nil
		}
	}

	candidates, err := m.queryCandidates(ctx, full)
	if err != nil {
		return nil, false, err
	}
	return candidates, false, nil
}

// digestsForLeaf computes the whole-entry digest and, when header has a
// rule matching the probe window, the header-stripped digest too. Unlike
// hashengine.HashWithHeader this works off container.Entry rather than an
// io.ReadSeeker: Entry.Open re-opens a fresh reader each call, so the
// stripped pass just opens again and discards the header bytes instead of
// seeking back.
func (m *Matcher) digestsForLeaf(ctx context.Context, lf leaf, header *model.Header) (hashengine.Digest, *hashengine.Digest, error) {
	rc, err := lf.entry.Open()
	if err != nil {
		return hashengine.Digest{}, nil, err
	}
	full, err := hashengine.HashReader(ctx, rc, m.ChunkKB)
	rc.Close()
	if err != nil {
		return hashengine.Digest{}, nil, err
	}

	if header == nil || len(header.Rules) == 0 {
		return full, nil, nil
	}

	probe, err := lf.entry.PeekHead(hashengine.ProbeWindow)
	if err != nil {
		return full, nil, nil
	}
	rule := hashengine.MatchHeaderRule(probe, header.Rules)
	if rule == nil {
		return full, nil, nil
	}

	rc2, err := lf.entry.Open()
	if err != nil {
		return full, nil, err
	}
	defer rc2.Close()
	skip := rule.StartByte + rule.Length
	if _, err := io.CopyN(io.Discard, rc2, skip); err != nil && err != io.EOF {
		return full, nil, err
	}
	stripped, err := hashengine.HashReaderOp(ctx, rc2, m.ChunkKB, header.Operation)
	if err != nil {
		return full, nil, err
	}
	return full, &stripped, nil
}

func (m *Matcher) queryCandidates(ctx context.Context, d hashengine.Digest) ([]model.Rom, error) {
	size, crc, md5, sha1 := d.Size, d.CRC32, d.MD5, d.SHA1

	if roms, err := m.Store.Roms.FindByHashes(ctx, &size, &crc, nil, nil); err != nil {
		return nil, err
	} else if len(roms) > 0 {
		return roms, nil
	}
	if roms, err := m.Store.Roms.FindByHashes(ctx, &size, nil, nil, &sha1); err != nil {
		return nil, err
	} else if len(roms) > 0 {
		return roms, nil
	}
	return m.Store.Roms.FindByHashes(ctx, &size, nil, &md5, nil)
}

func (m *Matcher) filterBySystem(ctx context.Context, roms []model.Rom, systemID int64) ([]model.Rom, error) {
	out := make([]model.Rom, 0, len(roms))
	for _, r := range roms {
		g, err := m.Store.Games.GetByID(ctx, r.GameID)
		if err != nil {
			return nil, err
		}
		if g.SystemID == systemID {
			out = append(out, r)
		}
	}
	return out, nil
}

// arcadeNameMatch implements step 5: for ZIP archives against arcade
// Systems, resolve the Game from the archive's own basename (or, for a
// nested entry, its containing directory name) rather than from a Rom
// digest, then match the entry's base filename to a Rom belonging to that
// Game by name. Grounded on the teacher's tester.testOne
// (internal/sdk/sdk.go), which resolves a Game from an archive's filename
// the same way before ever looking at file contents.
func (m *Matcher) arcadeNameMatch(ctx context.Context, lf leaf, sys *model.System) (model.MatchBinding, bool, error) {
	target := strings.ToLower(filepath.Base(lf.entryName))
	for _, name := range arcadeGameNameCandidates(lf) {
		game, err := m.Store.Games.GetByName(ctx, sys.ID, name)
		if err != nil {
			continue
		}
		roms, err := m.Store.Roms.ListByGame(ctx, game.ID)
		if err != nil {
			return model.MatchBinding{}, false, err
		}
		for _, r := range roms {
			if strings.ToLower(r.Name) == target {
				return model.MatchBinding{
					SourcePath: lf.sourcePath,
					EntryName:  lf.entryName,
					RomID:      r.ID,
					RomName:    r.Name,
					GameName:   game.Name,
					SystemName: sys.Name,
				}, true, nil
			}
		}
	}
	return model.MatchBinding{}, false, nil
}

func arcadeGameNameCandidates(lf leaf) []string {
	names := []string{baseNameNoExt(filepath.Base(lf.sourcePath))}
	if lf.entryName != "" {
		if dir := filepath.Dir(lf.entryName); dir != "." && dir != "/" {
			names = append(names, filepath.Base(dir))
		}
	}
	return names
}

// resolveAmbiguous implements step 4. In unattended mode it auto-selects a
// clear similarity winner; otherwise it defers to the Prompt Adapter, and
// with neither a clear winner nor a prompt available the leaf stays
// Ambiguous.
func (m *Matcher) resolveAmbiguous(ctx context.Context, lf leaf, candidates []model.Rom) (model.Rom, bool) {
	if m.Unattended || m.Prompt == nil {
		return m.bestBySimilarity(ctx, lf, candidates)
	}

	options := make([]string, len(candidates))
	for i, c := range candidates {
		options[i] = m.describeCandidate(ctx, c)
	}
	choice, err := m.Prompt.ChooseOne(ctx, fmt.Sprintf("multiple catalog matches for %s", lf.display()), options)
	if err != nil || choice < 0 || choice >= len(candidates) {
		return model.Rom{}, false
	}
	return candidates[choice], true
}

func (m *Matcher) bestBySimilarity(ctx context.Context, lf leaf, candidates []model.Rom) (model.Rom, bool) {
	basis := lf.basisName()
	best, bestScore, runnerScore := -1, -1.0, -1.0
	for i, c := range candidates {
		name := c.Name
		if g, err := m.Store.Games.GetByID(ctx, c.GameID); err == nil {
			name = g.Name
		}
		score := similarity(basis, name)
		if score > bestScore {
			runnerScore = bestScore
			bestScore = score
			best = i
		} else if score > runnerScore {
			runnerScore = score
		}
	}
	if best < 0 || bestScore < ambiguityMinScore || bestScore-runnerScore < ambiguityMargin {
		return model.Rom{}, false
	}
	return candidates[best], true
}

func (m *Matcher) describeCandidate(ctx context.Context, r model.Rom) string {
	g, err := m.Store.Games.GetByID(ctx, r.GameID)
	if err != nil {
		return r.Name
	}
	sys, err := m.Store.Systems.GetByID(ctx, g.SystemID)
	if err != nil {
		return g.Name + " / " + r.Name
	}
	return sys.DisplayName() + " / " + g.Name + " / " + r.Name
}

func (m *Matcher) toBinding(ctx context.Context, lf leaf, r model.Rom, headered bool) (model.MatchBinding, error) {
	g, err := m.Store.Games.GetByID(ctx, r.GameID)
	if err != nil {
		return model.MatchBinding{}, err
	}
	sys, err := m.Store.Systems.GetByID(ctx, g.SystemID)
	if err != nil {
		return model.MatchBinding{}, err
	}
	return model.MatchBinding{
		SourcePath: lf.sourcePath,
		EntryName:  lf.entryName,
		RomID:      r.ID,
		RomName:    r.Name,
		GameName:   g.Name,
		SystemName: sys.Name,
		Headered:   headered,
	}, nil
}

func isArchiveName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".zip" || ext == ".7z"
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runCleanups(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
