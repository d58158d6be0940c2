// Package datfile is the Dat Parser (C2): decodes Logiqx XML and PS3 IRD
// binary dat files into normalized System/Header/Game/Rom records ready
// for the Catalog Store, applying the naming-convention grammar and MAME
// arcade auto-detection along the way.
package datfile

import (
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
)

// Record is one parsed dat's output: a System plus its optional Header and
// the Games it declares, per spec.md §4.2 "(System, Header?, Games[*])".
type Record struct {
	System model.System
	Header *model.Header
	Games  []model.Game
	Roms   map[string][]model.Rom // keyed by Game.Name, since Games have no ID yet

	// ParentHints maps a Game's Name to its dat-declared clone-of Game
	// name; CloneOf/RomOf reference a sibling Game by name, which has no
	// id until the whole Record is upserted, so resolution to Game.ParentID
	// happens as a second pass in the importer after all Games exist.
	ParentHints map[string]string
}

// LoadFile parses a single dat file at path. A ZIP holding multiple dats is
// expanded transparently, returning one Record per member, matching
// spec.md §4.2 "optionally inside a ZIP holding many dats".
func LoadFile(path string, headers HeaderLoader) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datfile: open %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		return loadZip(path, headers)
	}
	rec, err := parseOne(f, headers)
	if err != nil {
		return nil, fmt.Errorf("datfile: parse %s: %w", path, err)
	}
	return []Record{*rec}, nil
}

func loadZip(path string, headers HeaderLoader) ([]Record, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("datfile: open zip %s: %w", path, err)
	}
	defer zr.Close()

	var out []Record
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("datfile: open zip member %s: %w", member.Name, err)
		}
		rec, err := parseOne(rc, headers)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("datfile: parse zip member %s: %w", member.Name, err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// parseOne sniffs for a MAME <machine> tag before deciding which decode
// path to take, then runs the naming grammar and header lookup over the
// decoded entities. The sniff reads a bounded prefix rather than the whole
// stream — dats can run into the hundreds of megabytes (spec.md §4.2
// "avoid loading multi-hundred-megabyte dats into memory"), so the
// decision has to happen before the XML decoder consumes everything.
func parseOne(r io.Reader, headers HeaderLoader) (*Record, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	isMame, err := sniffMame(br)
	if err != nil {
		return nil, err
	}

	if isMame {
		return parseMameRecord(br, headers)
	}
	return parseLogiqxRecord(br, headers)
}

// sniffMame peeks at the stream for a "<machine" tag within the first 64KB
// without consuming bytes the real decoder will need, per spec.md §4.2
// "MAME dat auto-detection: presence of <machine> tags ... promotes the
// System to arcade mode automatically".
func sniffMame(br *bufio.Reader) (bool, error) {
	peek, err := br.Peek(64 * 1024)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return false, fmt.Errorf("datfile: sniff dat header: %w", err)
	}
	return bytes.Contains(peek, []byte("<machine")), nil
}

func parseLogiqxRecord(r io.Reader, headers HeaderLoader) (*Record, error) {
	df, err := parseLogiqx(r)
	if err != nil {
		return nil, err
	}

	sys := model.System{
		Name:        df.Header.Name,
		Description: df.Header.Description,
		Version:     df.Header.Version,
		Arcade:      false,
		Merging:     model.MergingSplit,
	}

	rec := &Record{System: sys, Roms: make(map[string][]model.Rom), ParentHints: make(map[string]string)}
	for _, g := range df.Games {
		game, roms, err := convertLogiqxGame(g)
		if err != nil {
			continue // unparseable names are skipped with a warning, spec.md §4.2
		}
		rec.Games = append(rec.Games, game)
		rec.Roms[game.Name] = roms
		if g.CloneOf != "" {
			rec.ParentHints[game.Name] = g.CloneOf
		}
	}

	h, err := headers.Load(sys.Name)
	if err != nil {
		return nil, err
	}
	rec.Header = h
	return rec, nil
}

func parseMameRecord(r io.Reader, headers HeaderLoader) (*Record, error) {
	df, err := parseMame(r)
	if err != nil {
		return nil, err
	}

	sys := model.System{
		Name:        df.Header.Name,
		Description: df.Header.Description,
		Version:     df.Header.Version,
		Arcade:      true,
		Merging:     model.MergingSplit,
	}

	rec := &Record{System: sys, Roms: make(map[string][]model.Rom), ParentHints: make(map[string]string)}
	for _, m := range df.Machines {
		game := model.Game{
			Name:       m.Name,
			Completion: model.CompletionNone,
			Sorting:    model.SortingIgnored,
		}
		var roms []model.Rom
		for _, r := range m.Roms {
			roms = append(roms, convertLogiqxRom(r))
		}
		for _, d := range m.Disks {
			roms = append(roms, model.Rom{
				Name:   d.Name,
				SHA1:   strPtrOrNil(d.SHA1),
				Status: statusFromDatString(d.Status),
			})
		}
		rec.Games = append(rec.Games, game)
		rec.Roms[game.Name] = roms
		if m.CloneOf != "" {
			rec.ParentHints[game.Name] = m.CloneOf
		}
	}

	h, err := headers.Load(sys.Name)
	if err != nil {
		return nil, err
	}
	rec.Header = h
	return rec, nil
}

func convertLogiqxGame(g logiqxGame) (model.Game, []model.Rom, error) {
	parsed, err := ParseName(g.Name)
	if err != nil {
		return model.Game{}, nil, err
	}
	game := model.Game{
		Name:       g.Name,
		Regions:    parsed.Regions,
		Languages:  parsed.Languages,
		Flags:      parsed.Flags,
		Revision:   parsed.Revision,
		DiscIndex:  parsed.DiscIndex,
		Completion: model.CompletionNone,
		Sorting:    model.SortingIgnored,
	}
	roms := make([]model.Rom, 0, len(g.Roms))
	for _, r := range g.Roms {
		roms = append(roms, convertLogiqxRom(r))
	}
	return game, roms, nil
}

func convertLogiqxRom(r logiqxRom) model.Rom {
	rom := model.Rom{
		Name:   r.Name,
		CRC32:  strPtrOrNil(r.CRC),
		MD5:    strPtrOrNil(r.MD5),
		SHA1:   strPtrOrNil(r.SHA1),
		Status: statusFromDatString(r.Status),
	}
	if r.Size > 0 {
		size := r.Size
		rom.Size = &size
	}
	return rom
}

func statusFromDatString(s string) model.RomStatus {
	switch strings.ToLower(s) {
	case "baddump":
		return model.RomStatusBadDump
	case "nodump":
		return model.RomStatusNoDump
	case "verified":
		return model.RomStatusVerified
	default:
		return model.RomStatusGood
	}
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LoadIRD reads and decodes an IRD file at path, transparently unwrapping
// a gzip wrapper if present — some IRD mirrors distribute them pre-gzipped
// (original_source/src/import_irds.rs checks the same GZIP_MAGIC prefix).
func LoadIRD(path string) (*IRDFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datfile: open ird %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("datfile: sniff ird %s: %w", path, err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("datfile: open gzipped ird %s: %w", path, err)
		}
		defer zr.Close()
		return ParseIRD(zr)
	}
	return ParseIRD(br)
}
