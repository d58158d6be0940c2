// Package mover is the Sorter/Mover (C7): it lays out a System's Romfiles
// under ROM_DIRECTORY into the default/1G1R/Trash target layout, plans the
// moves as a batch, then executes them with a cross-device copy+verify
// fallback. Grounded on the teacher's NormalizeCommand
// (internal/app/normalize.go): stat-then-os.Rename, os.MkdirAll for the
// destination directory, a .tmp-then-rename swap for anything that has to
// be copied instead of renamed in place.
package mover

import (
	"path/filepath"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"github.com/xxxsen/romvault/internal/model"
)

// Bucket is which of the three target roots a placement belongs in.
type Bucket string

const (
	BucketDefault Bucket = "default"
	BucketOneG1R  Bucket = "1g1r"
	BucketTrash   Bucket = "trash"
)

// SubfolderScheme controls whether files are further bucketed by first
// letter within their target root.
type SubfolderScheme string

const (
	SubfolderNone  SubfolderScheme = "none"
	SubfolderAlpha SubfolderScheme = "alpha"
)

// Settings are the layout policy knobs, spec.md §4.7.
type Settings struct {
	GroupSubsystems bool
	Subfolder       SubfolderScheme
	ChunkKB         int
}

// Placement is one Romfile's classification, typically produced by
// combining C6's election result (1G1R winner vs ignored clone) with
// whatever Roms have no election cluster at all (plain "default").
type Placement struct {
	Rom     model.Rom
	Romfile model.Romfile
	Bucket  Bucket
}

// Move is one planned or executed filesystem move; ToReport formats a
// batch of these as the model.MoveAction/model.SortReport the rest of the
// system exchanges.
type Move struct {
	Rom         model.Rom
	RomfileID   int64
	From        string
	To          string
	CrossDevice bool
	Executed    bool
}

// Mover plans and executes moves rooted at RootDir (ROM_DIRECTORY).
type Mover struct {
	RootDir  string
	Settings Settings
}

// Plan computes the target path for every placement and returns only the
// moves that actually change a file's location — spec.md §4.7 "including
// rename-only moves within the same device" but never a move that is
// already in place. SYSTEM_DIR derivation and the alpha subfolder scheme
// run here; Execute does the filesystem work.
func (m *Mover) Plan(system model.System, placements []Placement) []Move {
	systemDir := deriveSystemDir(system, m.Settings.GroupSubsystems)

	moves := make([]Move, 0, len(placements))
	for _, p := range placements {
		base := filepath.Base(p.Romfile.Path)
		subfolder := ""
		if m.Settings.Subfolder == SubfolderAlpha {
			subfolder = letterBucket(strings.TrimSuffix(base, filepath.Ext(base)))
		}

		destRel := filepath.ToSlash(filepath.Join(systemDir, bucketDir(p.Bucket, system.Arcade), subfolder, base))
		if destRel == p.Romfile.Path {
			continue
		}

		moves = append(moves, Move{
			Rom:       p.Rom,
			RomfileID: p.Romfile.ID,
			From:      filepath.Join(m.RootDir, filepath.FromSlash(p.Romfile.Path)),
			To:        filepath.Join(m.RootDir, filepath.FromSlash(destRel)),
		})
	}
	return moves
}

// ToReport formats a batch of Moves (planned or executed) as the report
// type spec.md §7 hands back to the CLI/web layer.
func ToReport(systemName string, moves []Move, foreign []string) model.SortReport {
	report := model.SortReport{SystemName: systemName, Foreign: foreign}
	for _, mv := range moves {
		report.Moves = append(report.Moves, model.MoveAction{
			From:        mv.From,
			To:          mv.To,
			CrossDevice: mv.CrossDevice,
			Executed:    mv.Executed,
		})
	}
	return report
}

func deriveSystemDir(system model.System, groupSubsystems bool) string {
	name := system.DisplayName()
	if groupSubsystems {
		if idx := strings.LastIndex(name, " - "); idx >= 0 {
			name = name[idx+len(" - "):]
		}
	}
	return sanitizeDirName(name)
}

func sanitizeDirName(name string) string {
	name = strings.TrimSpace(name)
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(name)
}

func bucketDir(b Bucket, arcade bool) string {
	switch b {
	case BucketOneG1R:
		if arcade {
			// spec.md §4.7 "Arcade Systems never use 1G1R".
			return ""
		}
		return "1G1R"
	case BucketTrash:
		return "Trash"
	default:
		return ""
	}
}

// letterBucket buckets by first letter, digits and punctuation into "#",
// transliterating non-Latin titles via go-pinyin so a System or Game named
// in Chinese still buckets by its initial instead of collapsing into "#".
func letterBucket(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "#"
	}
	r := []rune(name)[0]
	switch {
	case r >= 'a' && r <= 'z':
		return strings.ToUpper(string(r))
	case r >= 'A' && r <= 'Z':
		return string(r)
	case r >= '0' && r <= '9':
		return "#"
	}

	py := pinyin.LazyPinyin(string(r), pinyin.NewArgs())
	if len(py) > 0 && py[0] != "" {
		initial := []rune(py[0])[0]
		if initial >= 'a' && initial <= 'z' {
			return strings.ToUpper(string(initial))
		}
	}
	return "#"
}
