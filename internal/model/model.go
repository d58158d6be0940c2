// Package model holds the data transfer objects shared between the store,
// the matching/sorting/conversion pipelines, and the CLI/web presentation
// layers. Entities here are plain structs; persistence lives in internal/store.
package model

import "time"

// MergingStrategy is the arcade ROM set merging policy for a System.
type MergingStrategy string

const (
	MergingSplit          MergingStrategy = "split"
	MergingNonMerged      MergingStrategy = "non-merged"
	MergingFullNonMerged   MergingStrategy = "full-non-merged"
	MergingNone            MergingStrategy = "none"
)

// CompletionLevel is the cached completion state for a System or Game.
type CompletionLevel string

const (
	CompletionNone       CompletionLevel = "none"
	CompletionPartial    CompletionLevel = "partial"
	CompletionComplete   CompletionLevel = "complete"
)

// SortingState mirrors a Game's cached sorting/completion bucket for UI use.
type SortingState string

const (
	SortingIgnored    SortingState = "ignored"
	SortingAllRegions SortingState = "all-regions"
	SortingOneRegion  SortingState = "one-region"
)

// RomStatus is the dat-declared status tag for a Rom.
type RomStatus string

const (
	RomStatusGood     RomStatus = "good"
	RomStatusBadDump  RomStatus = "baddump"
	RomStatusNoDump   RomStatus = "nodump"
	RomStatusVerified RomStatus = "verified"
)

// RomfileKind distinguishes the three kinds of on-disk artifacts a Romfile
// row can represent, so orphan/missing/foreign computations treat them
// uniformly instead of special-casing Patches and Playlists.
type RomfileKind string

const (
	RomfileKindRom      RomfileKind = "rom"
	RomfileKindPatch    RomfileKind = "patch"
	RomfileKindPlaylist RomfileKind = "playlist"
)

// System is a dat-declared platform/console/arcade catalog root.
type System struct {
	ID          int64
	Name        string
	CustomName  string
	Description string
	Version     string
	Arcade      bool
	Merging     MergingStrategy
	Completion  CompletionLevel
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName returns CustomName when set, otherwise Name, per §4.7.
func (s System) DisplayName() string {
	if s.CustomName != "" {
		return s.CustomName
	}
	return s.Name
}

// Game belongs to exactly one System and optionally has a parent (clone of)
// and a bios reference, both within the same System.
type Game struct {
	ID          int64
	SystemID    int64
	Name        string
	ParentID    *int64
	BiosID      *int64
	Regions     []string
	Languages   []string
	Flags       []string
	Revision    string
	DiscIndex   int
	Completion  CompletionLevel
	Sorting     SortingState
}

// Rom belongs to a Game and declares expected identity (size/hashes).
type Rom struct {
	ID          int64
	GameID      int64
	Name        string
	Size        *int64
	CRC32       *string
	MD5         *string
	SHA1        *string
	Status      RomStatus
	ParentID    *int64
	Bios        bool
	RomfileID   *int64
	ChdParentID *int64 // set when this Rom's CHD was compressed against another disc in the same playlist, §4.8 "CHD parents"
}

// Romfile is a physical on-disk artifact, optionally linked to one or more
// Roms (Rom.RomfileID, not stored here — the link lives on the Rom side per
// the data model's "zero or more Roms point to it" cardinality).
type Romfile struct {
	ID   int64
	Path string // relative to ROM_DIRECTORY, POSIX-normalized
	Size int64
	Kind RomfileKind
}

// HeaderRule matches a byte pattern at a fixed offset, used to detect and
// strip platform-specific header prefixes before hashing.
type HeaderRule struct {
	StartByte int64
	Length    int64
	HexPattern string
}

// HeaderOperation names how a matched header is stripped; most consoles
// are a plain skip, but some (N64, Lynx) need byte/word-level reordering.
type HeaderOperation string

const (
	HeaderOpSkip                    HeaderOperation = "skip"
	HeaderOpBitswap                 HeaderOperation = "bitswap"
	HeaderOpVerticalInterleave2Word HeaderOperation = "verticalinterleave2word"
)

// Header is a per-System optional header definition.
type Header struct {
	ID        int64
	SystemID  int64
	Name      string
	Version   string
	Operation HeaderOperation
	Rules     []HeaderRule
}

// Patch belongs to a Rom, ordered by Index, and owns its own Romfile.
type Patch struct {
	ID        int64
	RomID     int64
	Index     int
	RomfileID int64
}

// Playlist is an M3U Romfile generated from a multi-disc Game group.
type Playlist struct {
	ID        int64
	RomfileID int64
	GameIDs   []int64
}

// Setting is a typed (key, value) row; typing happens on read.
type Setting struct {
	Key   string
	Value string
}
