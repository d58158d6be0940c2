// Package elector is the 1G1R Elector (C6): a pure function scoring a
// parent-clone cluster of Games and picking the single Game each region
// policy prefers, leaving the rest ignored. It has no teacher precedent —
// retrog never ran a 1G1R pass — so it is built the way the teacher builds
// its other small, pure, unit-testable helpers (romtest.go's
// validateRomArchive/checkRomFile): one function, no state, exhaustively
// tested at the function boundary rather than through a larger pipeline.
package elector

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
)

// PreferRegions controls whether a broader or narrower region declaration
// is favored when two candidates otherwise tie.
type PreferRegions string

const (
	PreferRegionsNone   PreferRegions = "none"
	PreferRegionsBroad  PreferRegions = "broad"
	PreferRegionsNarrow PreferRegions = "narrow"
)

// PreferVersions controls whether a newer or older revision is favored.
type PreferVersions string

const (
	PreferVersionsNone PreferVersions = "none"
	PreferVersionsNew  PreferVersions = "new"
	PreferVersionsOld  PreferVersions = "old"
)

// Settings are the election policy knobs, spec.md §4.6.
type Settings struct {
	RegionsOne       []string
	RegionsOneStrict bool
	PreferParents    bool
	PreferRegions    PreferRegions
	PreferVersions   PreferVersions
	PreferFlags      []string
	Languages        []string
}

// infRank marks a Game outside every REGIONS_ONE entry: ineligible.
const infRank = 1 << 30

// Elect scores every Game in cluster against settings and returns the
// winner (nil if the cluster ends up fully ineligible) plus every other
// member of the original cluster, which the caller marks ignored for 1G1R
// purposes (spec.md §4.6 "Output for the cluster: winner?, ignored-members").
func Elect(cluster []model.Game, settings Settings) (*model.Game, []model.Game) {
	pool := cluster
	if !settings.RegionsOneStrict {
		pool = filterOnDisk(pool)
	}
	pool = filterLanguages(pool, settings.Languages)

	var eligible []model.Game
	for _, g := range pool {
		if regionRank(g.Regions, settings.RegionsOne) == infRank {
			continue
		}
		eligible = append(eligible, g)
	}
	if len(eligible) == 0 {
		return nil, cluster
	}

	// "When PARENT is absent, the first eligible clone is promoted to
	// parent for the cluster" — affects only the parent_bias term below,
	// never the stored ParentID.
	promotedID := int64(0)
	hasParent := false
	for _, g := range eligible {
		if g.ParentID == nil {
			hasParent = true
			break
		}
	}
	if !hasParent {
		promotedID = eligible[0].ID
	}

	scoredList := make([]scored, 0, len(eligible))
	for _, g := range eligible {
		isParent := g.ParentID == nil || g.ID == promotedID
		scoredList = append(scoredList, scoreGame(g, isParent, settings))
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		return lessTuple(scoredList[i], scoredList[j])
	})

	winner := scoredList[0].game
	ignored := make([]model.Game, 0, len(cluster))
	for _, g := range cluster {
		if g.ID != winner.ID {
			ignored = append(ignored, g)
		}
	}
	return &winner, ignored
}

// ElectCluster runs Elect and shapes the result as model.ElectionResult,
// the report type spec.md §7 batch operations return.
func ElectCluster(clusterParent string, cluster []model.Game, settings Settings) model.ElectionResult {
	winner, ignored := Elect(cluster, settings)
	result := model.ElectionResult{ClusterParent: clusterParent}
	if winner != nil {
		result.Winner = winner.Name
	}
	for _, g := range ignored {
		result.Ignored = append(result.Ignored, g.Name)
	}
	return result
}

// scored is one candidate's lexicographic tuple, spec.md §4.6 steps 1-5,
// plus the lowercase-name tiebreaker (step 6) kept out of the float tuple
// since it compares as a string.
type scored struct {
	game  model.Game
	tuple [5]float64
	name  string
}

func scoreGame(g model.Game, isParent bool, settings Settings) scored {
	regionRankVal := regionRank(g.Regions, settings.RegionsOne)

	parentBias := 1.0
	if isParent && settings.PreferParents {
		parentBias = 0
	}

	breadth := 0.0
	switch settings.PreferRegions {
	case PreferRegionsBroad:
		breadth = -float64(len(g.Regions))
	case PreferRegionsNarrow:
		breadth = float64(len(g.Regions))
	}

	versionRank := 0.0
	switch settings.PreferVersions {
	case PreferVersionsNew:
		versionRank = -parseRevision(g.Revision)
	case PreferVersionsOld:
		versionRank = parseRevision(g.Revision)
	}

	flagBonus := -float64(intersectCount(g.Flags, settings.PreferFlags))

	return scored{
		game:  g,
		tuple: [5]float64{float64(regionRankVal), parentBias, breadth, versionRank, flagBonus},
		name:  strings.ToLower(g.Name),
	}
}

func lessTuple(a, b scored) bool {
	for i := range a.tuple {
		if a.tuple[i] != b.tuple[i] {
			return a.tuple[i] < b.tuple[i]
		}
	}
	return a.name < b.name
}

// regionRank returns the index of the earliest REGIONS_ONE entry present
// in gameRegions, or infRank if none match. An empty REGIONS_ONE list
// imposes no region restriction at all — every Game ranks 0.
func regionRank(gameRegions, regionsOne []string) int {
	if len(regionsOne) == 0 {
		return 0
	}
	for i, want := range regionsOne {
		for _, have := range gameRegions {
			if strings.EqualFold(want, have) {
				return i
			}
		}
	}
	return infRank
}

func filterOnDisk(pool []model.Game) []model.Game {
	out := make([]model.Game, 0, len(pool))
	for _, g := range pool {
		if g.Completion == model.CompletionComplete {
			out = append(out, g)
		}
	}
	return out
}

// filterLanguages drops a Game only when it declares languages that do
// not intersect whitelist; a Game with no declared languages is always
// kept, per spec.md §4.6 "kept only if its languages intersect".
func filterLanguages(pool []model.Game, whitelist []string) []model.Game {
	if len(whitelist) == 0 {
		return pool
	}
	set := make(map[string]bool, len(whitelist))
	for _, w := range whitelist {
		set[strings.ToLower(w)] = true
	}
	out := make([]model.Game, 0, len(pool))
	for _, g := range pool {
		if len(g.Languages) == 0 || intersectsSet(g.Languages, set) {
			out = append(out, g)
		}
	}
	return out
}

func intersectsSet(vals []string, set map[string]bool) bool {
	for _, v := range vals {
		if set[strings.ToLower(v)] {
			return true
		}
	}
	return false
}

func intersectCount(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, x := range b {
		set[strings.ToLower(x)] = true
	}
	count := 0
	for _, x := range a {
		if set[strings.ToLower(x)] {
			count++
		}
	}
	return count
}

var revisionNumberRE = regexp.MustCompile(`[0-9]+(\.[0-9]+)?`)

func parseRevision(s string) float64 {
	m := revisionNumberRE.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
