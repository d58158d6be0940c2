package datfile

import (
	"regexp"
	"strings"
)

// ParsedName is the output of the naming-convention grammar: a game's
// release metadata extracted from its dat-declared display name, per
// spec.md §4.2 "(base title, ordered regions, ordered languages, ordered
// flags, revision token, disc/volume index, parent-clone hint)", minus the
// parent-clone hint, which comes from the dat's cloneof attribute into
// Record.ParentHints rather than from the name. This is a
// new package-local grammar — the teacher carries no name-parsing code —
// grounded on original_source/src/import_dats.rs's region/language/flag
// token handling (there implemented against the shiratsu_naming crate;
// here as a small regexp/token scanner since no such library is in the
// example pack).
type ParsedName struct {
	BaseTitle string
	Regions   []string
	Languages []string
	Flags     []string
	Revision  string
	DiscIndex int
}

var (
	parenGroupRE   = regexp.MustCompile(`\(([^()]*)\)`)
	bracketGroupRE = regexp.MustCompile(`\[([^\[\]]*)\]`)
	revisionRE     = regexp.MustCompile(`(?i)^rev\s*([0-9]+(?:\.[0-9]+)?)$`)
	versionTokenRE = regexp.MustCompile(`(?i)^v([0-9]+(?:\.[0-9]+)*)$`)
	discRE         = regexp.MustCompile(`(?i)^(?:disc|disk|cd|tape|side)\s*([0-9]+)`)
	languageCodeRE = regexp.MustCompile(`^[A-Z][a-z]$`)
)

// regionNames is the TOSEC/No-Intro region vocabulary. Entries are the
// exact capitalization found inside a region parenthetical group, matched
// case-sensitively to avoid mistaking a language code (e.g. "En") for a
// two-letter region.
var regionNames = map[string]bool{
	"World": true, "USA": true, "US": true, "Europe": true, "EU": true,
	"Japan": true, "JP": true, "Asia": true, "Australia": true, "Brazil": true,
	"Canada": true, "China": true, "France": true, "Germany": true, "Italy": true,
	"Korea": true, "Netherlands": true, "Spain": true, "Sweden": true,
	"Taiwan": true, "UK": true, "United Kingdom": true, "Russia": true,
	"Hong Kong": true, "Unknown": true,
}

// ParseName applies the naming-convention grammar to a single dat-declared
// game name, splitting it into a base title plus the ordered region,
// language, flag and revision tokens embedded in its parenthetical and
// bracketed groups. Returns ErrUnparseableName only when no base title can
// be recovered at all (an all-punctuation name) — spec.md §4.2 says such
// names are skipped with a warning rather than aborting the whole import.
func ParseName(name string) (ParsedName, error) {
	pn := ParsedName{}

	base := name
	for _, m := range parenGroupRE.FindAllStringSubmatch(name, -1) {
		base = strings.Replace(base, m[0], "", 1)
		classifyParenGroup(m[1], &pn)
	}
	for _, m := range bracketGroupRE.FindAllStringSubmatch(name, -1) {
		base = strings.Replace(base, m[0], "", 1)
		for _, flag := range splitTokens(m[1]) {
			if flag != "" {
				pn.Flags = append(pn.Flags, flag)
			}
		}
	}

	pn.BaseTitle = strings.TrimSpace(base)
	if pn.BaseTitle == "" {
		return ParsedName{}, ErrUnparseableName
	}
	return pn, nil
}

// classifyParenGroup sorts the comma-separated tokens of one parenthetical
// group into regions, languages, a revision, a version or a disc index —
// the same groups TOSEC/No-Intro/Redump dats overload a single "(...)" for.
func classifyParenGroup(group string, pn *ParsedName) {
	for _, tok := range splitTokens(group) {
		switch {
		case regionNames[tok]:
			pn.Regions = append(pn.Regions, tok)
		case languageCodeRE.MatchString(tok):
			pn.Languages = append(pn.Languages, tok)
		case revisionRE.MatchString(tok):
			pn.Revision = revisionRE.FindStringSubmatch(tok)[1]
		case versionTokenRE.MatchString(tok):
			pn.Revision = versionTokenRE.FindStringSubmatch(tok)[1]
		case discRE.MatchString(tok):
			pn.DiscIndex = atoiOrZero(discRE.FindStringSubmatch(tok)[1])
		default:
			// Unrecognized parenthetical content (e.g. a publisher note)
			// is dropped — it isn't part of the spec.md token grammar.
		}
	}
}

func splitTokens(group string) []string {
	parts := strings.Split(group, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
