package matcher

import "strings"

// similarity scores how alike two names are on a 0..1 scale, used by the
// disambiguation step (spec.md §4.5 step 4, "normalized Damerau-Levenshtein
// -like"). No string-similarity library appears anywhere in the example
// pack (the original implementation leans on Rust's strsim crate for this
// exact purpose, per original_source/src/import_dats.rs's prompt-ranking
// code), so this is a small hand-written Jaro-Winkler scorer — the same
// family of algorithm the original reaches for, just with no Go library in
// the retrieved pack to adopt in its place.
func similarity(a, b string) float64 {
	a = normalizeForCompare(a)
	b = normalizeForCompare(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	jaro := jaroSimilarity(a, b)
	prefix := commonPrefixLen(a, b, 4)
	return jaro + float64(prefix)*0.1*(1-jaro)
}

func normalizeForCompare(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func commonPrefixLen(a, b string, max int) int {
	n := 0
	for n < len(a) && n < len(b) && n < max && a[n] == b[n] {
		n++
	}
	return n
}

func jaroSimilarity(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	matchDist := la/2 - 1
	if lb/2-1 > matchDist {
		matchDist = lb / 2
	}
	if matchDist < 0 {
		matchDist = 0
	}

	aMatched := make([]bool, la)
	bMatched := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		start := i - matchDist
		if start < 0 {
			start = 0
		}
		end := i + matchDist + 1
		if end > lb {
			end = lb
		}
		for j := start; j < end; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions/2))/m) / 3
}
