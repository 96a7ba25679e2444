package jargon

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticSimilarityFloor is the minimum Jaro-Winkler score for two words
// that share a primary Double Metaphone code to be treated as the same term.
// Speech recognition frequently produces near-miss spellings of technical
// terms ("kubernetes" vs "cooper netties"), so cache lookups fall back to a
// phonetic match before going out to the explainer.
const phoneticSimilarityFloor = 0.88

// nearestKey returns the cached key that phonetically matches word, or ""
// when none qualifies. word and all keys must already be lowercased.
func nearestKey(word string, keys []string) string {
	wantPrimary, wantSecondary := matchr.DoubleMetaphone(word)
	if wantPrimary == "" {
		return ""
	}

	best := ""
	bestScore := phoneticSimilarityFloor
	for _, key := range keys {
		primary, secondary := matchr.DoubleMetaphone(key)
		if !metaphoneMatch(wantPrimary, wantSecondary, primary, secondary) {
			continue
		}
		score := matchr.JaroWinkler(word, key, false)
		if score > bestScore {
			best = key
			bestScore = score
		}
	}
	return best
}

// metaphoneMatch reports whether any of the candidate's metaphone codes
// agree with the query's.
func metaphoneMatch(wantPrimary, wantSecondary, primary, secondary string) bool {
	if primary != "" && (primary == wantPrimary || primary == wantSecondary) {
		return true
	}
	if secondary != "" && (secondary == wantPrimary || secondary == wantSecondary) {
		return true
	}
	return false
}

// normalizeWord lowercases and trims a user-tapped word for use as a cache
// or word-set key.
func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
