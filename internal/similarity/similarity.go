// Package similarity scores how alike two strings or two records are.
package similarity

import (
	"strings"

	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/record"
)

// Distance returns the Levenshtein edit distance between a and b, counted
// in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// Keep rb the shorter one; two rows of len(rb)+1 suffice.
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Ratio returns 1 - distance/maxlen over the normalized forms of a and b.
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(n)
}

// Normalize lowercases s, strips diacritics and punctuation, and collapses
// whitespace.
func Normalize(s string) string {
	return strings.ReplaceAll(identifier.RobustRep(s), "-", " ")
}

type weight struct {
	key string
	w   float64
}

// weights per field for articles and for every other entrytype, in the
// order they are summed.
var (
	articleWeights = []weight{
		{"author", 0.2}, {"title", 0.25}, {"year", 0.13}, {"container", 0.2}, {"volume", 0.12}, {"number", 0.1},
	}
	otherWeights = []weight{
		{"author", 0.15}, {"title", 0.75}, {"year", 0.05}, {"container", 0.05},
	}
)

// value returns a known field value; the container is journal or
// booktitle, whichever is set.
func value(r *record.Record, key string) string {
	if key == "container" {
		if v := value(r, "journal"); v != "" {
			return v
		}
		return value(r, "booktitle")
	}
	if !r.HasValue(key) {
		return ""
	}
	return r.Get(key)
}

// Records returns the weighted similarity of two records between 0 and 1.
// Article weights apply when both records are articles. A field missing
// from both records counts as equal; missing from one counts as distinct.
func Records(a, b *record.Record) float64 {
	weights := otherWeights
	if a.EntryType == "article" && b.EntryType == "article" {
		weights = articleWeights
	}
	score := 0.0
	for _, fw := range weights {
		key, w := fw.key, fw.w
		va, vb := value(a, key), value(b, key)
		switch {
		case va == "" && vb == "":
			score += w
		case va == "" || vb == "":
		case key == "year" || key == "volume" || key == "number":
			if strings.TrimSpace(va) == strings.TrimSpace(vb) {
				score += w
			}
		default:
			score += w * Ratio(va, vb)
		}
	}
	return min(score, 1)
}
