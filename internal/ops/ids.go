package ops

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
)

var (
	idCleanPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)
	idYearPattern  = regexp.MustCompile(`\d{4}`)
)

// GenerateID derives a record ID from author and year following pattern.
// taken reports IDs already in use; collisions get a letter suffix
// ("Rai2021", "Rai2021a", "Rai2021b", ...).
func GenerateID(r *record.Record, pattern string, taken func(string) bool) string {
	names := identifier.ParseAuthors(r.Get("author"))
	var base strings.Builder
	switch {
	case len(names) == 0:
		base.WriteString("Anonymous")
	case pattern == settings.IDPatternThreeAuthorsYear:
		for i, n := range names {
			if i == 3 {
				base.WriteString("EtAl")
				break
			}
			base.WriteString(idPart(n.Last))
		}
	default:
		base.WriteString(idPart(names[0].Last))
	}
	year := idYearPattern.FindString(r.Get("year"))
	if year == "" {
		year = "0000"
	}
	id := base.String() + year
	if !taken(id) {
		return id
	}
	for suffix := 0; ; suffix++ {
		candidate := id + letterSuffix(suffix)
		if !taken(candidate) {
			return candidate
		}
	}
}

// idPart capitalizes each word of a last name and drops everything that
// is not a letter or digit.
func idPart(last string) string {
	last = identifier.StripDiacritics(strings.Trim(last, "{}"))
	var b strings.Builder
	for _, word := range idCleanPattern.Split(last, -1) {
		if word == "" {
			continue
		}
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// letterSuffix maps 0, 1, ..., 25, 26 to "a", "b", ..., "z", "aa".
func letterSuffix(n int) string {
	s := ""
	for {
		s = string(rune('a'+n%26)) + s
		n = n/26 - 1
		if n < 0 {
			return s
		}
	}
}
