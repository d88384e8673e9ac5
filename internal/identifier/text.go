package identifier

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)
	dashRunPattern  = regexp.MustCompile(`-{2,}`)
)

// StripDiacritics removes combining marks after canonical decomposition
// ("Müller" -> "Muller").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// RobustRep lowercases s, strips diacritics, and collapses every run of
// non-alphanumeric characters into a single dash.
func RobustRep(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	s = strings.NewReplacer("{", "", "}", "", `\&`, "and", "&", "and").Replace(s)
	s = nonAlnumPattern.ReplaceAllString(s, "-")
	s = dashRunPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UpperCaseFraction returns the share of letters in s that are upper case.
// Strings without letters yield 0.
func UpperCaseFraction(s string) float64 {
	letters, upper := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// LetterCount returns the number of letters in s.
func LetterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
