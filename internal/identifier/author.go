package identifier

import (
	"strings"
	"unicode"
)

// Name is one parsed author name.
type Name struct {
	First string
	Last  string
}

// Common name suffixes to keep with the last name.
var nameSuffixes = map[string]bool{
	"jr":  true,
	"jr.": true,
	"sr":  true,
	"sr.": true,
	"ii":  true,
	"iii": true,
	"iv":  true,
}

// ParseAuthors splits a BibTeX author field ("Last, First and Last, First")
// into names. Braced corporate authors are kept whole as the last name.
func ParseAuthors(field string) []Name {
	field = strings.Join(strings.Fields(strings.ReplaceAll(field, "\n", " ")), " ")
	if field == "" {
		return nil
	}
	field = strings.ReplaceAll(field, "; ", " and ")

	var names []Name
	for _, part := range splitAnd(field) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, parseName(part))
	}
	return names
}

// splitAnd splits on " and " outside of braces.
func splitAnd(s string) []string {
	var parts []string
	depth, start := 0, 0
	lower := strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ' ':
			if depth == 0 && strings.HasPrefix(lower[i:], " and ") {
				parts = append(parts, s[start:i])
				start = i + len(" and ")
				i += len(" and ") - 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseName(part string) Name {
	if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
		return Name{Last: strings.Trim(part, "{}")}
	}

	if idx := strings.Index(part, ","); idx >= 0 {
		last := strings.TrimSpace(part[:idx])
		first := strings.TrimSpace(part[idx+1:])
		// "Smith, Jr., John"
		if rest := strings.Index(first, ","); rest >= 0 && nameSuffixes[strings.ToLower(strings.TrimSpace(first[:rest]))] {
			last = last + " " + strings.TrimSpace(first[:rest])
			first = strings.TrimSpace(first[rest+1:])
		}
		return Name{First: first, Last: strings.Trim(last, "{}")}
	}

	fields := strings.Fields(part)
	if len(fields) == 1 {
		return Name{Last: strings.Trim(fields[0], "{}")}
	}

	lastPart := strings.ToLower(fields[len(fields)-1])
	if nameSuffixes[lastPart] && len(fields) > 2 {
		return Name{
			First: strings.Join(fields[:len(fields)-2], " "),
			Last:  fields[len(fields)-2] + " " + fields[len(fields)-1],
		}
	}

	// Lower-case particles belong to the last name ("Ludwig van Beethoven").
	lastStart := len(fields) - 1
	for lastStart > 1 && isParticle(fields[lastStart-1]) {
		lastStart--
	}
	return Name{
		First: strings.Join(fields[:lastStart], " "),
		Last:  strings.Join(fields[lastStart:], " "),
	}
}

func isParticle(word string) bool {
	if word == "" {
		return false
	}
	return unicode.IsLower([]rune(word)[0])
}

// FirstAuthorLast returns the last name of the first author, or "".
func FirstAuthorLast(field string) string {
	names := ParseAuthors(field)
	if len(names) == 0 {
		return ""
	}
	return names[0].Last
}
