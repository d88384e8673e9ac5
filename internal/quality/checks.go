package quality

import (
	"regexp"
	"slices"
	"strings"

	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/record"
)

// Defect codes written to masterdata provenance notes.
const (
	CodeMostlyUpperCase  = "mostly-upper-case"
	CodeAuthorFormat     = "author-format"
	CodeTitleFormat      = "title-format"
	CodeYearFormat       = "year-format"
	CodeIncomplete       = record.NoteIncomplete
	CodeMissing          = record.NoteMissing
	CodeInconsistentType = "inconsistent-with-entrytype"
)

// Defect is one problem found on one field.
type Defect struct {
	Field string
	Code  string
}

// Checker inspects a record and reports defects for the code it owns.
type Checker interface {
	Code() string
	Check(r *record.Record) []Defect
}

// scopedChecker is a Checker that owns its code on some fields only.
// Notes on the other fields are left alone.
type scopedChecker interface {
	Owns(r *record.Record, field string) bool
}

// upperCaseThreshold is the uppercase share that flags a field.
const upperCaseThreshold = 0.8

// shortContainerLetters exempts acronym venues such as "MISQ" or "ICIS".
const shortContainerLetters = 5

type mostlyUpperCase struct{}

func (mostlyUpperCase) Code() string { return CodeMostlyUpperCase }

func (mostlyUpperCase) Check(r *record.Record) []Defect {
	var defects []Defect
	for _, key := range []string{"title", "author", "journal", "booktitle"} {
		v := r.Get(key)
		if !r.HasValue(key) {
			continue
		}
		if (key == "journal" || key == "booktitle") && identifier.LetterCount(v) <= shortContainerLetters {
			continue
		}
		if identifier.UpperCaseFraction(v) > upperCaseThreshold {
			defects = append(defects, Defect{Field: key, Code: CodeMostlyUpperCase})
		}
	}
	return defects
}

var (
	spacedLettersPattern = regexp.MustCompile(`\b([A-Z] ){3,}[A-Z]\b`)
	rolePattern          = regexp.MustCompile(`(?i)\b(university|universität|institute|department|faculty|school of|college|laboratory)\b`)
	jrSuffixPattern      = regexp.MustCompile(`\bJr\.?$`)
)

// maxSpacesPerComma bounds the spaces between name separators.
const maxSpacesPerComma = 4

type authorFormat struct{}

func (authorFormat) Code() string { return CodeAuthorFormat }

func (authorFormat) Check(r *record.Record) []Defect {
	if !r.HasValue("author") {
		return nil
	}
	author := strings.TrimSpace(r.Get("author"))
	if strings.HasPrefix(author, "{") && strings.HasSuffix(author, "}") {
		return nil
	}
	if authorFormatDefect(author) {
		return []Defect{{Field: "author", Code: CodeAuthorFormat}}
	}
	return nil
}

func authorFormatDefect(author string) bool {
	lower := strings.ToLower(author)
	switch {
	case strings.Contains(lower, "et al."):
		return true
	case strings.HasSuffix(author, ", and") || strings.HasSuffix(author, ", and "):
		return true
	case jrSuffixPattern.MatchString(author):
		return true
	case spacedLettersPattern.MatchString(author):
		return true
	case rolePattern.MatchString(author):
		return true
	}

	commas := strings.Count(author, ",")
	spaces := strings.Count(author, " ")
	if commas > 0 && spaces > maxSpacesPerComma*commas {
		return true
	}
	ands := strings.Count(lower, " and ")
	// "Last, First and Last, First" has one comma per name.
	return ands != commas-1
}

var titleFormatPattern = regexp.MustCompile(`[_.0-9]`)

type titleFormat struct{}

func (titleFormat) Code() string { return CodeTitleFormat }

func (titleFormat) Check(r *record.Record) []Defect {
	if !r.HasValue("title") {
		return nil
	}
	title := strings.TrimSpace(r.Get("title"))
	if !strings.Contains(title, " ") && titleFormatPattern.MatchString(title) {
		return []Defect{{Field: "title", Code: CodeTitleFormat}}
	}
	return nil
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

type yearFormat struct{}

func (yearFormat) Code() string { return CodeYearFormat }

func (yearFormat) Check(r *record.Record) []Defect {
	if !r.HasValue("year") || yearPattern.MatchString(strings.TrimSpace(r.Get("year"))) {
		return nil
	}
	return []Defect{{Field: "year", Code: CodeYearFormat}}
}

type incomplete struct{}

func (incomplete) Code() string { return CodeIncomplete }

func (incomplete) Check(r *record.Record) []Defect {
	var defects []Defect
	for _, key := range record.IdentifyingFields {
		if !r.HasValue(key) {
			continue
		}
		v := strings.TrimSpace(r.Get(key))
		lower := strings.ToLower(v)
		if strings.HasSuffix(v, "…") || strings.HasSuffix(v, "...") || strings.HasSuffix(lower, "and others") {
			defects = append(defects, Defect{Field: key, Code: CodeIncomplete})
		}
	}
	return defects
}

type missingField struct{}

func (missingField) Code() string { return CodeMissing }

// Owns limits the checker to the required fields; missing notes on other
// fields come from restrictions.
func (missingField) Owns(r *record.Record, field string) bool {
	req, ok := record.Requirements[r.EntryType]
	return ok && slices.Contains(req.Required, field)
}

func (missingField) Check(r *record.Record) []Defect {
	req, ok := record.Requirements[r.EntryType]
	if !ok {
		return nil
	}
	var defects []Defect
	for _, key := range req.Required {
		if p := r.Provenance(key); p != nil && p.HasNote(record.NoteNotMissing) {
			continue
		}
		if !r.HasValue(key) {
			defects = append(defects, Defect{Field: key, Code: CodeMissing})
		}
	}
	return defects
}

type inconsistentWithEntryType struct{}

func (inconsistentWithEntryType) Code() string { return CodeInconsistentType }

func (inconsistentWithEntryType) Check(r *record.Record) []Defect {
	req, ok := record.Requirements[r.EntryType]
	if !ok {
		return nil
	}
	var defects []Defect
	for _, key := range req.Forbidden {
		if r.HasValue(key) {
			defects = append(defects, Defect{Field: key, Code: CodeInconsistentType})
		}
	}
	return defects
}

// DefaultCheckers returns the built-in rule set.
func DefaultCheckers() []Checker {
	return []Checker{
		mostlyUpperCase{},
		authorFormat{},
		titleFormat{},
		yearFormat{},
		incomplete{},
		missingField{},
		inconsistentWithEntryType{},
	}
}

// marksDefect reports whether code also sets the quality_defect marker.
func marksDefect(code string) bool {
	return !slices.Contains([]string{CodeMissing}, code)
}
