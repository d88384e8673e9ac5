// Package identifier derives content-addressable identifiers for records:
// the text-based colrev_id from masterdata and the perceptual colrev_pdf_id
// from the first page of a PDF.
package identifier

import (
	"fmt"
	"strings"
)

// ColrevIDPrefix starts every generated colrev_id.
const ColrevIDPrefix = "colrev_id1:"

// unknownValue marks a field whose value could not be determined.
const unknownValue = "UNKNOWN"

// nonDistinctiveTitles are titles that cannot identify a record on their own.
var nonDistinctiveTitles = map[string]bool{
	"minitrack-introduction": true,
}

// FieldSource gives read access to a record's fields. ENTRYTYPE must be
// available under its key.
type FieldSource interface {
	Get(key string) string
}

// ColrevID computes the colrev_id of a record from its masterdata.
func ColrevID(src FieldSource) (string, error) {
	entryType := strings.ToLower(strings.TrimSpace(src.Get("ENTRYTYPE")))
	if entryType == "" {
		return "", notEnoughData("missing ENTRYTYPE")
	}

	for _, key := range []string{"author", "title", "year"} {
		if err := requireField(src, key); err != nil {
			return "", err
		}
	}

	container, err := containerFor(src, entryType)
	if err != nil {
		return "", err
	}

	authors := formatAuthorsForID(src.Get("author"))
	if authors == "" {
		return "", notEnoughData("author reduces to an empty string")
	}
	title := RobustRep(src.Get("title"))
	if title == "" {
		return "", notEnoughData("title reduces to an empty string")
	}
	if nonDistinctiveTitles[title] {
		return "", notEnoughData(fmt.Sprintf("non-distinctive title %q", title))
	}
	year := RobustRep(src.Get("year"))

	parts := []string{ColrevIDPrefix, typeCode(entryType), container}
	if entryType == "article" {
		parts = append(parts, optionalPart(src, "volume"), optionalPart(src, "number"))
	}
	parts = append(parts, year, authors, title)
	return strings.Join(parts, "|"), nil
}

func typeCode(entryType string) string {
	switch entryType {
	case "article":
		return "a"
	case "inproceedings":
		return "p"
	}
	return entryType
}

// containerFor returns the normalized venue part of the identifier.
func containerFor(src FieldSource, entryType string) (string, error) {
	var key string
	required := true
	switch entryType {
	case "article":
		key = "journal"
	case "inproceedings", "incollection":
		key = "booktitle"
	case "phdthesis", "masterthesis":
		key = "school"
	case "techreport":
		key = "institution"
	case "inbook":
		if strings.TrimSpace(src.Get("booktitle")) != "" {
			key = "booktitle"
		} else {
			key, required = "series", false
		}
	case "book", "proceedings":
		key, required = "series", false
	case "misc", "online", "software":
		key, required = "url", false
	default:
		return "-", nil
	}

	if required {
		if err := requireField(src, key); err != nil {
			return "", err
		}
	}
	return optionalPart(src, key), nil
}

func optionalPart(src FieldSource, key string) string {
	v := strings.TrimSpace(src.Get(key))
	if v == "" || v == unknownValue {
		return "-"
	}
	rep := RobustRep(v)
	if rep == "" {
		return "-"
	}
	return rep
}

func requireField(src FieldSource, key string) error {
	v := strings.TrimSpace(src.Get(key))
	if v == "" || v == unknownValue {
		return notEnoughData(fmt.Sprintf("missing %s", key))
	}
	return nil
}

// formatAuthorsForID keeps the last name of every author.
func formatAuthorsForID(field string) string {
	var lasts []string
	for _, n := range ParseAuthors(field) {
		if n.Last != "" {
			lasts = append(lasts, n.Last)
		}
	}
	return RobustRep(strings.Join(lasts, " "))
}
