package s2

import (
	"slices"
	"strconv"
	"strings"

	"github.com/matsen/litreview/internal/record"
)

// Common name suffixes to keep with the last name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"v":    true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
	"m.d":  true,
}

// ToRecord converts a paper into a record with id and entrytype inferred
// from the publication type. Every field gets source as provenance.
func ToRecord(paper Paper, id, source string) *record.Record {
	entryType := EntryType(paper)
	r := record.New(id, entryType)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			r.UpdateField(key, value, source)
		}
	}

	set("title", strings.TrimSuffix(paper.Title, "."))
	set("author", FormatAuthors(paper.Authors))
	if paper.Year > 0 {
		set("year", strconv.Itoa(paper.Year))
	}
	venue := venueName(paper)
	switch entryType {
	case "article":
		set("journal", venue)
		if paper.Journal != nil {
			set("volume", paper.Journal.Volume)
			set("pages", normalizePages(paper.Journal.Pages))
		}
	case "inproceedings":
		set("booktitle", venue)
		if paper.Journal != nil {
			set("pages", normalizePages(paper.Journal.Pages))
		}
	}
	if paper.ExternalIDs.DOI != "" {
		set("doi", strings.ToUpper(NormalizeDOI(paper.ExternalIDs.DOI)))
	}
	set("abstract", paper.Abstract)
	set("url", paper.URL)
	if paper.Citations > 0 {
		set("cited_by", strconv.Itoa(paper.Citations))
	}
	set("semantic_scholar_id", paper.PaperID)
	return r
}

// EntryType maps the publication type to a BibTeX entrytype.
func EntryType(paper Paper) string {
	if slices.Contains(paper.PublicationTypes, "Conference") {
		return "inproceedings"
	}
	if slices.Contains(paper.PublicationTypes, "JournalArticle") {
		return "article"
	}
	if paper.PublicationVenue != nil {
		switch strings.ToLower(paper.PublicationVenue.Type) {
		case "journal":
			return "article"
		case "conference":
			return "inproceedings"
		}
	}
	if paper.Journal != nil && paper.Journal.Name != "" {
		return "article"
	}
	return "misc"
}

func venueName(paper Paper) string {
	if paper.Journal != nil && paper.Journal.Name != "" {
		return paper.Journal.Name
	}
	if paper.PublicationVenue != nil && paper.PublicationVenue.Name != "" {
		return paper.PublicationVenue.Name
	}
	return paper.Venue
}

// FormatAuthors renders authors as "Last, First and Last, First".
func FormatAuthors(authors []Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		first, last := splitAuthorName(a.Name)
		switch {
		case last == "":
			continue
		case first == "":
			names = append(names, last)
		default:
			names = append(names, last+", "+first)
		}
	}
	return strings.Join(names, " and ")
}

// normalizePages turns "213-238" or " 213 - 238 " into "213--238".
func normalizePages(pages string) string {
	pages = strings.TrimSpace(pages)
	if pages == "" || strings.Contains(pages, "--") {
		return pages
	}
	if from, to, ok := strings.Cut(pages, "-"); ok {
		return strings.TrimSpace(from) + "--" + strings.TrimSpace(to)
	}
	return pages
}

// splitAuthorName splits a full name into first and last name.
// Handles common suffixes (Jr, Sr, II, III, IV, PhD, MD).
//
// Known limitations:
// - Multi-part surnames (von Neumann, van der Waals) split incorrectly
// - Non-Western name formats may not be handled correctly
// - Middle names are included in the first name
func splitAuthorName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		// Single name (e.g., "Madonna")
		return "", parts[0]
	}

	// Check if the last part is a suffix
	lastPart := strings.ToLower(parts[len(parts)-1])
	if nameSuffixes[lastPart] && len(parts) > 2 {
		// Keep suffix with last name
		last = parts[len(parts)-2] + " " + parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-2], " ")
	} else {
		// Standard split: last part is last name
		last = parts[len(parts)-1]
		first = strings.Join(parts[:len(parts)-1], " ")
	}

	return first, last
}
