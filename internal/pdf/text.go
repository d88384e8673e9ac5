// Package pdf reads PDF documents: page counts, first-page text, DOIs, and a
// coarse raster of the first page used for perceptual hashing.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultTextPages is the number of leading pages searched for metadata.
const DefaultTextPages = 3

// DOI pattern: 10.XXXX/... where XXXX is 4-9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Document is an opened PDF. Close must be called when done.
type Document struct {
	path   string
	closer interface{ Close() error }
	reader *pdf.Reader
}

// Open opens the PDF at path. The ledongthuc reader panics on some
// malformed inputs; those panics are returned as errors.
func Open(path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opening %s: malformed pdf: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Document{path: path, closer: f, reader: r}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.closer.Close()
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Text extracts plain text from the first maxPages pages (all pages when
// maxPages <= 0). Pages that fail to decode are skipped.
func (d *Document) Text(maxPages int) string {
	n := d.reader.NumPage()
	if maxPages <= 0 || maxPages > n {
		maxPages = n
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		text, ok := d.pageText(i)
		if !ok {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String()
}

func (d *Document) pageText(i int) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	page := d.reader.Page(i)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	doc, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPages(), nil
}

// ExtractText extracts text from the first maxPages pages of the PDF at path.
func ExtractText(path string, maxPages int) (string, error) {
	doc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return doc.Text(maxPages), nil
}

// ExtractDOI searches the first pages for a DOI. An empty result without an
// error means no DOI was found.
func ExtractDOI(path string) (string, error) {
	text, err := ExtractText(path, DefaultTextPages)
	if err != nil {
		return "", err
	}
	return FindDOI(text), nil
}

// ExtractTitle returns the first substantial line of the first page.
// This is a best-effort heuristic.
func ExtractTitle(path string) (string, error) {
	text, err := ExtractText(path, 1)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line, nil
		}
	}
	return "", nil
}

// FindDOI returns the first plausible DOI in text.
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// isHeaderLine checks if a line is likely a running header or footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
