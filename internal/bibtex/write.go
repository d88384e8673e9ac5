package bibtex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Style selects the field layout.
type Style int

const (
	// StyleAligned pads field names so values start in one column and
	// indents continuation lines to that column. Used for the records file.
	StyleAligned Style = iota
	// StyleCompact writes "  name = {value}".
	StyleCompact
)

// alignedNameWidth is the padded width of field names in StyleAligned.
const alignedNameWidth = 30

const alignedIndent = "   "

// Writer writes entries separated by blank lines.
type Writer struct {
	w     *bufio.Writer
	style Style
	n     int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, style Style) *Writer {
	return &Writer{w: bufio.NewWriter(w), style: style}
}

// Write formats and writes one entry.
func (w *Writer) Write(e *Entry) error {
	if w.n > 0 {
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	w.n++
	_, err := w.w.WriteString(Format(e, w.style))
	return err
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Format renders one entry, ending in a newline. Values are written
// verbatim in braces when they read back unchanged. Other values, such as
// those with an unmatched brace or a trailing backslash, are written in
// quotes with \\, \{, \} and \" escaped, which the Reader decodes.
// Continuation lines are indented to the column of the opening delimiter.
func Format(e *Entry, style Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s", e.Type, e.Key)
	for _, f := range e.Fields {
		b.WriteString(",\n")
		open, value, close := "{", f.Value, "}"
		if !verbatimSafe(value) {
			open, value, close = `"`, escapeQuoted(value), `"`
		}
		var prefix string
		switch style {
		case StyleCompact:
			prefix = "  " + f.Name + " = " + open
		default:
			prefix = alignedIndent + padRight(f.Name, alignedNameWidth) + "= " + open
		}
		continuation := strings.Repeat(" ", len(prefix))
		b.WriteString(prefix + strings.ReplaceAll(value, "\n", "\n"+continuation) + close)
	}
	b.WriteString("\n}\n")
	return b.String()
}

// verbatimSafe reports whether {s} parses back to s: braces balance and
// every backslash has a following character.
func verbatimSafe(s string) bool {
	depth := 0
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && !escaped
}

var quotedEscaper = strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`, `"`, `\"`)

func escapeQuoted(s string) string {
	return quotedEscaper.Replace(s)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

// WriteFile writes entries to path atomically: the content goes to a
// temporary file in the same directory which then replaces path.
func WriteFile(path string, entries []*Entry, style Style) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := NewWriter(tmp, style)
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			tmp.Close()
			return fmt.Errorf("writing %s: %w", e.Key, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
