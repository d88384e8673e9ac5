package bibtex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode"
)

// ParseError reports a syntax error with its line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bibtex: line %d: %s", e.Line, e.Msg)
}

// Reader streams entries from a BibTeX source. @comment and @preamble
// blocks are skipped; @string macros are expanded in later values.
type Reader struct {
	r       *bufio.Reader
	line    int
	col     int
	prevCol int
	macros  map[string]string
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), line: 1, macros: make(map[string]string)}
}

// Next returns the next entry, or io.EOF when the input is exhausted.
func (p *Reader) Next() (*Entry, error) {
	for {
		if err := p.skipTo('@'); err != nil {
			return nil, err
		}
		typ, err := p.readIdent()
		if err != nil {
			return nil, err
		}
		typ = strings.ToLower(typ)
		p.skipSpace()
		open, err := p.readRune()
		if err != nil {
			return nil, p.errorf("unexpected end of input after @%s", typ)
		}
		var close rune
		switch open {
		case '{':
			close = '}'
		case '(':
			close = ')'
		default:
			return nil, p.errorf("expected { after @%s, got %q", typ, open)
		}

		switch typ {
		case "comment", "preamble":
			if _, err := p.readBalanced(open, close); err != nil {
				return nil, err
			}
			continue
		case "string":
			if err := p.readMacro(close); err != nil {
				return nil, err
			}
			continue
		}

		return p.readEntry(typ, close)
	}
}

// All iterates over the remaining entries. Iteration stops after the
// first error, which is yielded with a nil entry.
func (p *Reader) All() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			e, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Parse reads every entry from r.
func Parse(r io.Reader) ([]*Entry, error) {
	var entries []*Entry
	for e, err := range NewReader(r).All() {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseFile reads every entry of the file at path.
func ParseFile(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (p *Reader) readEntry(typ string, close rune) (*Entry, error) {
	p.skipSpace()
	key, err := p.readUntil(func(r rune) bool { return r == ',' || r == close })
	if err != nil {
		return nil, p.errorf("unterminated entry key")
	}
	e := &Entry{Type: typ, Key: strings.TrimSpace(key)}

	for {
		p.skipSpace()
		r, err := p.readRune()
		if err != nil {
			return nil, p.errorf("unterminated entry %s", e.Key)
		}
		switch {
		case r == close:
			return e, nil
		case r == ',':
			continue
		}
		p.unreadRune()

		name, err := p.readUntil(func(r rune) bool { return r == '=' || r == close })
		if err != nil {
			return nil, p.errorf("unterminated field in %s", e.Key)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if next, _ := p.peekRune(); next == close {
			if name != "" {
				return nil, p.errorf("field %s in %s has no value", name, e.Key)
			}
			continue
		}
		p.readRune() // '='

		value, err := p.readValue(close)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, p.errorf("empty field name in %s", e.Key)
		}
		e.Fields = append(e.Fields, Field{Name: name, Value: value})
	}
}

func (p *Reader) readMacro(close rune) error {
	p.skipSpace()
	name, err := p.readUntil(func(r rune) bool { return r == '=' })
	if err != nil {
		return p.errorf("unterminated @string")
	}
	p.readRune()
	value, err := p.readValue(close)
	if err != nil {
		return err
	}
	p.skipSpace()
	if r, err := p.readRune(); err != nil || r != close {
		return p.errorf("unterminated @string")
	}
	p.macros[strings.ToLower(strings.TrimSpace(name))] = value
	return nil
}

// readValue reads parts joined by '#' up to the next ',' or entry close,
// leaving that delimiter unread.
func (p *Reader) readValue(close rune) (string, error) {
	var b strings.Builder
	for {
		p.skipSpace()
		r, err := p.readRune()
		if err != nil {
			return "", p.errorf("unterminated value")
		}
		switch {
		case r == '{':
			indent := p.col
			s, err := p.readBalanced('{', '}')
			if err != nil {
				return "", err
			}
			b.WriteString(dedent(s, indent))
		case r == '"':
			indent := p.col
			s, err := p.readQuoted()
			if err != nil {
				return "", err
			}
			b.WriteString(unescapeQuoted(dedent(s, indent)))
		default:
			p.unreadRune()
			word, err := p.readUntil(func(r rune) bool {
				return r == ',' || r == close || r == '#' || unicode.IsSpace(r)
			})
			if err != nil {
				return "", p.errorf("unterminated value")
			}
			if m, ok := p.macros[strings.ToLower(word)]; ok {
				word = m
			}
			b.WriteString(word)
		}

		p.skipSpace()
		next, err := p.peekRune()
		if err != nil {
			return "", p.errorf("unterminated value")
		}
		if next != '#' {
			return b.String(), nil
		}
		p.readRune()
	}
}

// readBalanced reads up to the brace that closes an already consumed
// opening brace, keeping nested braces.
func (p *Reader) readBalanced(open, close rune) (string, error) {
	var b strings.Builder
	depth := 1
	start := p.line
	for {
		r, err := p.readRune()
		if err != nil {
			return "", &ParseError{Line: start, Msg: "unbalanced braces"}
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			if n, err := p.readRune(); err == nil {
				b.WriteRune(n)
			}
			continue
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return b.String(), nil
			}
		}
		b.WriteRune(r)
	}
}

func (p *Reader) readQuoted() (string, error) {
	var b strings.Builder
	depth := 0
	start := p.line
	for {
		r, err := p.readRune()
		if err != nil {
			return "", &ParseError{Line: start, Msg: "unterminated string"}
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			if n, err := p.readRune(); err == nil {
				b.WriteRune(n)
			}
			continue
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				return b.String(), nil
			}
		}
		b.WriteRune(r)
	}
}

// dedent removes up to indent leading spaces from every line after the
// first. Writers indent continuation lines to the column following the
// opening delimiter, so this restores the value as written.
func dedent(s string, indent int) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		l := lines[i]
		n := 0
		for n < indent && n < len(l) && (l[n] == ' ' || l[n] == '\t') {
			n++
		}
		lines[i] = l[n:]
	}
	return strings.Join(lines, "\n")
}

// unescapeQuoted decodes the \\, \{, \} and \" escapes of a quoted
// value outside braces. Inside braces the text is kept as written, so
// LaTeX accents such as {\"u} survive.
func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if depth == 0 && (next == '\\' || next == '{' || next == '}' || next == '"') {
				b.WriteByte(next)
			} else {
				b.WriteByte(c)
				b.WriteByte(next)
			}
			i++
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (p *Reader) readIdent() (string, error) {
	var b strings.Builder
	for {
		r, err := p.readRune()
		if err != nil {
			if b.Len() == 0 {
				return "", p.errorf("unexpected end of input after @")
			}
			return b.String(), nil
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			p.unreadRune()
			return b.String(), nil
		}
		b.WriteRune(r)
	}
}

func (p *Reader) readUntil(stop func(rune) bool) (string, error) {
	var b strings.Builder
	for {
		r, err := p.readRune()
		if err != nil {
			return b.String(), err
		}
		if stop(r) {
			p.unreadRune()
			return b.String(), nil
		}
		b.WriteRune(r)
	}
}

func (p *Reader) skipTo(target rune) error {
	for {
		r, err := p.readRune()
		if err != nil {
			return err
		}
		if r == target {
			return nil
		}
	}
}

func (p *Reader) skipSpace() {
	for {
		r, err := p.readRune()
		if err != nil {
			return
		}
		if !unicode.IsSpace(r) {
			p.unreadRune()
			return
		}
	}
}

func (p *Reader) readRune() (rune, error) {
	r, _, err := p.r.ReadRune()
	if err != nil {
		return r, err
	}
	p.prevCol = p.col
	if r == '\n' {
		p.line++
		p.col = 0
	} else {
		p.col++
	}
	return r, nil
}

func (p *Reader) unreadRune() {
	// Only called directly after a successful readRune.
	if err := p.r.UnreadRune(); err == nil {
		if b, err := p.r.Peek(1); err == nil && b[0] == '\n' {
			p.line--
		}
		p.col = p.prevCol
	}
}

func (p *Reader) peekRune() (rune, error) {
	r, err := p.readRune()
	if err != nil {
		return 0, err
	}
	p.unreadRune()
	return r, nil
}

func (p *Reader) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}
