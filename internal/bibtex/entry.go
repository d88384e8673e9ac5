// Package bibtex reads and writes BibTeX databases. Field order is
// preserved on read and controlled by the caller on write.
package bibtex

import "strings"

// Field is one name/value pair of an entry.
type Field struct {
	Name  string
	Value string
}

// Entry is one @type{key, ...} block.
type Entry struct {
	Type   string // lower case, e.g. "article"
	Key    string
	Fields []Field
}

// Get returns the value of the named field, or "".
func (e *Entry) Get(name string) string {
	v, _ := e.Lookup(name)
	return v
}

// Lookup returns the value of the named field and whether it is present.
func (e *Entry) Lookup(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the named field or appends it.
func (e *Entry) Set(name, value string) {
	name = strings.ToLower(name)
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields[i].Value = value
			return
		}
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Delete removes the named field.
func (e *Entry) Delete(name string) {
	name = strings.ToLower(name)
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			return
		}
	}
}

// EscapeLatex escapes characters that are special in LaTeX. Use it for
// values that come from plain-text sources.
func EscapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}

