package dataset

import (
	"fmt"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// leadingKeys are emitted first, in this order.
var leadingKeys = []string{
	record.KeyOrigin,
	record.KeyStatus,
	record.KeyMasterdataProvenance,
	record.KeyDataProvenance,
	record.KeyColrevID,
}

// ToEntry renders a record as a BibTeX entry with the fixed field order:
// bookkeeping keys, identifying fields in declared order, then all other
// fields in insertion order.
func ToEntry(r *record.Record) *bibtex.Entry {
	e := &bibtex.Entry{Type: r.EntryType, Key: r.ID}

	add := func(name, value string) {
		e.Fields = append(e.Fields, bibtex.Field{Name: name, Value: value})
	}
	add(record.KeyOrigin, formatList(r.Origins))
	add(record.KeyStatus, r.Status.String())
	if len(r.MasterdataProvenance) > 0 {
		add(record.KeyMasterdataProvenance, formatProvenance(r.MasterdataProvenance))
	}
	if len(r.DataProvenance) > 0 {
		add(record.KeyDataProvenance, formatProvenance(r.DataProvenance))
	}
	if len(r.ColrevIDs) > 0 {
		add(record.KeyColrevID, formatList(r.ColrevIDs))
	}

	addFields(e, r)
	return e
}

// PlainEntry renders a record without bookkeeping keys, as search files
// and exports carry it.
func PlainEntry(r *record.Record) *bibtex.Entry {
	e := &bibtex.Entry{Type: r.EntryType, Key: r.ID}
	addFields(e, r)
	return e
}

// FromPlainEntry builds a record from an entry of a search file.
// Bookkeeping keys in the entry are ignored.
func FromPlainEntry(e *bibtex.Entry) *record.Record {
	r := record.New(e.Key, strings.ToLower(e.Type))
	for _, f := range e.Fields {
		if !record.IsReserved(f.Name) {
			r.Set(f.Name, strings.TrimSpace(f.Value))
		}
	}
	return r
}

func addFields(e *bibtex.Entry, r *record.Record) {
	add := func(name, value string) {
		e.Fields = append(e.Fields, bibtex.Field{Name: name, Value: value})
	}
	keys := r.Keys()
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	for _, k := range record.IdentifyingFields {
		if present[k] {
			add(k, r.Get(k))
		}
	}
	for _, k := range keys {
		if !record.IsIdentifying(k) {
			add(k, r.Get(k))
		}
	}
}

// FromEntry builds a record from a BibTeX entry written by ToEntry. The
// legacy "origin" key is accepted in place of colrev_origin.
func FromEntry(e *bibtex.Entry) (*record.Record, error) {
	if e.Key == "" {
		return nil, fmt.Errorf("%w: entry without ID", ErrInvalidRecord)
	}
	r := record.New(e.Key, strings.ToLower(e.Type))
	r.Status = state.MDImported

	for _, f := range e.Fields {
		switch f.Name {
		case record.KeyOrigin, record.KeyLegacyOrigin:
			r.AddOrigins(parseList(f.Value)...)
		case record.KeyStatus:
			s, err := state.ParseRecordState(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, e.Key, err)
			}
			r.Status = s
		case record.KeyMasterdataProvenance:
			prov, err := parseProvenance(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, e.Key, err)
			}
			r.MasterdataProvenance = prov
		case record.KeyDataProvenance:
			prov, err := parseProvenance(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, e.Key, err)
			}
			r.DataProvenance = prov
		case record.KeyColrevID:
			for _, id := range parseList(f.Value) {
				r.AddColrevID(id)
			}
		default:
			r.Set(f.Name, f.Value)
		}
	}
	return r, nil
}

// formatList writes one item per line, each terminated by ";".
func formatList(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(it)
		b.WriteString(";")
	}
	return b.String()
}

func parseList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// formatProvenance writes "key:source;notes;" lines sorted by key.
func formatProvenance(m record.ProvenanceMap) string {
	lines := make([]string, 0, len(m))
	for _, k := range m.SortedKeys() {
		p := m[k]
		lines = append(lines, fmt.Sprintf("%s:%s;%s;", k, p.Source, p.Note()))
	}
	return strings.Join(lines, "\n")
}

// parseProvenance reads formatProvenance output. The source may contain
// ':' and ';'; the note is the text between the last two ';'.
func parseProvenance(value string) (record.ProvenanceMap, error) {
	m := make(record.ProvenanceMap)
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed provenance line %q", line)
		}
		rest = strings.TrimSuffix(rest, ";")
		source, note := rest, ""
		if i := strings.LastIndex(rest, ";"); i >= 0 {
			source, note = rest[:i], rest[i+1:]
		}
		m[strings.TrimSpace(key)] = record.NewProvenance(source, note)
	}
	return m, nil
}
