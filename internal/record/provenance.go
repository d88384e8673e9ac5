package record

import (
	"slices"
	"sort"
	"strings"
)

// Provenance records where a field value came from and what is known to be
// wrong with it. Notes form a set and are kept sorted.
type Provenance struct {
	Source string
	Notes  []string
}

// NewProvenance builds a provenance entry from a comma-separated note list.
func NewProvenance(source, note string) *Provenance {
	p := &Provenance{Source: source}
	for _, n := range strings.Split(note, ",") {
		p.AddNote(n)
	}
	return p
}

// Note returns the notes joined by commas.
func (p *Provenance) Note() string {
	return strings.Join(p.Notes, ",")
}

// HasNote reports whether note is in the set.
func (p *Provenance) HasNote(note string) bool {
	_, found := slices.BinarySearch(p.Notes, note)
	return found
}

// HasNotePrefix reports whether any note starts with prefix.
func (p *Provenance) HasNotePrefix(prefix string) bool {
	for _, n := range p.Notes {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

// AddNote inserts note into the set.
func (p *Provenance) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	i, found := slices.BinarySearch(p.Notes, note)
	if found {
		return
	}
	p.Notes = slices.Insert(p.Notes, i, note)
}

// RemoveNote deletes note from the set.
func (p *Provenance) RemoveNote(note string) {
	if i, found := slices.BinarySearch(p.Notes, note); found {
		p.Notes = slices.Delete(p.Notes, i, i+1)
	}
}

// AppendSource extends the source chain with "|source".
func (p *Provenance) AppendSource(source string) {
	if p.Source == "" {
		p.Source = source
		return
	}
	p.Source = p.Source + "|" + source
}

// HasSource reports whether source is one of the "|"-separated sources.
func (p *Provenance) HasSource(source string) bool {
	return slices.Contains(strings.Split(p.Source, "|"), source)
}

// Copy returns an independent copy.
func (p *Provenance) Copy() *Provenance {
	return &Provenance{Source: p.Source, Notes: slices.Clone(p.Notes)}
}

// ProvenanceMap maps field names to their provenance.
type ProvenanceMap map[string]*Provenance

// SortedKeys returns the field names in lexical order.
func (m ProvenanceMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a deep copy.
func (m ProvenanceMap) Copy() ProvenanceMap {
	c := make(ProvenanceMap, len(m))
	for k, p := range m {
		c[k] = p.Copy()
	}
	return c
}
