// Package record defines the bibliographic record: its fields, per-field
// provenance, origins, and processing status, together with the mutations
// operations are allowed to apply to it.
package record

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matsen/litreview/internal/identifier"
	"github.com/matsen/litreview/internal/state"
)

// Record is one bibliographic entry of the dataset.
type Record struct {
	ID        string
	EntryType string
	Status    state.RecordState
	Origins   []string // <search-file>/<entry-id>, never removed
	ColrevIDs []string

	MasterdataProvenance ProvenanceMap // identifying fields
	DataProvenance       ProvenanceMap // everything else

	fields *Fields
}

// New creates an empty record in md_retrieved.
func New(id, entryType string) *Record {
	return &Record{
		ID:                   id,
		EntryType:            entryType,
		Status:               state.MDRetrieved,
		MasterdataProvenance: make(ProvenanceMap),
		DataProvenance:       make(ProvenanceMap),
		fields:               NewFields(),
	}
}

// Get returns the value of key, including the reserved ID, ENTRYTYPE, and
// colrev_status keys. Missing fields yield "".
func (r *Record) Get(key string) string {
	switch key {
	case KeyID:
		return r.ID
	case KeyEntryType:
		return r.EntryType
	case KeyStatus:
		return r.Status.String()
	case KeyColrevID:
		return strings.Join(r.ColrevIDs, ";")
	}
	return r.fields.Get(key)
}

// Has reports whether a non-reserved field is present.
func (r *Record) Has(key string) bool {
	_, ok := r.fields.Lookup(key)
	return ok
}

// HasValue reports whether key is present with a known, non-empty value.
func (r *Record) HasValue(key string) bool {
	v := strings.TrimSpace(r.Get(key))
	return v != "" && v != UnknownValue
}

// Set writes a field without touching provenance. Loaders use it to
// populate records before provenance is attached.
func (r *Record) Set(key, value string) {
	switch key {
	case KeyID:
		r.ID = value
	case KeyEntryType:
		r.EntryType = strings.ToLower(value)
	default:
		r.fields.Set(key, value)
	}
}

// Keys returns the non-reserved field names in insertion order.
func (r *Record) Keys() []string {
	return r.fields.Keys()
}

// ProvenanceFor returns the provenance map responsible for key.
func (r *Record) ProvenanceFor(key string) ProvenanceMap {
	if IsIdentifying(key) {
		return r.MasterdataProvenance
	}
	return r.DataProvenance
}

// Provenance returns the provenance entry of key, or nil.
func (r *Record) Provenance(key string) *Provenance {
	return r.ProvenanceFor(key)[key]
}

// IsCurated reports whether the masterdata is authoritative.
func (r *Record) IsCurated() bool {
	_, ok := r.MasterdataProvenance[CuratedKey]
	return ok
}

// updateOptions configures UpdateField.
type updateOptions struct {
	note              string
	keepSourceIfEqual bool
	appendEdit        bool
}

// UpdateOption customises UpdateField.
type UpdateOption func(*updateOptions)

// WithNote adds note to the field's provenance.
func WithNote(note string) UpdateOption {
	return func(o *updateOptions) { o.note = note }
}

// KeepSourceIfEqual leaves the provenance source alone when the value does
// not change.
func KeepSourceIfEqual() UpdateOption {
	return func(o *updateOptions) { o.keepSourceIfEqual = true }
}

// ReplaceSource overwrites the provenance source instead of extending it.
func ReplaceSource() UpdateOption {
	return func(o *updateOptions) { o.appendEdit = false }
}

// UpdateField writes value to key and records source in the matching
// provenance map. An edit of an existing field extends the provenance
// source with "|source" unless ReplaceSource is given; a source that
// confirms the current value is appended once. Identifying fields of a
// curated record are left untouched.
func (r *Record) UpdateField(key, value, source string, opts ...UpdateOption) {
	o := updateOptions{appendEdit: true}
	for _, opt := range opts {
		opt(&o)
	}

	switch key {
	case KeyID, KeyEntryType:
		r.Set(key, value)
		return
	}

	if IsIdentifying(key) && r.IsCurated() {
		return
	}
	old, existed := r.fields.Lookup(key)
	r.fields.Set(key, value)

	prov := r.ProvenanceFor(key)
	p, hasProv := prov[key]
	switch {
	case !hasProv:
		p = &Provenance{Source: source}
		prov[key] = p
	case existed && old == value && o.keepSourceIfEqual:
	case existed && o.appendEdit:
		if old != value || !p.HasSource(source) {
			p.AppendSource(source)
		}
	default:
		p.Source = source
	}
	if value != UnknownValue {
		p.RemoveNote(NoteMissing)
	}
	if o.note != "" {
		p.AddNote(o.note)
	}
}

// RenameField moves a field and its provenance to newKey. The provenance
// source records the rename.
func (r *Record) RenameField(key, newKey string) {
	value, ok := r.fields.Lookup(key)
	if !ok || key == newKey {
		return
	}
	r.fields.Delete(key)
	r.fields.Set(newKey, value)

	oldProv := r.ProvenanceFor(key)
	p, hasProv := oldProv[key]
	delete(oldProv, key)
	if IsIdentifying(newKey) && r.IsCurated() {
		return
	}
	if !hasProv {
		p = &Provenance{}
	}
	p.AppendSource("rename-from:" + key)
	r.ProvenanceFor(newKey)[newKey] = p
}

// RemoveField deletes key. With notMissing set on an identifying field the
// provenance keeps a "not_missing" entry so the absence is not flagged.
func (r *Record) RemoveField(key string, notMissing bool, source string) {
	r.fields.Delete(key)
	prov := r.ProvenanceFor(key)
	if notMissing && IsIdentifying(key) {
		prov[key] = &Provenance{Source: source, Notes: []string{NoteNotMissing}}
		return
	}
	delete(prov, key)
}

// ChangeEntryType reclassifies the record. The container field is renamed
// between journal and booktitle when needed; required fields that are
// absent are set to UNKNOWN and flagged missing, which demotes the record
// to md_needs_manual_preparation.
func (r *Record) ChangeEntryType(newType string) error {
	newType = strings.ToLower(strings.TrimSpace(newType))
	if !ValidEntryType(newType) {
		return fmt.Errorf("%w: %q", ErrUnknownEntryType, newType)
	}
	if newType == r.EntryType {
		return nil
	}
	r.EntryType = newType

	req := Requirements[newType]
	for _, forbidden := range req.Forbidden {
		if !r.Has(forbidden) {
			continue
		}
		switch {
		case forbidden == "journal" && slices.Contains(req.Required, "booktitle") && !r.Has("booktitle"):
			r.RenameField("journal", "booktitle")
		case forbidden == "booktitle" && slices.Contains(req.Required, "journal") && !r.Has("journal"):
			r.RenameField("booktitle", "journal")
		}
	}

	if r.markMissing(req.Required, SourceFieldRequirements) {
		switch r.Status {
		case state.MDImported, state.MDPrepared:
			r.Status = state.MDNeedsManualPreparation
		}
	}
	return nil
}

// markMissing sets every absent key to UNKNOWN with a "missing" note and
// reports whether any required key is UNKNOWN afterwards.
func (r *Record) markMissing(keys []string, source string) bool {
	unknown := false
	for _, key := range keys {
		if p := r.Provenance(key); p != nil && p.HasNote(NoteNotMissing) {
			continue
		}
		if !r.HasValue(key) {
			if !r.Has(key) || r.Get(key) != UnknownValue {
				r.fields.Set(key, UnknownValue)
			}
			if !(IsIdentifying(key) && r.IsCurated()) {
				prov := r.ProvenanceFor(key)
				if prov[key] == nil {
					prov[key] = &Provenance{Source: source}
				}
				prov[key].AddNote(NoteMissing)
			}
		}
		if r.Get(key) == UnknownValue {
			unknown = true
		}
	}
	return unknown
}

// ApplyRestrictions coerces the record to curated masterdata restrictions.
// ENTRYTYPE and string values are enforced; true marks a field as required
// (flagged missing when absent); false marks it as not applicable.
func (r *Record) ApplyRestrictions(restrictions map[string]any) error {
	if et, ok := restrictions[KeyEntryType].(string); ok {
		if err := r.ChangeEntryType(et); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(restrictions))
	for k := range restrictions {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if key == KeyEntryType {
			continue
		}
		switch v := restrictions[key].(type) {
		case string:
			if r.Get(key) != v {
				r.UpdateField(key, v, SourceRestrictions, ReplaceSource())
			}
		case bool:
			if v {
				r.markMissing([]string{key}, SourceRestrictions)
			} else if r.Has(key) || r.Provenance(key) == nil {
				r.RemoveField(key, true, SourceRestrictions)
			}
		default:
			return fmt.Errorf("restriction %s: unsupported value %v", key, v)
		}
	}
	return nil
}

// MasterdataIsComplete reports whether every required field of the
// entrytype has a known value and no field is flagged missing.
func (r *Record) MasterdataIsComplete() bool {
	if r.IsCurated() {
		return true
	}
	req, ok := Requirements[r.EntryType]
	if !ok {
		return false
	}
	for _, key := range req.Required {
		if p := r.Provenance(key); p != nil && p.HasNote(NoteNotMissing) {
			continue
		}
		if !r.HasValue(key) {
			return false
		}
	}
	for key, p := range r.MasterdataProvenance {
		if p.HasNote(NoteMissing) && !r.HasValue(key) {
			return false
		}
	}
	return true
}

// HasQualityDefects reports whether any masterdata provenance entry carries
// a defect or missing note.
func (r *Record) HasQualityDefects() bool {
	if r.IsCurated() {
		return false
	}
	for _, p := range r.MasterdataProvenance {
		if p.HasNote(NoteQualityDefect) || p.HasNote(NoteMissing) {
			return true
		}
	}
	return false
}

// HasDisagreement reports whether a prep endpoint flagged a conflict with
// another source.
func (r *Record) HasDisagreement() bool {
	for _, p := range r.MasterdataProvenance {
		if p.HasNotePrefix(NoteDisagreementWith) {
			return true
		}
	}
	return false
}

// CreateColrevID computes the colrev_id. Unless assumeComplete is set, the
// record must be curated or at least md_prepared.
func (r *Record) CreateColrevID(assumeComplete bool) (string, error) {
	if !assumeComplete && !r.IsCurated() && r.Status.Less(state.MDPrepared) {
		return "", fmt.Errorf("%w: %s is %s", ErrNotPrepared, r.ID, r.Status)
	}
	return identifier.ColrevID(r)
}

// AddColrevID appends id unless already present.
func (r *Record) AddColrevID(id string) {
	if !slices.Contains(r.ColrevIDs, id) {
		r.ColrevIDs = append(r.ColrevIDs, id)
	}
}

// SetStatus moves the record to target. Entering md_prepared generates the
// colrev_id; incomplete or unidentifiable masterdata redirects the record
// to md_needs_manual_preparation instead. It returns the state applied.
func (r *Record) SetStatus(target state.RecordState) state.RecordState {
	if target == state.MDPrepared {
		if !r.MasterdataIsComplete() {
			target = state.MDNeedsManualPreparation
		} else if id, err := r.CreateColrevID(true); err != nil {
			target = state.MDNeedsManualPreparation
		} else {
			r.AddColrevID(id)
		}
	}
	r.Status = target
	return target
}

// AddOrigins appends origins that are not yet present, keeping order.
func (r *Record) AddOrigins(origins ...string) {
	for _, o := range origins {
		if o != "" && !slices.Contains(r.Origins, o) {
			r.Origins = append(r.Origins, o)
		}
	}
}

// OriginSources returns the distinct search files the record came from.
func (r *Record) OriginSources() []string {
	var sources []string
	for _, o := range r.Origins {
		src := OriginSource(o)
		if !slices.Contains(sources, src) {
			sources = append(sources, src)
		}
	}
	return sources
}

// OriginSource returns the search-file part of an origin.
func OriginSource(origin string) string {
	src, _, _ := strings.Cut(origin, "/")
	return src
}

// Copy returns a deep copy.
func (r *Record) Copy() *Record {
	return &Record{
		ID:                   r.ID,
		EntryType:            r.EntryType,
		Status:               r.Status,
		Origins:              slices.Clone(r.Origins),
		ColrevIDs:            slices.Clone(r.ColrevIDs),
		MasterdataProvenance: r.MasterdataProvenance.Copy(),
		DataProvenance:       r.DataProvenance.Copy(),
		fields:               r.fields.Copy(),
	}
}

// InitProvenance records source for every field that has no provenance yet.
func (r *Record) InitProvenance(source string) {
	for _, key := range r.fields.Keys() {
		if IsIdentifying(key) && r.IsCurated() {
			continue
		}
		prov := r.ProvenanceFor(key)
		if _, ok := prov[key]; !ok {
			prov[key] = &Provenance{Source: source}
		}
	}
}
