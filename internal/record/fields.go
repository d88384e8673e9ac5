package record

import "slices"

// Reserved keys that are stored outside the free-form field map.
const (
	KeyID                   = "ID"
	KeyEntryType            = "ENTRYTYPE"
	KeyStatus               = "colrev_status"
	KeyOrigin               = "colrev_origin"
	KeyLegacyOrigin         = "origin"
	KeyMasterdataProvenance = "colrev_masterdata_provenance"
	KeyDataProvenance       = "colrev_data_provenance"
	KeyColrevID             = "colrev_id"
)

// Frequently used data fields.
const (
	KeyFile               = "file"
	KeyPDFID              = "colrev_pdf_id"
	KeyDOI                = "doi"
	KeyURL                = "url"
	KeyScreeningCriteria  = "screening_criteria"
	KeyPrescreenExclusion = "prescreen_exclusion"
	KeyLanguage           = "language"
	KeyCitedBy            = "cited_by"
)

// UnknownValue is the sentinel for a required field whose value is not known.
const UnknownValue = "UNKNOWN"

// CuratedKey marks a record's masterdata as authoritative when present in
// the masterdata provenance.
const CuratedKey = "CURATED"

// Provenance notes.
const (
	NoteMissing          = "missing"
	NoteNotMissing       = "not_missing"
	NoteQualityDefect    = "quality_defect"
	NoteIncomplete       = "incomplete"
	NoteDisagreementWith = "disagreement with "
)

// Provenance sources set by the record itself.
const (
	SourceRestrictions      = "colrev_curation.masterdata_restrictions"
	SourceFieldRequirements = "generic_field_requirements"
)

// IdentifyingFields are the masterdata fields, in serialization order.
var IdentifyingFields = []string{
	"title", "author", "year", "journal", "booktitle", "chapter",
	"publisher", "school", "institution", "volume", "number", "pages",
}

var identifying = func() map[string]bool {
	m := make(map[string]bool, len(IdentifyingFields))
	for _, k := range IdentifyingFields {
		m[k] = true
	}
	return m
}()

// IsIdentifying reports whether key belongs to the masterdata.
func IsIdentifying(key string) bool {
	return identifying[key]
}

// IsReserved reports whether key is one of the bookkeeping keys.
func IsReserved(key string) bool {
	switch key {
	case KeyID, KeyEntryType, KeyStatus, KeyOrigin, KeyLegacyOrigin,
		KeyMasterdataProvenance, KeyDataProvenance, KeyColrevID:
		return true
	}
	return false
}

// EntryTypes lists the supported ENTRYTYPE values.
var EntryTypes = []string{
	"article", "inproceedings", "incollection", "inbook", "proceedings", "book",
	"phdthesis", "masterthesis", "techreport", "unpublished", "misc", "software", "online",
}

// ValidEntryType reports whether t is a supported ENTRYTYPE.
func ValidEntryType(t string) bool {
	return slices.Contains(EntryTypes, t)
}

// Requirement lists the fields an entrytype needs and the ones it must not carry.
type Requirement struct {
	Required  []string
	Forbidden []string
}

// Requirements maps entrytypes to their field requirements.
var Requirements = map[string]Requirement{
	"article": {
		Required:  []string{"author", "title", "journal", "year", "volume", "number"},
		Forbidden: []string{"booktitle"},
	},
	"inproceedings": {
		Required:  []string{"author", "title", "booktitle", "year"},
		Forbidden: []string{"journal", "issue", "number"},
	},
	"incollection": {
		Required: []string{"author", "title", "booktitle", "publisher", "year"},
	},
	"inbook": {
		Required:  []string{"author", "title", "chapter", "publisher", "year"},
		Forbidden: []string{"journal"},
	},
	"book": {
		Required:  []string{"author", "title", "publisher", "year"},
		Forbidden: []string{"volume", "issue", "number", "journal"},
	},
	"phdthesis": {
		Required:  []string{"author", "title", "school", "year"},
		Forbidden: []string{"volume", "issue", "number", "journal", "booktitle"},
	},
	"masterthesis": {
		Required:  []string{"author", "title", "school", "year"},
		Forbidden: []string{"volume", "issue", "number", "journal", "booktitle"},
	},
	"techreport": {
		Required:  []string{"author", "title", "institution", "year"},
		Forbidden: []string{"volume", "issue", "number", "journal", "booktitle"},
	},
	"proceedings": {
		Required: []string{"title", "year"},
	},
	"unpublished": {
		Required: []string{"author", "title"},
	},
	"misc": {
		Required: []string{"author", "title"},
	},
	"software": {
		Required: []string{"author", "title", "url"},
	},
	"online": {
		Required: []string{"author", "title", "url"},
	},
}

// Fields is an insertion-ordered string map.
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields returns an empty ordered map.
func NewFields() *Fields {
	return &Fields{values: make(map[string]string)}
}

// Get returns the value for key, or "".
func (f *Fields) Get(key string) string {
	return f.values[key]
}

// Lookup returns the value for key and whether it is present.
func (f *Fields) Lookup(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Set inserts or replaces key. New keys are appended to the order.
func (f *Fields) Set(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Delete removes key if present.
func (f *Fields) Delete(key string) {
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	if i := slices.Index(f.keys, key); i >= 0 {
		f.keys = slices.Delete(f.keys, i, i+1)
	}
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	return slices.Clone(f.keys)
}

// Len returns the number of entries.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Copy returns an independent copy.
func (f *Fields) Copy() *Fields {
	c := &Fields{keys: slices.Clone(f.keys), values: make(map[string]string, len(f.values))}
	for k, v := range f.values {
		c.values[k] = v
	}
	return c
}
