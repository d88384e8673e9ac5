package record

import (
	"regexp"
	"slices"
	"strings"

	"github.com/matsen/litreview/internal/identifier"
)

// PreferredSources win ties when two author variants are otherwise equal.
var PreferredSources = []string{"api.crossref.org", "citeas.org", "lrv.local_index"}

// refreshFields are always taken from the merged record.
var refreshFields = map[string]bool{
	KeyCitedBy: true,
}

var (
	partPattern    = regexp.MustCompile(`(?i)\bpart\s*([0-9]+|[ivx]+)\b`)
	erratumPattern = regexp.MustCompile(`(?i)\b(erratum|errata|corrigendum|correction to)\b`)
)

// mostlyUpper is the uppercase share above which a value counts as all caps.
const mostlyUpper = 0.8

// Merge folds other into r. Origins are united, curated masterdata takes
// precedence, identifying fields are fused value by value, and other fields
// are filled where r has none. Clearly distinct items are refused with an
// InvalidMergeError before r is modified.
func (r *Record) Merge(other *Record, defaultSource string) error {
	if err := checkMergeable(r, other); err != nil {
		return err
	}

	r.AddOrigins(other.Origins...)
	for _, id := range other.ColrevIDs {
		r.AddColrevID(id)
	}

	if other.IsCurated() && !r.IsCurated() {
		for _, key := range r.fields.Keys() {
			if IsIdentifying(key) {
				r.fields.Delete(key)
			}
		}
		for _, key := range other.fields.Keys() {
			if IsIdentifying(key) {
				r.fields.Set(key, other.fields.Get(key))
			}
		}
		r.EntryType = other.EntryType
		r.MasterdataProvenance = other.MasterdataProvenance.Copy()
	}

	for _, key := range other.fields.Keys() {
		if IsReserved(key) {
			continue
		}
		value := other.fields.Get(key)

		if IsIdentifying(key) {
			if r.IsCurated() {
				continue
			}
			if preferOther(key, r, other) {
				r.adopt(key, value, other, defaultSource)
			}
			continue
		}

		if key == KeyFile && r.HasValue(KeyFile) && value != "" {
			if !slices.Contains(strings.Split(r.Get(KeyFile), ";"), value) {
				r.fields.Set(KeyFile, r.Get(KeyFile)+";"+value)
			}
			continue
		}
		if refreshFields[key] || !r.HasValue(key) {
			if value == UnknownValue && r.Has(key) {
				continue
			}
			r.adopt(key, value, other, defaultSource)
		}
	}
	return nil
}

// adopt copies key from other together with its provenance.
func (r *Record) adopt(key, value string, other *Record, defaultSource string) {
	if IsIdentifying(key) && r.IsCurated() {
		return
	}
	r.fields.Set(key, value)
	if p := other.Provenance(key); p != nil {
		r.ProvenanceFor(key)[key] = p.Copy()
		return
	}
	r.ProvenanceFor(key)[key] = &Provenance{Source: defaultSource}
}

// preferOther decides whether other's value of an identifying field is
// better than r's.
func preferOther(key string, r, other *Record) bool {
	a, b := r.Get(key), other.Get(key)
	aKnown, bKnown := known(a), known(b)
	switch {
	case !bKnown:
		return false
	case !aKnown:
		return true
	case a == b:
		return false
	}

	switch key {
	case "author":
		return preferAuthor(a, b, r.Provenance(key), other.Provenance(key))
	case "pages":
		return !strings.Contains(a, "--") && strings.Contains(b, "--")
	case "journal":
		if v, ok := preferLowerCase(a, b); ok {
			return v
		}
		if da, db := strings.Count(a, "."), strings.Count(b, "."); da != db {
			return db < da
		}
		return len(b) > len(a)
	case "title", "booktitle":
		return identifier.UpperCaseFraction(b) < identifier.UpperCaseFraction(a)
	}
	return false
}

func preferAuthor(a, b string, pa, pb *Provenance) bool {
	aDefect, bDefect := hasAuthorDefect(pa), hasAuthorDefect(pb)
	if aDefect != bDefect {
		return aDefect
	}
	if v, ok := preferLowerCase(a, b); ok {
		return v
	}
	aPref, bPref := preferredSource(pa), preferredSource(pb)
	return bPref && !aPref
}

// preferLowerCase decides when exactly one value is mostly upper case.
func preferLowerCase(a, b string) (preferB, decided bool) {
	aUpper := identifier.UpperCaseFraction(a) > mostlyUpper
	bUpper := identifier.UpperCaseFraction(b) > mostlyUpper
	if aUpper == bUpper {
		return false, false
	}
	return aUpper, true
}

func hasAuthorDefect(p *Provenance) bool {
	return p != nil && (p.HasNote(NoteQualityDefect) || p.HasNote(NoteIncomplete))
}

func preferredSource(p *Provenance) bool {
	if p == nil {
		return false
	}
	for _, s := range PreferredSources {
		if strings.Contains(p.Source, s) {
			return true
		}
	}
	return false
}

func known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != UnknownValue
}

// checkMergeable refuses merges of parts, errata, and commentaries.
func checkMergeable(a, b *Record) error {
	ta, tb := a.Get("title"), b.Get("title")
	invalid := func(reason string) error {
		return &InvalidMergeError{ID: a.ID, OtherID: b.ID, Reason: reason}
	}

	pa, pb := partPattern.FindStringSubmatch(ta), partPattern.FindStringSubmatch(tb)
	if pa != nil && pb != nil && !strings.EqualFold(pa[1], pb[1]) {
		return invalid("different parts (" + pa[0] + " vs " + pb[0] + ")")
	}
	if erratumPattern.MatchString(ta) != erratumPattern.MatchString(tb) {
		return invalid("erratum and original")
	}
	ca := strings.Contains(strings.ToLower(ta), "commentary on")
	cb := strings.Contains(strings.ToLower(tb), "commentary on")
	if ca != cb {
		return invalid("commentary and original")
	}
	return nil
}
