package dataset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// Records is the in-memory dataset: records keyed by ID in file order.
type Records struct {
	order []string
	byID  map[string]*record.Record
}

// NewRecords returns an empty collection.
func NewRecords() *Records {
	return &Records{byID: make(map[string]*record.Record)}
}

// Len returns the number of records.
func (rs *Records) Len() int {
	return len(rs.order)
}

// Get returns the record with id, or nil.
func (rs *Records) Get(id string) *record.Record {
	return rs.byID[id]
}

// Has reports whether id is taken.
func (rs *Records) Has(id string) bool {
	_, ok := rs.byID[id]
	return ok
}

// Add appends r. IDs must be unique.
func (rs *Records) Add(r *record.Record) error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidRecord)
	}
	if rs.Has(r.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	rs.order = append(rs.order, r.ID)
	rs.byID[r.ID] = r
	return nil
}

// Put replaces the record with the same ID, or appends it.
func (rs *Records) Put(r *record.Record) {
	if !rs.Has(r.ID) {
		rs.order = append(rs.order, r.ID)
	}
	rs.byID[r.ID] = r
}

// Delete removes id. Dedupe uses it after merging a duplicate into its
// survivor.
func (rs *Records) Delete(id string) {
	if !rs.Has(id) {
		return
	}
	delete(rs.byID, id)
	if i := slices.Index(rs.order, id); i >= 0 {
		rs.order = slices.Delete(rs.order, i, i+1)
	}
}

// All returns the records in file order.
func (rs *Records) All() []*record.Record {
	out := make([]*record.Record, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.byID[id])
	}
	return out
}

// IDs returns the IDs in file order.
func (rs *Records) IDs() []string {
	return slices.Clone(rs.order)
}

// InState returns the records whose status is one of states, sorted by ID.
func (rs *Records) InState(states ...state.RecordState) []*record.Record {
	var out []*record.Record
	for _, r := range rs.All() {
		if slices.Contains(states, r.Status) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *record.Record) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Statuses returns the status of every record.
func (rs *Records) Statuses() []state.RecordState {
	out := make([]state.RecordState, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.byID[id].Status)
	}
	return out
}

// OriginIndex maps every origin to the ID of the record holding it.
func (rs *Records) OriginIndex() map[string]string {
	idx := make(map[string]string)
	for _, r := range rs.All() {
		for _, o := range r.Origins {
			idx[o] = r.ID
		}
	}
	return idx
}
