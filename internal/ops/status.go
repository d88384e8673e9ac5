package ops

import (
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/state"
)

// processOrder lists the operations in the order a review runs them.
var processOrder = []state.Operation{
	state.Load, state.Prep, state.PrepMan, state.Dedupe, state.Prescreen,
	state.PDFGet, state.PDFGetMan, state.PDFPrep, state.PDFPrepMan,
	state.Screen, state.Data,
}

// StatusReport summarizes the dataset.
type StatusReport struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
	// Next lists the operations that have records waiting, in process
	// order. Manual operations are included.
	Next []string `json:"next"`
	// Blocked is true when an automated operation waits for manual work
	// under delay_automated_processing.
	Blocked bool `json:"blocked"`
}

// Status counts records per state and suggests the next operations.
func Status(m *review.Manager) (*StatusReport, error) {
	headers, err := m.Dataset.ReadHeaders()
	if err != nil {
		return nil, err
	}
	rep := &StatusReport{Total: len(headers), Counts: make(map[string]int), Next: []string{}}
	statuses := make([]state.RecordState, len(headers))
	present := make(map[state.RecordState]bool)
	for i, h := range headers {
		statuses[i] = h.Status
		present[h.Status] = true
		rep.Counts[h.Status.String()]++
	}

	for _, op := range processOrder[1:] {
		waiting := false
		for _, s := range m.StateModel.SourceStates(op) {
			waiting = waiting || present[s]
		}
		if !waiting {
			continue
		}
		err := m.StateModel.CheckPrecondition(op, statuses, m.Settings.Project.DelayAutomatedProcessing)
		if state.IsProcessOrderViolation(err) {
			rep.Blocked = true
			continue
		}
		rep.Next = append(rep.Next, string(op))
	}
	if len(headers) == 0 || len(m.Settings.Sources) == 0 {
		rep.Next = append([]string{string(state.Load)}, rep.Next...)
	}
	return rep, nil
}
