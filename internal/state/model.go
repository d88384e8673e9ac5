package state

import (
	"sort"
)

// Transition is a single edge of the state graph.
type Transition struct {
	Operation Operation
	Source    RecordState
	Dest      RecordState
}

// Transitions is the fixed transition graph of the review process.
var Transitions = []Transition{
	{Load, MDRetrieved, MDImported},
	{Prep, MDImported, MDNeedsManualPreparation},
	{Prep, MDImported, MDPrepared},
	{PrepMan, MDNeedsManualPreparation, MDPrepared},
	{Dedupe, MDPrepared, MDProcessed},
	{Prescreen, MDProcessed, RevPrescreenIncluded},
	{Prescreen, MDProcessed, RevPrescreenExcluded},
	{PDFGet, RevPrescreenIncluded, PDFImported},
	{PDFGet, RevPrescreenIncluded, PDFNeedsManualRetrieval},
	{PDFGetMan, PDFNeedsManualRetrieval, PDFImported},
	{PDFGetMan, PDFNeedsManualRetrieval, PDFNotAvailable},
	{PDFPrep, PDFImported, PDFPrepared},
	{PDFPrep, PDFImported, PDFNeedsManualPreparation},
	{PDFPrepMan, PDFNeedsManualPreparation, PDFPrepared},
	{Screen, PDFPrepared, RevIncluded},
	{Screen, PDFPrepared, RevExcluded},
	{Data, RevIncluded, RevSynthesized},
}

// Model answers questions about the transition graph.
type Model struct {
	transitions []Transition
}

// NewModel returns a model over the standard transition graph.
func NewModel() *Model {
	return &Model{transitions: Transitions}
}

// SourceStates returns the states the operation's transitions originate from.
func (m *Model) SourceStates(op Operation) []RecordState {
	seen := make(map[RecordState]bool)
	var states []RecordState
	for _, t := range m.transitions {
		if t.Operation == op && !seen[t.Source] {
			seen[t.Source] = true
			states = append(states, t.Source)
		}
	}
	return states
}

// DestStates returns the states the operation may move a record into.
func (m *Model) DestStates(op Operation) []RecordState {
	seen := make(map[RecordState]bool)
	var states []RecordState
	for _, t := range m.transitions {
		if t.Operation == op && !seen[t.Dest] {
			seen[t.Dest] = true
			states = append(states, t.Dest)
		}
	}
	sortStates(states)
	return states
}

// ValidTransitions returns the operations with an outgoing edge from s.
func (m *Model) ValidTransitions(s RecordState) []Operation {
	seen := make(map[Operation]bool)
	var ops []Operation
	for _, t := range m.transitions {
		if t.Source == s && !seen[t.Operation] {
			seen[t.Operation] = true
			ops = append(ops, t.Operation)
		}
	}
	return ops
}

// IsValid reports whether op may move a record from src to dst.
func (m *Model) IsValid(op Operation, src, dst RecordState) bool {
	for _, t := range m.transitions {
		if t.Operation == op && t.Source == src && t.Dest == dst {
			return true
		}
	}
	return false
}

// PrecedingStates returns the transitive predecessors of s, in state order.
func (m *Model) PrecedingStates(s RecordState) []RecordState {
	return m.closure(s, func(t Transition) (from, to RecordState) { return t.Dest, t.Source })
}

// SucceedingStates returns the transitive successors of s, in state order.
func (m *Model) SucceedingStates(s RecordState) []RecordState {
	return m.closure(s, func(t Transition) (from, to RecordState) { return t.Source, t.Dest })
}

// Reachable returns every state reachable from md_retrieved, including it.
func (m *Model) Reachable() map[RecordState]bool {
	reach := map[RecordState]bool{MDRetrieved: true}
	for _, s := range m.SucceedingStates(MDRetrieved) {
		reach[s] = true
	}
	return reach
}

func (m *Model) closure(start RecordState, edge func(Transition) (from, to RecordState)) []RecordState {
	visited := make(map[RecordState]bool)
	queue := []RecordState{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range m.transitions {
			from, to := edge(t)
			if from == cur && !visited[to] {
				visited[to] = true
				queue = append(queue, to)
			}
		}
	}
	delete(visited, start)

	states := make([]RecordState, 0, len(visited))
	for s := range visited {
		states = append(states, s)
	}
	sortStates(states)
	return states
}

// CheckPrecondition verifies that op may start on a dataset whose records
// are in the given states. With delay set, any record in a state preceding
// one of the operation's source states blocks the operation.
func (m *Model) CheckPrecondition(op Operation, statuses []RecordState, delay bool) error {
	if len(statuses) == 0 && op != Load {
		return ErrNoRecords
	}
	if !delay {
		return nil
	}

	preceding := make(map[RecordState]bool)
	for _, src := range m.SourceStates(op) {
		for _, p := range m.PrecedingStates(src) {
			preceding[p] = true
		}
	}
	if len(preceding) == 0 {
		return nil
	}

	offending := make(map[RecordState]bool)
	for _, st := range statuses {
		if preceding[st] {
			offending[st] = true
		}
	}
	if len(offending) == 0 {
		return nil
	}

	states := make([]RecordState, 0, len(offending))
	for s := range offending {
		states = append(states, s)
	}
	sortStates(states)
	return &ProcessOrderViolation{Operation: op, States: states}
}

func sortStates(states []RecordState) {
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
}
