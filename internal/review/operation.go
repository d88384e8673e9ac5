package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/settings"
	"github.com/matsen/litreview/internal/state"
)

// Operation is one run of an operation type on the repository.
type Operation struct {
	Type             state.Operation
	NotifyTransition bool

	m     *Manager
	mu    sync.Mutex
	pad   int
	paths []string
}

// NewOperation creates an operation. With notify set the state-machine
// precondition is checked against the current dataset.
func (m *Manager) NewOperation(op state.Operation, notify bool) (*Operation, error) {
	o := &Operation{Type: op, NotifyTransition: notify, m: m}
	if !notify {
		return o, nil
	}
	statuses, err := m.Dataset.Statuses()
	if err != nil {
		return nil, err
	}
	if err := m.StateModel.CheckPrecondition(op, statuses, m.Settings.Project.DelayAutomatedProcessing); err != nil {
		return nil, err
	}
	return o, nil
}

// Manager returns the repository the operation runs on.
func (o *Operation) Manager() *Manager {
	return o.m
}

// SetPad sets the ID width of per-record log lines.
func (o *Operation) SetPad(pad int) {
	o.pad = pad
}

// Pad returns the ID width of per-record log lines.
func (o *Operation) Pad() int {
	return o.pad
}

// AddPaths stages extra repository-relative paths with the commit.
func (o *Operation) AddPaths(paths ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range paths {
		if !slices.Contains(o.paths, p) {
			o.paths = append(o.paths, p)
		}
	}
}

// Run holds the repository lock while main executes and commits the
// result. main returns the one-line summary used in the commit message.
// A run that changes nothing returns an empty SHA.
func (o *Operation) Run(ctx context.Context, main func(ctx context.Context) (string, error)) (string, error) {
	lock, err := acquireLock(o.m.Path(settings.LockFile))
	if err != nil {
		return "", err
	}
	defer lock.Release()
	defer func() {
		if err := o.m.Containers.StopAll(ctx); err != nil {
			o.m.Logger.Warn("stopping containers", "error", err)
		}
	}()

	o.m.Logger.Debug("operation started", "operation", o.Type)
	summary, err := main(ctx)
	if err != nil {
		return "", err
	}
	sha, err := o.m.Dataset.Commit(ctx, o.CommitMessage(summary), o.paths...)
	if errors.Is(err, git.ErrNothingToCommit) {
		o.m.Logger.Info("nothing to commit", "operation", o.Type)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("committing %s: %w", o.Type, err)
	}
	o.m.Logger.Debug("operation committed", "operation", o.Type, "sha", sha)
	return sha, nil
}

// CommitMessage builds the commit message for summary.
func (o *Operation) CommitMessage(summary string) string {
	var b strings.Builder
	b.WriteString(o.Type.CommitTag())
	if summary != "" {
		b.WriteString(": ")
		b.WriteString(summary)
	}
	b.WriteString("\n\nOperation: ")
	b.WriteString(string(o.Type))
	id := o.m.Repo.Identity()
	if id.Name != "" {
		fmt.Fprintf(&b, "\nCommitted-by: %s <%s>", id.Name, id.Email)
	}
	b.WriteString("\n")
	return b.String()
}

// Transition moves r to the target state under this operation and reports
// the change. The record may end up elsewhere when setting the status
// redirects it; the applied state is returned.
func (o *Operation) Transition(r *record.Record, to state.RecordState) (state.RecordState, error) {
	from := r.Status
	if !o.m.StateModel.IsValid(o.Type, from, to) {
		return from, &state.InvalidTransitionError{Operation: o.Type, ID: r.ID, From: from, To: to}
	}
	applied := r.SetStatus(to)
	o.report(r.ID, from, applied)
	return applied, nil
}

// Observe validates and reports a status change already applied to r.
// An unchanged status is accepted.
func (o *Operation) Observe(r *record.Record, from state.RecordState) error {
	if r.Status == from {
		o.m.Reporter.Record(tagFor(from), r.ID, o.pad, from.String())
		o.m.Reporter.Count(from.String(), 1)
		return nil
	}
	if !o.m.StateModel.IsValid(o.Type, from, r.Status) {
		return &state.InvalidTransitionError{Operation: o.Type, ID: r.ID, From: from, To: r.Status}
	}
	o.report(r.ID, from, r.Status)
	return nil
}

func (o *Operation) report(id string, from, to state.RecordState) {
	if from == to {
		o.m.Reporter.Record(tagFor(to), id, o.pad, to.String())
		o.m.Reporter.Count(to.String(), 1)
		return
	}
	o.m.Reporter.Transition(tagFor(to), id, o.pad, from, to)
}

// Fail reports a per-record error.
func (o *Operation) Fail(id string, err error) {
	o.m.Reporter.Record(logging.TagError, id, o.pad, err.Error())
	o.m.Reporter.Count("errors", 1)
	o.m.Logger.Warn("record failed", "operation", o.Type, "id", id, "error", err)
}

func tagFor(s state.RecordState) logging.Tag {
	switch {
	case s.NeedsManualWork():
		return logging.TagManual
	case s == state.PDFNotAvailable, s == state.RevExcluded, s == state.RevPrescreenExcluded:
		return logging.TagInfo
	}
	return logging.TagProgress
}

// Summary prints the end-of-operation counts.
func (o *Operation) Summary() {
	o.m.Reporter.Summary(o.Type.CommitTag())
}

// SummaryLine renders reporter counts as a commit summary.
func SummaryLine(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, ", ")
}
