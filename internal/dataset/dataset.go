// Package dataset persists the records of a review in a single BibTeX file
// and versions it through git.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/record"
	"github.com/matsen/litreview/internal/state"
)

// RecordsPath is the records file relative to the repository root.
const RecordsPath = "data/records.bib"

var (
	// ErrInvalidRecord indicates a record that cannot be read from or
	// written to the records file.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicateID indicates two records share an ID.
	ErrDuplicateID = errors.New("duplicate record ID")
)

// Dataset is the records file of one repository.
type Dataset struct {
	root string
	repo *git.Repo
}

// New returns the dataset of the repository at root. repo may be nil for
// read-only use.
func New(root string, repo *git.Repo) *Dataset {
	return &Dataset{root: root, repo: repo}
}

// Path returns the absolute path of the records file.
func (d *Dataset) Path() string {
	return filepath.Join(d.root, RecordsPath)
}

// Exists reports whether the records file has been created.
func (d *Dataset) Exists() bool {
	_, err := os.Stat(d.Path())
	return err == nil
}

// LoadRecords reads every record. A missing file yields an empty dataset.
func (d *Dataset) LoadRecords() (*Records, error) {
	f, err := os.Open(d.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecords(), nil
		}
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords parses records from r.
func ReadRecords(r io.Reader) (*Records, error) {
	recs := NewRecords()
	for e, err := range bibtex.NewReader(r).All() {
		if err != nil {
			return nil, fmt.Errorf("reading records: %w", err)
		}
		rec, err := FromEntry(e)
		if err != nil {
			return nil, err
		}
		if err := recs.Add(rec); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// SaveRecords writes all records atomically. On failure the previous file
// is left untouched.
func (d *Dataset) SaveRecords(recs *Records) error {
	entries := make([]*bibtex.Entry, 0, recs.Len())
	for _, r := range recs.All() {
		entries = append(entries, ToEntry(r))
	}
	if err := bibtex.WriteFile(d.Path(), entries, bibtex.StyleAligned); err != nil {
		return fmt.Errorf("saving records: %w", err)
	}
	return nil
}

// Header is the cheap view of a record used for precondition checks.
type Header struct {
	ID     string
	Status state.RecordState
}

var (
	headerEntryPattern  = regexp.MustCompile(`^@(\w+)\s*\{\s*([^,\s]+)\s*,`)
	headerStatusPattern = regexp.MustCompile(`^\s*colrev_status\s*=\s*\{([a-z_]+)\}`)
)

// headerScanner follows the brace nesting of the records file line by line
// so that only entry openings and field lines of records are matched.
type headerScanner struct {
	depth    int
	inQuote  bool
	inRecord bool
}

// atTop reports whether the next line starts outside any entry.
func (s *headerScanner) atTop() bool { return s.depth == 0 }

// atField reports whether the next line starts at field level of a record.
func (s *headerScanner) atField() bool { return s.inRecord && s.depth == 1 && !s.inQuote }

func (s *headerScanner) advance(line string) {
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case s.depth == 0:
			// text between entries is a comment
		case r == '\\':
			escaped = true
		case r == '"' && s.depth == 1 && s.inRecord:
			s.inQuote = !s.inQuote
		case s.inQuote:
		case r == '{':
			s.depth++
		case r == '}':
			s.depth--
			if s.depth == 0 {
				s.inRecord = false
			}
		}
	}
}

// open enters the block whose opening brace is on line.
func (s *headerScanner) open(line string, record bool) {
	s.inRecord = record
	s.inQuote = false
	s.depth = 1
	s.advance(line[strings.IndexByte(line, '{')+1:])
}

// ReadHeaders returns ID and status of every record without parsing the
// remaining fields. Comment, string and preamble blocks are skipped, as are
// lines inside field values.
func (d *Dataset) ReadHeaders() ([]Header, error) {
	f, err := os.Open(d.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	defer f.Close()

	var (
		headers []Header
		hs      headerScanner
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if hs.atTop() {
			if m := headerEntryPattern.FindStringSubmatch(line); m != nil {
				isRecord := !nonRecordBlocks[strings.ToLower(m[1])]
				if isRecord {
					headers = append(headers, Header{ID: m[2], Status: state.MDImported})
				}
				hs.open(line, isRecord)
				continue
			}
			if strings.HasPrefix(strings.TrimSpace(line), "@") && strings.Contains(line, "{") {
				hs.open(line, false)
			}
			continue
		}
		if hs.atField() {
			if m := headerStatusPattern.FindStringSubmatch(line); m != nil && len(headers) > 0 {
				s, err := state.ParseRecordState(m[1])
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, headers[len(headers)-1].ID, err)
				}
				headers[len(headers)-1].Status = s
			}
		}
		hs.advance(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	return headers, nil
}

var nonRecordBlocks = map[string]bool{"comment": true, "string": true, "preamble": true}

// Statuses returns the status of every record from the headers.
func (d *Dataset) Statuses() ([]state.RecordState, error) {
	headers, err := d.ReadHeaders()
	if err != nil {
		return nil, err
	}
	out := make([]state.RecordState, len(headers))
	for i, h := range headers {
		out[i] = h.Status
	}
	return out, nil
}

// Iterate streams records whose status satisfies match without holding
// the whole dataset in memory. A nil match yields every record.
func (d *Dataset) Iterate(match func(state.RecordState) bool) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		f, err := os.Open(d.Path())
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("opening records file: %w", err))
			}
			return
		}
		defer f.Close()

		for e, err := range bibtex.NewReader(f).All() {
			if err != nil {
				yield(nil, fmt.Errorf("reading records: %w", err))
				return
			}
			r, err := FromEntry(e)
			if err != nil {
				yield(nil, err)
				return
			}
			if match != nil && !match(r.Status) {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// InStates returns a match function for Iterate.
func InStates(states ...state.RecordState) func(state.RecordState) bool {
	return func(s state.RecordState) bool {
		for _, want := range states {
			if s == want {
				return true
			}
		}
		return false
	}
}

// Change describes how one record differs from HEAD.
type Change struct {
	ID         string
	Kind       string // added, removed, modified
	FromStatus state.RecordState
	ToStatus   state.RecordState
}

// Diff compares the working-tree records file to HEAD.
func (d *Dataset) Diff(ctx context.Context) ([]Change, error) {
	if d.repo == nil {
		return nil, errors.New("dataset has no repository")
	}
	old := NewRecords()
	if d.repo.HasCommits(ctx) {
		content, found, err := d.repo.Show(ctx, "HEAD", RecordsPath)
		if err != nil {
			return nil, err
		}
		if found {
			if old, err = ReadRecords(bytes.NewReader(content)); err != nil {
				return nil, fmt.Errorf("records at HEAD: %w", err)
			}
		}
	}
	current, err := d.LoadRecords()
	if err != nil {
		return nil, err
	}
	return diffRecords(old, current), nil
}

// diffRecords lists records added, removed, or changed between two versions.
func diffRecords(old, current *Records) []Change {
	var changes []Change
	for _, r := range current.All() {
		prev := old.Get(r.ID)
		switch {
		case prev == nil:
			changes = append(changes, Change{ID: r.ID, Kind: "added", ToStatus: r.Status})
		case bibtex.Format(ToEntry(prev), bibtex.StyleAligned) != bibtex.Format(ToEntry(r), bibtex.StyleAligned):
			changes = append(changes, Change{ID: r.ID, Kind: "modified", FromStatus: prev.Status, ToStatus: r.Status})
		}
	}
	for _, r := range old.All() {
		if !current.Has(r.ID) {
			changes = append(changes, Change{ID: r.ID, Kind: "removed", FromStatus: r.Status})
		}
	}
	return changes
}

// Add stages the records file and any extra paths.
func (d *Dataset) Add(ctx context.Context, paths ...string) error {
	if d.repo == nil {
		return errors.New("dataset has no repository")
	}
	return d.repo.Add(ctx, append([]string{RecordsPath}, paths...)...)
}

// Commit stages the records file and commits with message.
func (d *Dataset) Commit(ctx context.Context, message string, paths ...string) (string, error) {
	if err := d.Add(ctx, paths...); err != nil {
		return "", err
	}
	return d.repo.Commit(ctx, message)
}

// Repo returns the git repository, or nil.
func (d *Dataset) Repo() *git.Repo {
	return d.repo
}

// Root returns the repository root.
func (d *Dataset) Root() string {
	return d.root
}

// MaxIDWidth returns the width used to left-pad IDs in per-record logs.
func MaxIDWidth(recs []*record.Record) int {
	width := 0
	for _, r := range recs {
		if n := len(r.ID); n > width {
			width = n
		}
	}
	return width
}
