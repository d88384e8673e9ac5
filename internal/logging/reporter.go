package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Tag classifies a per-record line.
type Tag int

const (
	TagProgress Tag = iota // record advanced
	TagManual              // record needs manual work
	TagError               // per-record failure, record demoted
	TagInfo                // neutral
)

var (
	colorGreen  = lipgloss.Color("#2E8B57")
	colorOrange = lipgloss.Color("#FF8C00")
	colorRed    = lipgloss.Color("#E74C3C")
	colorMuted  = lipgloss.Color("#708090")
)

// Reporter prints per-record transition lines and operation summaries.
// It is safe for concurrent use.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	styles map[Tag]lipgloss.Style
	bold   lipgloss.Style
	counts map[string]int
}

// NewReporter creates a reporter on out. Color is enabled only when out
// is a terminal.
func NewReporter(out io.Writer) *Reporter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	r := &Reporter{
		out:    out,
		color:  color,
		counts: make(map[string]int),
		styles: map[Tag]lipgloss.Style{
			TagProgress: lipgloss.NewStyle().Foreground(colorGreen),
			TagManual:   lipgloss.NewStyle().Foreground(colorOrange),
			TagError:    lipgloss.NewStyle().Foreground(colorRed),
			TagInfo:     lipgloss.NewStyle().Foreground(colorMuted),
		},
		bold: lipgloss.NewStyle().Bold(true),
	}
	return r
}

// Discard returns a reporter that writes nowhere.
func Discard() *Reporter {
	return NewReporter(io.Discard)
}

func (r *Reporter) render(tag Tag, s string) string {
	if !r.color {
		return s
	}
	return r.styles[tag].Render(s)
}

// Record prints one line: the ID left-padded to pad, then the message.
func (r *Reporter) Record(tag Tag, id string, pad int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, " %s  %s\n", padLeft(id, pad), r.render(tag, msg))
}

// Transition prints "ID  src → dst" and counts dst for the summary.
func (r *Reporter) Transition(tag Tag, id string, pad int, from, to fmt.Stringer) {
	r.mu.Lock()
	r.counts[to.String()]++
	r.mu.Unlock()
	r.Record(tag, id, pad, fmt.Sprintf("%s → %s", from, to))
}

// Count increments a summary counter without printing a line.
func (r *Reporter) Count(key string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key] += n
}

// Counts returns a copy of the summary counters.
func (r *Reporter) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Heading prints an operation banner.
func (r *Reporter) Heading(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.color {
		title = r.bold.Render(title)
	}
	fmt.Fprintln(r.out, title)
}

// Infof prints a neutral message.
func (r *Reporter) Infof(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.render(TagInfo, fmt.Sprintf(format, args...)))
}

// Warnf prints a manual-needed message.
func (r *Reporter) Warnf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.render(TagManual, fmt.Sprintf(format, args...)))
}

// Summary prints the summary counters in key order and resets them.
func (r *Reporter) Summary(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.counts))
	for k := range r.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, r.counts[k]))
	}
	line := operation + " summary"
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	} else {
		line += ": no records processed"
	}
	if r.color {
		line = r.bold.Render(line)
	}
	fmt.Fprintln(r.out, line)
	r.counts = make(map[string]int)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
