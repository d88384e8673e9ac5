package logging

import (
	"bytes"
	"strings"
	"testing"
)

type name string

func (n name) String() string { return string(n) }

func TestReporter_TransitionAndSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.Transition(TagProgress, "Rai2021", 10, name("md_imported"), name("md_prepared"))
	r.Transition(TagManual, "Staehr2010", 10, name("md_imported"), name("md_needs_manual_preparation"))
	r.Transition(TagProgress, "Li2020", 10, name("md_imported"), name("md_prepared"))
	r.Summary("Prep")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("output lines = %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "    Rai2021  md_imported → md_prepared" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], " Staehr2010  ") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[3] != "Prep summary: md_needs_manual_preparation: 1, md_prepared: 2" {
		t.Errorf("summary = %q", lines[3])
	}
	if len(r.Counts()) != 0 {
		t.Error("Summary() should reset counters")
	}
}

func TestReporter_EmptySummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Summary("Dedupe")
	if got := buf.String(); got != "Dedupe summary: no records processed\n" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestPadLeft(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ab", 4, "  ab"},
		{"abcd", 2, "abcd"},
		{"", 0, ""},
	}
	for _, tt := range tests {
		if got := padLeft(tt.in, tt.width); got != tt.want {
			t.Errorf("padLeft(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
