// Package citations assigns citation ids to research findings and checks the
// [ref:ref-N] markers a draft uses against them.
package citations

import (
	"fmt"
	"regexp"
	"strings"

	"aiblog/internal/core"
)

// Entry pairs a citation id with the finding it refers to.
type Entry struct {
	ID      string
	Finding core.ResearchFinding
}

// Ledger is the ordered id assignment for one draft. It is built once and
// shared by the draft prompt and the persisted research details.
type Ledger struct {
	entries []Entry
	byID    map[string]int
}

// NewLedger numbers findings ref-0..ref-(N-1) in the set's order.
func NewLedger(findings *core.FindingSet) Ledger {
	ordered := findings.Ordered()
	l := Ledger{
		entries: make([]Entry, 0, len(ordered)),
		byID:    make(map[string]int, len(ordered)),
	}
	for i, f := range ordered {
		id := fmt.Sprintf("ref-%d", i)
		l.byID[id] = i
		l.entries = append(l.entries, Entry{ID: id, Finding: f})
	}
	return l
}

// Entries returns a copy of the ledger entries.
func (l Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l Ledger) Len() int {
	return len(l.entries)
}

// Lookup returns the entry for an id.
func (l Ledger) Lookup(id string) (Entry, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Details returns the persisted research details, each carrying its id.
func (l Ledger) Details() []core.ResearchDetail {
	out := make([]core.ResearchDetail, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, core.ResearchDetail{ID: e.ID, Point: e.Finding.Point, Data: e.Finding})
	}
	return out
}

// PromptBlock renders the entries for the draft prompt. Error findings are
// flagged so the model does not cite them.
func (l Ledger) PromptBlock() string {
	if len(l.entries) == 0 {
		return "(no research available)"
	}

	var sb strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&sb, "[%s] Point: %s\n", e.ID, e.Finding.Point)
		if e.Finding.IsError() || strings.TrimSpace(e.Finding.GroundedText) == "" {
			sb.WriteString("Research: NO DATA (research failed, do not cite this id)\n")
		} else {
			fmt.Fprintf(&sb, "Research: %s\n", strings.TrimSpace(e.Finding.GroundedText))
		}
		sb.WriteString(sourcesNote(e.Finding.Sources))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func sourcesNote(sources []core.Source) string {
	if len(sources) == 0 {
		return "Sources: none\n"
	}
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		switch {
		case s.Title != "":
			names = append(names, s.Title)
		case s.URI != "":
			names = append(names, s.URI)
		}
	}
	if len(names) == 0 {
		return "Sources: none\n"
	}
	return fmt.Sprintf("Sources: %s\n", strings.Join(names, ", "))
}

var (
	markerRe   = regexp.MustCompile(`\[ref:([^\]]+)\]`)
	markerIDRe = regexp.MustCompile(`ref-\d+`)
)

// ExtractMarkerIDs returns every id referenced by [ref:...] markers, in order
// of appearance and with repeats. Combined markers such as
// [ref:ref-0, ref:ref-3] yield each id.
func ExtractMarkerIDs(content string) []string {
	var ids []string
	for _, m := range markerRe.FindAllStringSubmatch(content, -1) {
		ids = append(ids, markerIDRe.FindAllString(m[1], -1)...)
	}
	return ids
}

// Report is the outcome of checking a draft's markers against the ledger.
type Report struct {
	Known       []string `json:"known,omitempty"`       // distinct ids that resolve to usable findings
	Unknown     []string `json:"unknown,omitempty"`     // distinct ids with no ledger entry
	ErrorCited  []string `json:"error_cited,omitempty"` // distinct ids that point at failed research
	MarkerCount int      `json:"marker_count"`
}

// OK reports whether every marker resolves to a usable finding.
func (r Report) OK() bool {
	return len(r.Unknown) == 0 && len(r.ErrorCited) == 0
}

// Validate checks the markers in content against the ledger.
func (l Ledger) Validate(content string) Report {
	ids := ExtractMarkerIDs(content)
	report := Report{MarkerCount: len(ids)}
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, ok := l.Lookup(id)
		switch {
		case !ok:
			report.Unknown = append(report.Unknown, id)
		case e.Finding.IsError():
			report.ErrorCited = append(report.ErrorCited, id)
		default:
			report.Known = append(report.Known, id)
		}
	}
	return report
}
