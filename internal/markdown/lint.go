// Package markdown validates and repairs the Markdown structure of generated posts.
package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Lint rule names
const (
	RuleIndentedCodeBlock      = "indented-code-block"
	RuleHeadingIncrement       = "heading-increment"
	RuleHeadingSpace           = "heading-space"
	RuleBlankLineAroundHeading = "blank-line-around-heading"
	RuleUnclosedFence          = "unclosed-fence"
	RuleNestedCitation         = "nested-citation"
	RuleMultipleBlankLines     = "multiple-blank-lines"
)

// Issue is a single lint finding. Line is 1-based.
type Issue struct {
	Line    int
	Rule    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s: %s", i.Line, i.Rule, i.Message)
}

var (
	citationMarkerRe = regexp.MustCompile(`\[ref:[^\[\]\n]*\]`)
	nestedRefRe      = regexp.MustCompile(`ref:(?:ref:)+(ref-\d+)`)
	fenceRe          = regexp.MustCompile("^\\s{0,3}(```+|~~~+)")
	headingNoSpaceRe = regexp.MustCompile(`^(#{1,6})(\pL.*)$`)
	atxHeadingRe     = regexp.MustCompile(`^#{1,6}(\s|$)`)
)

var parser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// Lint reports structural problems in content. Issues are ordered by line.
func Lint(content string) []Issue {
	var issues []Issue
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		for _, m := range citationMarkerRe.FindAllString(line, -1) {
			if nestedRefRe.MatchString(m) {
				issues = append(issues, Issue{Line: i + 1, Rule: RuleNestedCitation, Message: fmt.Sprintf("malformed citation marker %s", m)})
			}
		}
	}

	issues = append(issues, lintLines(lines)...)
	issues = append(issues, lintTree(content)...)

	sort.SliceStable(issues, func(a, b int) bool { return issues[a].Line < issues[b].Line })
	return issues
}

func lintLines(lines []string) []Issue {
	var issues []Issue
	fence := fenceTracker{}
	blankRun := 0
	seen := false

	for i, line := range lines {
		if fence.step(line) || fence.open() {
			blankRun = 0
			seen = true
			continue
		}

		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun == 2 {
				issues = append(issues, Issue{Line: i + 1, Rule: RuleMultipleBlankLines, Message: "multiple consecutive blank lines"})
			}
			continue
		}
		blankRun = 0
		first := !seen
		seen = true

		if _, _, ok := missingHeadingSpace(line, first); ok {
			issues = append(issues, Issue{Line: i + 1, Rule: RuleHeadingSpace, Message: "no space after heading marker"})
			continue
		}

		if atxHeadingRe.MatchString(line) {
			before := i > 0 && strings.TrimSpace(lines[i-1]) != ""
			after := i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != ""
			if before || after {
				issues = append(issues, Issue{Line: i + 1, Rule: RuleBlankLineAroundHeading, Message: "heading should be surrounded by blank lines"})
			}
		}
	}

	if fence.open() {
		issues = append(issues, Issue{Line: fence.openedAt + 1, Rule: RuleUnclosedFence, Message: "code fence is never closed"})
	}
	return issues
}

// missingHeadingSpace splits a heading marker glued to its text. A lone # is
// only a heading on the first line of the document; anywhere else #AI or #1
// is prose.
func missingHeadingSpace(line string, first bool) (marker, rest string, ok bool) {
	m := headingNoSpaceRe.FindStringSubmatch(line)
	if m == nil || (len(m[1]) == 1 && !first) {
		return "", "", false
	}
	return m[1], m[2], true
}

// collapseCitations rewrites ref:ref:ref-N ids inside citation markers to ref:ref-N.
func collapseCitations(content string) string {
	return citationMarkerRe.ReplaceAllStringFunc(content, func(marker string) string {
		return nestedRefRe.ReplaceAllString(marker, "ref:$1")
	})
}

// lintTree runs the rules that need the parsed document.
func lintTree(content string) []Issue {
	var issues []Issue
	src := []byte(content)
	idx := newLineIndex(src)

	prevLevel := 0
	_ = ast.Walk(parser.Parse(text.NewReader(src)), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.CodeBlock:
			if node.Lines().Len() > 0 {
				issues = append(issues, Issue{
					Line:    idx.lineOf(node.Lines().At(0).Start) + 1,
					Rule:    RuleIndentedCodeBlock,
					Message: "indented text renders as a code block; use a fenced block or remove the indentation",
				})
			}
		case *ast.Heading:
			if prevLevel > 0 && node.Level > prevLevel+1 && node.Lines().Len() > 0 {
				issues = append(issues, Issue{
					Line:    idx.lineOf(node.Lines().At(0).Start) + 1,
					Rule:    RuleHeadingIncrement,
					Message: fmt.Sprintf("heading level jumps from h%d to h%d", prevLevel, node.Level),
				})
			}
			prevLevel = node.Level
		}
		return ast.WalkContinue, nil
	})
	return issues
}

// fenceTracker follows fenced code block state line by line.
type fenceTracker struct {
	marker   string
	openedAt int
	line     int
}

// step consumes a line and reports whether it was a fence delimiter.
func (f *fenceTracker) step(line string) bool {
	defer func() { f.line++ }()

	m := fenceRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if f.marker == "" {
		f.marker = m[1]
		f.openedAt = f.line
		return true
	}
	// A closing fence uses the same character, at least as long, with nothing after it.
	if m[1][0] == f.marker[0] && len(m[1]) >= len(f.marker) && strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), m[1][:1])) == "" {
		f.marker = ""
		return true
	}
	return false
}

func (f *fenceTracker) open() bool {
	return f.marker != ""
}

type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	starts := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 0-based line containing offset.
func (l lineIndex) lineOf(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset }) - 1
}
