package markdown

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Fix applies deterministic repairs for every lint rule. After Fix, content
// has no nested citation markers, unclosed fences, missing heading spaces or
// runs of blank lines.
func Fix(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = collapseCitations(content)

	lines := strings.Split(content, "\n")
	lines = fixLines(lines)
	lines = fixTree(lines)
	// dedenting can expose new fences and headings
	lines = fixLines(lines)
	lines = spaceHeadings(lines)
	lines = collapseBlankLines(lines)

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// fixTree dedents indented code blocks and clamps heading jumps to one level.
// It never changes the number of lines.
func fixTree(lines []string) []string {
	src := []byte(strings.Join(lines, "\n"))
	idx := newLineIndex(src)

	dedent := make(map[int]bool)
	relevel := make(map[int]int)
	prevLevel := 0

	_ = ast.Walk(parser.Parse(text.NewReader(src)), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.CodeBlock:
			segs := node.Lines()
			for i := 0; i < segs.Len(); i++ {
				dedent[idx.lineOf(segs.At(i).Start)] = true
			}
		case *ast.Heading:
			level := node.Level
			if prevLevel > 0 && level > prevLevel+1 && node.Lines().Len() > 0 {
				level = prevLevel + 1
				relevel[idx.lineOf(node.Lines().At(0).Start)] = level
			}
			prevLevel = level
		}
		return ast.WalkContinue, nil
	})

	out := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case dedent[i]:
			line = strings.TrimLeft(line, " \t")
		case relevel[i] > 0:
			trimmed := strings.TrimLeft(line, " ")
			if strings.HasPrefix(trimmed, "#") {
				line = strings.Repeat("#", relevel[i]) + strings.TrimLeft(trimmed, "#")
			}
		}
		out[i] = line
	}
	return out
}

// fixLines inserts the missing heading space and closes a dangling fence.
func fixLines(lines []string) []string {
	fence := fenceTracker{}
	seen := false
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if !fence.step(line) && !fence.open() {
			if marker, rest, ok := missingHeadingSpace(line, !seen); ok {
				line = marker + " " + rest
			}
		}
		if strings.TrimSpace(line) != "" {
			seen = true
		}
		out = append(out, line)
	}
	if fence.open() {
		out = append(out, fence.marker)
	}
	return out
}

func spaceHeadings(lines []string) []string {
	fence := fenceTracker{}
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if fence.step(line) || fence.open() || !atxHeadingRe.MatchString(line) {
			out = append(out, line)
			continue
		}
		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, line)
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, "")
		}
	}
	return out
}

func collapseBlankLines(lines []string) []string {
	fence := fenceTracker{}
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if fence.step(line) || fence.open() {
			blank = false
			out = append(out, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return out
}
