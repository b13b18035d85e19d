package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultWordsPerMinute is the average reading speed used for read time.
const DefaultWordsPerMinute = 200

// ReadTime estimates reading time in whole minutes, rounded up, never below 1.
func ReadTime(text string, wordsPerMinute int) int {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / float64(wordsPerMinute)))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// markdownFenceRe matches the first fenced block tagged markdown/md or untagged.
var markdownFenceRe = regexp.MustCompile("(?s)```(?:markdown|md)?[ \\t]*\\r?\\n(.*?)\\r?\\n?```")

// ExtractMarkdownContent returns the trimmed body of the first ```markdown
// fence in s. Text without a fenced block is returned unchanged.
func ExtractMarkdownContent(s string) string {
	m := markdownFenceRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return strings.TrimSpace(m[1])
}

var (
	leadingFenceRe  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \\t]*\\r?\\n")
	trailingFenceRe = regexp.MustCompile("\\r?\\n?```[ \\t]*$")
)

// StripCodeFence removes a wrapping code fence (leading ```lang line and
// trailing ```) if the model added one, and trims the result.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = leadingFenceRe.ReplaceAllString(s, "")
	s = trailingFenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var fieldLineRe = regexp.MustCompile(`^\s*(?:[-*+]\s+)?[*_]*([A-Za-z][A-Za-z0-9 _]*?)[*_]*\s*:\s*[*_]*\s*(.*?)\s*[*_]*\s*$`)

// ParseFields reads KEY: value lines from semi-structured LLM output. Keys are
// upper-cased with spaces turned into underscores; emphasis markers and list
// bullets around either side are ignored. The first occurrence of a key wins.
func ParseFields(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := fieldLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_"))
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = m[2]
	}
	return fields
}

// Truncate cuts s to at most maxRunes runes without splitting a character.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
