package markdown

import (
	"strings"
	"testing"
)

func TestLintRules(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantRule string
		wantLine int
	}{
		{"nested citation", "Intro text [ref:ref:ref-2] here.", RuleNestedCitation, 1},
		{"nested citation in combined marker", "Intro\n\nBoth agree [ref:ref-1, ref:ref:ref-3].", RuleNestedCitation, 3},
		{"lone hash title on first line", "#Title\n\nBody", RuleHeadingSpace, 1},
		{"heading without space", "##Title\n\nBody", RuleHeadingSpace, 1},
		{"heading touching paragraph", "# Title\nBody", RuleBlankLineAroundHeading, 1},
		{"unclosed fence", "Text\n\n```go\nfmt.Println()", RuleUnclosedFence, 3},
		{"multiple blank lines", "A\n\n\nB", RuleMultipleBlankLines, 3},
		{"indented paragraph", "Para\n\n    indented para", RuleIndentedCodeBlock, 3},
		{"skipped heading level", "# A\n\n### C", RuleHeadingIncrement, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Lint(tt.content)
			if len(issues) != 1 {
				t.Fatalf("Expected exactly 1 issue, got %v", issues)
			}
			if issues[0].Rule != tt.wantRule || issues[0].Line != tt.wantLine {
				t.Errorf("Expected %s at line %d, got %s", tt.wantRule, tt.wantLine, issues[0])
			}
		})
	}
}

func TestLintCleanDocument(t *testing.T) {
	clean := "# Title\n\nIntro [ref:ref-0].\n\n## Section\n\n- item [ref:ref-1, ref-2]\n- item\n\n```go\n#notaheading\n\n\nx := 1\n```\n\n### Detail\n\nDone."
	if issues := Lint(clean); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
}

func TestFix(t *testing.T) {
	messy := strings.Join([]string{
		"#Title",
		"Intro [ref:ref:ref-1] text.",
		"",
		"",
		"",
		"    indented paragraph",
		"#### Deep",
		"```go",
		"code",
	}, "\n")

	want := "# Title\n\nIntro [ref:ref-1] text.\n\nindented paragraph\n\n## Deep\n\n```go\ncode\n```"

	got := Fix(messy)
	if got != want {
		t.Errorf("Fix() =\n%s\nwant\n%s", got, want)
	}
	if issues := Lint(got); len(issues) != 0 {
		t.Errorf("Expected fixed content to lint clean, got %v", issues)
	}
	if again := Fix(got); again != got {
		t.Errorf("Expected Fix to be idempotent, got\n%s", again)
	}
}

func TestFixHeadingSpace(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"numbered prose", "Intro.\n\n#1 rule: back up your data.", "Intro.\n\n#1 rule: back up your data."},
		{"hashtag prose", "Intro.\n\n#AI is everywhere these days.", "Intro.\n\n#AI is everywhere these days."},
		{"hashtag inside paragraph", "Trends this week\n#AI is everywhere", "Trends this week\n#AI is everywhere"},
		{"title on first line", "#AI Weekly\n\nText", "# AI Weekly\n\nText"},
		{"subheading mid document", "Intro.\n\n##Setup\n\nText", "Intro.\n\n## Setup\n\nText"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, issue := range Lint(tt.content) {
				if issue.Rule == RuleHeadingSpace && tt.want == tt.content {
					t.Errorf("Prose flagged as heading: %s", issue)
				}
			}
			if got := Fix(tt.content); got != tt.want {
				t.Errorf("Fix() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFixCombinedCitations(t *testing.T) {
	in := "Both [ref:ref:ref-0, ref:ref:ref-3] agree [ref:ref-1, ref-2]. Also [ref:ref:ref:ref-4]."
	want := "Both [ref:ref-0, ref:ref-3] agree [ref:ref-1, ref-2]. Also [ref:ref-4]."

	if issues := Lint(in); len(issues) != 2 {
		t.Errorf("Expected 2 nested citation issues, got %v", issues)
	}
	got := Fix(in)
	if got != want {
		t.Errorf("Fix() = %q, want %q", got, want)
	}
	if issues := Lint(got); len(issues) != 0 {
		t.Errorf("Expected fixed citations to lint clean, got %v", issues)
	}
}

func TestFixGuaranteedRules(t *testing.T) {
	inputs := []string{
		"[ref:ref:ref:ref-3] start",
		"##A\n###B\n\n\n\n~~~\nunterminated",
		"text\n\n\n\n\n    ```\n    code",
		"#\n\n\n#x",
		"",
	}
	guaranteed := map[string]bool{
		RuleNestedCitation:     true,
		RuleUnclosedFence:      true,
		RuleHeadingSpace:       true,
		RuleMultipleBlankLines: true,
	}

	for _, in := range inputs {
		for _, issue := range Lint(Fix(in)) {
			if guaranteed[issue.Rule] {
				t.Errorf("Fix(%q) left %s", in, issue)
			}
		}
	}
}
