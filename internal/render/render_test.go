package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aiblog/internal/core"
)

func details() []core.ResearchDetail {
	return []core.ResearchDetail{
		{ID: "ref-0", Point: "Robots", Data: core.ResearchFinding{
			Point: "Robots", GroundedText: "Robots deliver food.",
			Sources: []core.Source{{URI: "https://example.com/robots", Title: "example.com"}},
		}},
		{ID: "ref-1", Point: "Drones", Data: core.ResearchFinding{
			Point: "Drones", GroundedText: core.ErrorResearchPrefix + " timeout", Sources: []core.Source{},
		}},
	}
}

func TestLinkCitations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "Fact [ref:ref-0].", "Fact <sup>[1](#ref-0)</sup>."},
		{"combined", "Facts [ref:ref-0, ref-1].", "Facts <sup>[1](#ref-0), [2](#ref-1)</sup>."},
		{"unknown id", "Claim [ref:ref-7].", "Claim <sup>ref-7</sup>."},
		{"no markers", "Plain text.", "Plain text."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LinkCitations(tt.in, details()); got != tt.want {
				t.Errorf("LinkCitations() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown("# Title\n\nSee [docs](https://example.com)."))
	if !strings.Contains(out, "<h1") || !strings.Contains(out, `target="_blank"`) {
		t.Errorf("Unexpected HTML %s", out)
	}
	if Markdown("") != "" {
		t.Error("Expected empty output for empty input")
	}
}

func TestPostHTML(t *testing.T) {
	image := "https://cdn.example.com/cover.png"
	post := core.Post{
		Title:           "Food <Tech>",
		Content:         "## Intro\n\nRobots deliver [ref:ref-0].",
		ImageURL:        &image,
		Tags:            []string{"delivery"},
		ReadTime:        3,
		Author:          "AI Blog Bot",
		ResearchDetails: details(),
	}

	html, err := PostHTML(post)
	if err != nil {
		t.Fatalf("PostHTML() error = %v", err)
	}
	for _, want := range []string{
		"<title>Food &lt;Tech&gt;</title>",
		`src="https://cdn.example.com/cover.png"`,
		`href="#ref-0"`,
		`id="ref-1"`,
		"research unavailable",
		"https://example.com/robots",
		"3 min read",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Expected preview to contain %q", want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.html")
	if err := WriteFile(path, "<p>x</p>"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "<p>x</p>" {
		t.Errorf("Unexpected file content %q (%v)", data, err)
	}
}
