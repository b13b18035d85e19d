// Package render turns a generated post into a standalone HTML preview.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"aiblog/internal/core"
)

// markerRe matches citation markers, including combined ones like [ref:ref-1, ref-2].
var markerRe = regexp.MustCompile(`\[ref:\s*(ref-\d+(?:\s*,\s*(?:ref:)?ref-\d+)*)\]`)

var idRe = regexp.MustCompile(`ref-\d+`)

// Markdown converts markdown text to HTML with external links opening in a new tab.
func Markdown(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})

	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}

// LinkCitations rewrites [ref:ref-N] markers into footnote-style links that
// point at the sources list. Unknown ids are left as plain text.
func LinkCitations(content string, details []core.ResearchDetail) string {
	index := make(map[string]int, len(details))
	for i, d := range details {
		index[d.ID] = i + 1
	}

	return markerRe.ReplaceAllStringFunc(content, func(marker string) string {
		var links []string
		for _, id := range idRe.FindAllString(marker, -1) {
			n, ok := index[id]
			if !ok {
				links = append(links, id)
				continue
			}
			links = append(links, fmt.Sprintf("[%d](#%s)", n, id))
		}
		return "<sup>" + strings.Join(links, ", ") + "</sup>"
	})
}

type sourceView struct {
	ID      string
	Point   string
	Failed  bool
	Sources []core.Source
}

type pageView struct {
	Post     core.Post
	ImageURL string
	ToolName string
	Body     template.HTML
	Research []sourceView
}

var pageTemplate = template.Must(template.New("post").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="description" content="{{.Post.Description}}">
<title>{{.Post.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; line-height: 1.6; max-width: 760px; margin: 0 auto; padding: 32px 16px; color: #222; }
img.cover { width: 100%; border-radius: 8px; }
.meta { color: #666; font-size: 0.9em; }
.tag { background: #eef; border-radius: 4px; padding: 1px 6px; margin-right: 4px; }
pre { background: #f6f8fa; padding: 12px; overflow-x: auto; }
.failed { color: #a00; }
</style>
</head>
<body>
{{with .ImageURL}}<img class="cover" src="{{.}}" alt="">{{end}}
<h1>{{.Post.Title}}</h1>
<p class="meta">{{.Post.Author}} &middot; {{.Post.ReadTime}} min read{{with .ToolName}} &middot; Tool: {{.}}{{end}}</p>
<p>{{range .Post.Tags}}<span class="tag">{{.}}</span>{{end}}</p>
<article>
{{.Body}}
</article>
{{if .Research}}
<hr>
<h2>Sources</h2>
<ol>
{{range .Research}}<li id="{{.ID}}"><strong>{{.Point}}</strong>{{if .Failed}} <span class="failed">(research unavailable)</span>{{end}}
{{if .Sources}}<ul>{{range .Sources}}<li><a href="{{.URI}}" target="_blank" rel="noopener">{{if .Title}}{{.Title}}{{else}}{{.URI}}{{end}}</a></li>{{end}}</ul>{{end}}
</li>
{{end}}</ol>
{{end}}
</body>
</html>
`))

// PostHTML renders a full preview page for post.
func PostHTML(post core.Post) (string, error) {
	view := pageView{
		Post: post,
		Body: Markdown(LinkCitations(post.Content, post.ResearchDetails)),
	}
	if post.ImageURL != nil {
		view.ImageURL = *post.ImageURL
	}
	if post.ToolName != nil {
		view.ToolName = *post.ToolName
	}
	for _, d := range post.ResearchDetails {
		view.Research = append(view.Research, sourceView{
			ID:      d.ID,
			Point:   d.Point,
			Failed:  d.Data.IsError(),
			Sources: d.Data.Sources,
		})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render preview: %w", err)
	}
	return buf.String(), nil
}

// WriteFile writes rendered content to path, creating parent directories.
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write preview %s: %w", path, err)
	}
	return nil
}
