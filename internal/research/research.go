// Package research gathers grounded web research for each outline point.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/logger"
)

// pointRe matches bullet lines (*, -, +) and level 2-4 headings.
var pointRe = regexp.MustCompile(`^\s*([*+-]|#{2,4})\s+(.+)$`)

// LLMClient defines the grounded generation needed by the researcher
type LLMClient interface {
	GenerateGrounded(ctx context.Context, prompt string, options llm.GroundingOptions) (*llm.GroundedResponse, error)
}

// Researcher runs one grounded query per outline point.
type Researcher struct {
	llmClient LLMClient
	maxPoints int
	log       *slog.Logger
}

// NewResearcher creates a researcher. maxPoints > 0 caps the number of points
// researched, which keeps test runs cheap.
func NewResearcher(llmClient LLMClient, maxPoints int) *Researcher {
	return &Researcher{
		llmClient: llmClient,
		maxPoints: maxPoints,
		log:       logger.Get().With("stage", "research"),
	}
}

// ExtractPoints returns the outline's bullets and level 2-4 headings in
// order, markers stripped. A point repeated verbatim is kept once and
// level 5+ headings are ignored, so the result can be shorter than the
// number of bullets in the outline. Findings are keyed by point, so one
// finding is produced per returned point.
func ExtractPoints(outline string) []string {
	var points []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(outline, "\n") {
		m := pointRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		point := strings.TrimSpace(m[2])
		if point == "" || seen[point] {
			continue
		}
		seen[point] = true
		points = append(points, point)
	}
	return points
}

// Research queries each point sequentially. A failed point is recorded as an
// error placeholder finding and never aborts the stage.
func (r *Researcher) Research(ctx context.Context, outline, topic string) *core.FindingSet {
	points := ExtractPoints(outline)
	if r.maxPoints > 0 && len(points) > r.maxPoints {
		r.log.Info("Truncating research points", "found", len(points), "max", r.maxPoints)
		points = points[:r.maxPoints]
	}

	findings := core.NewFindingSet()
	failed := 0
	for i, point := range points {
		finding := r.researchPoint(ctx, point, topic)
		if finding.IsError() {
			failed++
			r.log.Warn("Research failed for point", "index", i, "point", point, "error", finding.GroundedText)
		} else {
			r.log.Debug("Researched point", "index", i, "point", point, "sources", len(finding.Sources))
		}
		findings.Put(finding)
	}

	r.log.Info("Research complete", "points", findings.Len(), "failed", failed)
	return findings
}

func (r *Researcher) researchPoint(ctx context.Context, point, topic string) core.ResearchFinding {
	resp, err := r.llmClient.GenerateGrounded(ctx, buildPrompt(point, topic), llm.GroundingOptions{})
	if err != nil {
		return core.ResearchFinding{
			Point:        point,
			GroundedText: fmt.Sprintf("%s %v", core.ErrorResearchPrefix, err),
			Sources:      []core.Source{},
		}
	}

	sources := resp.Sources
	if sources == nil {
		sources = []core.Source{}
	}
	return core.ResearchFinding{
		Point:           point,
		GroundedText:    resp.Text,
		Sources:         sources,
		SearchQueries:   resp.SearchQueries,
		RenderedContent: resp.RenderedContent,
	}
}

func buildPrompt(point, topic string) string {
	return fmt.Sprintf(`You are researching material for a blog post titled "%s".

Find current, factual information about this specific point:
%s

Report concrete facts, figures, dates, names and examples. Prefer recent and authoritative sources.
Keep it to 2-4 short paragraphs. Do not write the blog post itself and do not add commentary about your search.`, topic, point)
}
