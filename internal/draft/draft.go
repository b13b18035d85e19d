// Package draft writes the first full version of a post from the outline and
// the research ledger.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"aiblog/internal/citations"
	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/textutil"
)

// Temperature leaves room for stylistic variation; citation rules are
// enforced by the prompt, not by sampling.
const Temperature = 0.7

// ErrEmptyDraft is returned when no usable draft came back.
var ErrEmptyDraft = errors.New("draft generation produced no content")

// LLMClient defines the LLM operations needed by the draft generator
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Generator writes drafts.
type Generator struct {
	llmClient LLMClient
	log       *slog.Logger
}

// NewGenerator creates a draft generator
func NewGenerator(llmClient LLMClient) *Generator {
	return &Generator{llmClient: llmClient, log: logger.Get().With("stage", "draft")}
}

// Generate writes the draft. Blocked, truncated and empty replies are logged
// distinctly and all surface as ErrEmptyDraft.
func (g *Generator) Generate(ctx context.Context, topic core.TopicSelection, outline string, ledger citations.Ledger) (string, error) {
	text, err := g.llmClient.GenerateText(ctx, buildPrompt(topic, outline, ledger), llm.TextGenerationOptions{
		Temperature: Temperature,
	})
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrSafetyBlocked):
			g.log.Error("Draft blocked by safety filters", "title", topic.Title, "error", err.Error())
		case errors.Is(err, llm.ErrMaxTokens):
			g.log.Error("Draft truncated at max tokens", "title", topic.Title, "error", err.Error())
		default:
			g.log.Error("Draft generation failed", "title", topic.Title, "error", err.Error())
		}
		return "", fmt.Errorf("%w: %w", ErrEmptyDraft, err)
	}

	content := textutil.StripCodeFence(text)
	if content == "" {
		g.log.Error("Draft generation returned empty content", "title", topic.Title)
		return "", ErrEmptyDraft
	}

	report := ledger.Validate(content)
	g.log.Info("Draft generated",
		"title", topic.Title,
		"words", len(strings.Fields(content)),
		"markers", report.MarkerCount,
		"cited_findings", len(report.Known),
	)
	return content, nil
}

func buildPrompt(topic core.TopicSelection, outline string, ledger citations.Ledger) string {
	var prompt strings.Builder

	prompt.WriteString("Write a complete blog post in Markdown.\n\n")
	prompt.WriteString(fmt.Sprintf("**TITLE:** %s\n", topic.Title))
	if topic.HookDescription != "" {
		prompt.WriteString(fmt.Sprintf("**ANGLE:** %s\n", topic.HookDescription))
	}

	prompt.WriteString("\n**OUTLINE (follow this structure):**\n")
	prompt.WriteString(outline)
	prompt.WriteString("\n\n**RESEARCH (each entry has a citation id):**\n")
	prompt.WriteString(ledger.PromptBlock())

	prompt.WriteString("\n\n**CITATION RULES:**\n")
	prompt.WriteString("- Immediately after a sentence or phrase that uses a specific research entry, add a marker like [ref:ref-0]\n")
	prompt.WriteString("- Several entries may back one sentence: [ref:ref-0, ref:ref-3]\n")
	prompt.WriteString("- Only use ids listed above. Never cite an entry marked NO DATA\n")
	prompt.WriteString("- Sentences based on general knowledge or your own synthesis get no marker\n")
	prompt.WriteString("- Do not add hyperlinks or a references section\n")

	prompt.WriteString("\n**STYLE:**\n")
	prompt.WriteString("- Friendly, clear and concrete, for a curious non-specialist reader\n")
	prompt.WriteString("- Use ## and ### headings from the outline, short paragraphs, lists where they help\n")
	prompt.WriteString("- Output only the post Markdown, starting with the first heading. No code fence around it, no preamble\n")

	return prompt.String()
}
