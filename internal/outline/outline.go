// Package outline turns a chosen topic into a Markdown outline.
package outline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/textutil"
)

// LLMClient defines the LLM operations needed by the outline generator
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Generator produces post outlines
type Generator struct {
	llmClient LLMClient
	log       *slog.Logger
}

// NewGenerator creates an outline generator
func NewGenerator(llmClient LLMClient) *Generator {
	return &Generator{llmClient: llmClient, log: logger.Get().With("stage", "outline")}
}

// Generate asks for a Markdown outline. The reply is unwrapped from a
// ```markdown fence when present and otherwise returned as-is.
func (g *Generator) Generate(ctx context.Context, topic core.TopicSelection) (string, error) {
	text, err := g.llmClient.GenerateText(ctx, buildPrompt(topic), llm.TextGenerationOptions{})
	if err != nil {
		return "", fmt.Errorf("outline generation failed: %w", err)
	}

	out := textutil.ExtractMarkdownContent(text)
	g.log.Info("Outline generated", "title", topic.Title, "lines", strings.Count(out, "\n")+1)
	return out, nil
}

func buildPrompt(topic core.TopicSelection) string {
	var prompt strings.Builder

	prompt.WriteString("Create a detailed outline for a blog post.\n\n")
	prompt.WriteString(fmt.Sprintf("**Title:** %s\n", topic.Title))
	if topic.HookDescription != "" {
		prompt.WriteString(fmt.Sprintf("**Angle:** %s\n", topic.HookDescription))
	}
	if len(topic.SearchQueries) > 0 {
		prompt.WriteString(fmt.Sprintf("**Research directions:** %s\n", strings.Join(topic.SearchQueries, "; ")))
	}

	prompt.WriteString("\n**FORMAT:**\n")
	prompt.WriteString("- Output ONLY Markdown, starting at the first heading. No preamble, no closing remarks.\n")
	prompt.WriteString("- Use ## for sections and ### for sub-sections\n")
	prompt.WriteString("- Under each section list 2-4 bullet points (-) naming the specific facts, examples or questions to cover\n")
	prompt.WriteString("- Each bullet must be researchable on its own: concrete, not vague\n")
	prompt.WriteString("- Include an introduction and a conclusion section\n")

	return prompt.String()
}
