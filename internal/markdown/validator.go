package markdown

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/textutil"
)

// LLMClient defines the LLM operations needed by the validator
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Validator asks the LLM to repair structure and falls back to the
// deterministic fixer when the repaired text still fails lint.
type Validator struct {
	llmClient LLMClient
	log       *slog.Logger
}

// NewValidator creates a markdown validator
func NewValidator(llmClient LLMClient) *Validator {
	return &Validator{
		llmClient: llmClient,
		log:       logger.Get().With("stage", "markdown"),
	}
}

// Validate never fails: any error or panic returns content unchanged.
func (v *Validator) Validate(ctx context.Context, content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("Markdown validation panicked, keeping original", "panic", fmt.Sprint(r))
			result = content
		}
	}()

	reply, err := v.llmClient.GenerateText(ctx, buildPrompt(content), llm.TextGenerationOptions{Temperature: 0.1})
	if err != nil {
		v.log.Warn("Markdown fix request failed, keeping original", "error", err.Error())
		return content
	}

	fixed := textutil.StripCodeFence(reply)
	if fixed == "" {
		v.log.Warn("Markdown fix returned empty text, keeping original")
		return content
	}

	if issues := Lint(fixed); len(issues) > 0 {
		v.log.Info("LLM-corrected markdown still has lint issues, applying deterministic fixes to original",
			"issues", len(issues), "first", issues[0].String())
		return Fix(content)
	}

	v.log.Info("Markdown validated", "chars", len(fixed))
	return fixed
}

func buildPrompt(content string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a Markdown editor. Fix structural problems in the blog post below without changing its wording or meaning.\n\n")
	prompt.WriteString("**FIX:**\n")
	prompt.WriteString("- Paragraphs indented by 4+ spaces that would render as code blocks\n")
	prompt.WriteString("- List and heading structure: a space after '#', no skipped heading levels, blank lines around headings\n")
	prompt.WriteString("- Code fences and inline code: every fence closed, language tags kept\n")
	prompt.WriteString("- Malformed nested citation markers: [ref:ref:ref-N] must become [ref:ref-N]\n")
	prompt.WriteString("- More than one consecutive blank line\n\n")
	prompt.WriteString("**KEEP:**\n")
	prompt.WriteString("- Every [ref:ref-N] citation marker exactly where it is\n\n")
	prompt.WriteString("Return only the corrected Markdown, with no commentary and no wrapping code fence.\n\n")
	prompt.WriteString("**POST:**\n")
	prompt.WriteString(content)
	prompt.WriteString("\n")

	return prompt.String()
}
