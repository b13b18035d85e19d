package refine

import (
	"context"
	"fmt"
	"log/slog"

	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/textutil"
)

// TextGenerator is the single-call subset of the LLM client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Polisher strips leftover meta-commentary ("Here is the revised post:")
// from a refined draft.
type Polisher struct {
	llmClient TextGenerator
	log       *slog.Logger
}

// NewPolisher creates a polisher
func NewPolisher(llmClient TextGenerator) *Polisher {
	return &Polisher{llmClient: llmClient, log: logger.Get().With("stage", "polish")}
}

// Polish returns the cleaned draft. An empty result is returned as-is and the
// caller decides what to keep.
func (p *Polisher) Polish(ctx context.Context, draft string) (string, error) {
	text, err := p.llmClient.GenerateText(ctx, polishPrompt(draft), llm.TextGenerationOptions{Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("final polish failed: %w", err)
	}
	out := textutil.StripCodeFence(text)
	p.log.Info("Draft polished", "chars_before", len(draft), "chars_after", len(out))
	return out, nil
}

func polishPrompt(draft string) string {
	return fmt.Sprintf(`Clean up the blog post below for publication.

Remove anything that is not part of the post itself: remarks such as "Here is the revised post:", notes to the editor, explanations of changes, or sign-offs addressed to the requester.
Do not change the post's wording otherwise. Keep headings, lists and citation markers like [ref:ref-0] exactly as they are.
Return only the post as raw Markdown with no code fence.

---
%s
---`, draft)
}
