package pipeline

import (
	"context"

	"aiblog/internal/citations"
	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/refine"
	"aiblog/internal/topic"
)

// LLMClient is the union of the model operations the stages need. Both
// *llm.Client and llmtest.Fake satisfy it.
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
	GenerateGrounded(ctx context.Context, prompt string, options llm.GroundingOptions) (*llm.GroundedResponse, error)
	GenerateImage(ctx context.Context, prompt string) (*llm.ImageResponse, error)
	SendMessage(ctx context.Context, conv llm.Conversation, message string, options llm.TextGenerationOptions) (string, llm.Conversation, error)
}

// TrendSource supplies the aggregated trend text used for topic selection
type TrendSource interface {
	Context(ctx context.Context) (string, error)
}

// TrendRefresher is a TrendSource whose cached context can be dropped
type TrendRefresher interface {
	Invalidate()
}

// TopicSelector chooses the subject of a run
type TopicSelector interface {
	Select(ctx context.Context, in topic.Input) (core.TopicSelection, error)
	SelectTool(ctx context.Context, in topic.ToolInput) (core.TopicSelection, string, error)
}

// OutlineGenerator produces the Markdown outline for a topic
type OutlineGenerator interface {
	Generate(ctx context.Context, topic core.TopicSelection) (string, error)
}

// Researcher runs grounded lookups for every outline point. It never fails;
// failed points come back as error findings.
type Researcher interface {
	Research(ctx context.Context, outline, topic string) *core.FindingSet
}

// DraftGenerator writes the first full draft with citation markers
type DraftGenerator interface {
	Generate(ctx context.Context, topic core.TopicSelection, outline string, ledger citations.Ledger) (string, error)
}

// Refiner runs the evaluate/revise loop
type Refiner interface {
	Refine(ctx context.Context, in refine.Input) refine.Result
}

// Polisher strips leftover meta commentary from the refined draft
type Polisher interface {
	Polish(ctx context.Context, draft string) (string, error)
}

// MetadataExtractor derives publishing metadata from the final draft
type MetadataExtractor interface {
	Extract(ctx context.Context, draft string, categories []core.Category) (core.PostMetadata, error)
}

// MarkdownValidator repairs structural Markdown problems. It returns its
// input unchanged when it cannot do better.
type MarkdownValidator interface {
	Validate(ctx context.Context, content string) string
}

// ImageGenerator creates and uploads a cover image, returning its public URL
// or "" when no image could be produced.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, title string) string
}
