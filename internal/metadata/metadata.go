// Package metadata derives title, description, tags, category and image
// prompt from the final draft.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/parse"
	"aiblog/internal/textutil"
)

const (
	// DefaultMaxDraftChars caps how much of the draft goes into the prompt.
	DefaultMaxDraftChars = 12000
	maxLoggedPayload     = 2000
)

// LLMClient defines the LLM operations needed by the metadata extractor
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Extractor produces post metadata.
type Extractor struct {
	llmClient      LLMClient
	maxDraftChars  int
	wordsPerMinute int
	log            *slog.Logger
}

// NewExtractor creates a metadata extractor
func NewExtractor(llmClient LLMClient, maxDraftChars, wordsPerMinute int) *Extractor {
	if maxDraftChars <= 0 {
		maxDraftChars = DefaultMaxDraftChars
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = textutil.DefaultWordsPerMinute
	}
	return &Extractor{
		llmClient:      llmClient,
		maxDraftChars:  maxDraftChars,
		wordsPerMinute: wordsPerMinute,
		log:            logger.Get().With("stage", "metadata"),
	}
}

// Extract asks for structured metadata and computes read time locally from
// the full draft. A category id missing from categories is logged and kept.
func (e *Extractor) Extract(ctx context.Context, draft string, categories []core.Category) (core.PostMetadata, error) {
	raw, err := e.llmClient.GenerateText(ctx, buildPrompt(textutil.Truncate(draft, e.maxDraftChars), categories), llm.TextGenerationOptions{
		ResponseSchema: schema(),
		Temperature:    0.3,
	})
	if err != nil {
		return core.PostMetadata{}, fmt.Errorf("metadata extraction failed: %w", err)
	}

	meta, err := parse.ParseMetadata(raw)
	if err != nil {
		e.log.Warn("Unparseable metadata", "error", err.Error(), "raw", textutil.Truncate(raw, maxLoggedPayload))
		return core.PostMetadata{}, err
	}

	if !categoryKnown(meta.Category, categories) {
		e.log.Warn("Metadata category not in category list, keeping it", "category", meta.Category, "known", len(categories))
	}

	meta.ReadTimeMinutes = textutil.ReadTime(draft, e.wordsPerMinute)
	e.log.Info("Metadata extracted", "title", meta.Title, "category", meta.Category, "tags", len(meta.Tags), "read_time", meta.ReadTimeMinutes)
	return meta, nil
}

func categoryKnown(id int64, categories []core.Category) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func schema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Final, engaging post title",
			},
			"meta_description": {
				Type:        genai.TypeString,
				Description: "SEO description, 140-160 characters",
			},
			"image_prompt": {
				Type:        genai.TypeString,
				Description: "Prompt for a cover illustration; describe a scene, no text in the image",
			},
			"tags": {
				Type:        genai.TypeArray,
				Description: "3-6 lowercase topic tags",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"category": {
				Type:        genai.TypeInteger,
				Description: "Id of the best matching category",
			},
		},
		Required: []string{"title", "meta_description", "image_prompt", "tags", "category"},
	}
}

func buildPrompt(draft string, categories []core.Category) string {
	var prompt strings.Builder

	prompt.WriteString("Extract publishing metadata for the blog post below.\n\n")
	prompt.WriteString("**AVAILABLE CATEGORIES (use the numeric id):**\n")
	if len(categories) == 0 {
		prompt.WriteString("(none listed; use 1)\n")
	}
	for _, c := range categories {
		prompt.WriteString(fmt.Sprintf("- %d: %s\n", c.ID, c.Title))
	}

	prompt.WriteString("\n**POST:**\n")
	prompt.WriteString(draft)
	prompt.WriteString("\n")

	return prompt.String()
}
