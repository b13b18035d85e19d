// Package topic asks the model to choose what the next post is about.
package topic

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

const maxLoggedPayload = 2000

// LLMClient defines the LLM operations needed by the topic selector
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Input is everything the selector weighs when choosing a topic.
type Input struct {
	TrendContext   string
	ExistingTitles []string
	CategoryCounts []core.CategoryCount // ascending by count
}

// ToolInput is the input for an "AI Tool of the Day" selection.
type ToolInput struct {
	TrendContext  string
	UsedToolNames []string
}

// Selector picks one topic per run.
type Selector struct {
	llmClient LLMClient
	log       *slog.Logger
}

// NewSelector creates a topic selector
func NewSelector(llmClient LLMClient) *Selector {
	return &Selector{
		llmClient: llmClient,
		log:       logger.Get().With("stage", "topic"),
	}
}

// Select issues one structured call and parses the chosen topic. Every
// failure is terminal for the run.
func (s *Selector) Select(ctx context.Context, in Input) (core.TopicSelection, error) {
	raw, err := s.llmClient.GenerateText(ctx, buildTopicPrompt(in), llm.TextGenerationOptions{
		ResponseSchema: topicSchema(false),
		Temperature:    0.9,
	})
	if err != nil {
		return core.TopicSelection{}, fmt.Errorf("topic selection failed: %w", err)
	}

	selection, err := parse.ParseTopicSelection(raw)
	if err != nil {
		s.log.Warn("Unparseable topic selection", "error", err.Error(), "raw", textutil.Truncate(raw, maxLoggedPayload))
		return core.TopicSelection{}, err
	}

	s.log.Info("Topic selected", "title", selection.Title, "queries", len(selection.SearchQueries))
	return selection, nil
}

// SelectTool picks an AI tool not featured before and returns the topic plus
// the tool name.
func (s *Selector) SelectTool(ctx context.Context, in ToolInput) (core.TopicSelection, string, error) {
	raw, err := s.llmClient.GenerateText(ctx, buildToolPrompt(in), llm.TextGenerationOptions{
		ResponseSchema: topicSchema(true),
		Temperature:    0.9,
	})
	if err != nil {
		return core.TopicSelection{}, "", fmt.Errorf("tool selection failed: %w", err)
	}

	selection, tool, err := parse.ParseToolSelection(raw)
	if err != nil {
		s.log.Warn("Unparseable tool selection", "error", err.Error(), "raw", textutil.Truncate(raw, maxLoggedPayload))
		return core.TopicSelection{}, "", err
	}

	for _, used := range in.UsedToolNames {
		if strings.EqualFold(strings.TrimSpace(used), tool) {
			return core.TopicSelection{}, "", &parse.ParseError{
				Contract: parse.ContractTool,
				Reason:   fmt.Sprintf("tool %q was already featured", tool),
				Raw:      raw,
			}
		}
	}

	s.log.Info("Tool selected", "tool", tool, "title", selection.Title)
	return selection, tool, nil
}

func topicSchema(withTool bool) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Working title for the blog post",
			},
			"hook_description": {
				Type:        genai.TypeString,
				Description: "One paragraph describing the angle and why readers should care",
			},
			"search_queries": {
				Type:        genai.TypeArray,
				Description: "3-5 web search queries for researching the post",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"title", "hook_description", "search_queries"},
	}
	if withTool {
		schema.Properties["tool_name"] = &genai.Schema{
			Type:        genai.TypeString,
			Description: "Exact product name of the featured AI tool",
		}
		schema.Required = append(schema.Required, "tool_name")
	}
	return schema
}

func buildTopicPrompt(in Input) string {
	var prompt strings.Builder

	prompt.WriteString("You are the editor of a technology blog for curious, non-specialist readers. ")
	prompt.WriteString("Pick ONE topic for today's post.\n\n")

	prompt.WriteString("**CURRENT TECH TRENDS:**\n")
	if strings.TrimSpace(in.TrendContext) == "" {
		prompt.WriteString("(no trend data available today; rely on your own knowledge of recent developments)\n")
	} else {
		prompt.WriteString(in.TrendContext)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	if len(in.CategoryCounts) > 0 {
		prompt.WriteString("**CATEGORY COVERAGE (fewest posts first, prefer under-covered categories):**\n")
		for _, c := range in.CategoryCounts {
			prompt.WriteString(fmt.Sprintf("- %s: %d posts\n", c.Title, c.Count))
		}
		prompt.WriteString("\n")
	}

	if len(in.ExistingTitles) > 0 {
		prompt.WriteString("**ALREADY PUBLISHED (do not repeat these topics or close variants):**\n")
		for _, t := range in.ExistingTitles {
			prompt.WriteString("- " + t + "\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("**REQUIREMENTS:**\n")
	prompt.WriteString("- The topic must be timely, specific and explainable to a general audience\n")
	prompt.WriteString("- The title should be catchy but honest, no clickbait numbers\n")
	prompt.WriteString("- hook_description explains the angle in 2-3 sentences\n")
	prompt.WriteString("- search_queries are concrete queries a researcher would type into a search engine\n")

	return prompt.String()
}

func buildToolPrompt(in ToolInput) string {
	var prompt strings.Builder

	prompt.WriteString("You write the \"AI Tool of the Day\" column for a technology blog. ")
	prompt.WriteString("Pick ONE real, publicly available AI tool to feature today.\n\n")

	if strings.TrimSpace(in.TrendContext) != "" {
		prompt.WriteString("**CURRENT TECH TRENDS:**\n")
		prompt.WriteString(in.TrendContext)
		prompt.WriteString("\n\n")
	}

	if len(in.UsedToolNames) > 0 {
		prompt.WriteString("**ALREADY FEATURED (never pick these again):**\n")
		for _, t := range in.UsedToolNames {
			prompt.WriteString("- " + t + "\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("**REQUIREMENTS:**\n")
	prompt.WriteString("- tool_name is the product's exact name\n")
	prompt.WriteString("- title presents the tool and what it does\n")
	prompt.WriteString("- hook_description says who should try it and why\n")
	prompt.WriteString("- search_queries cover features, pricing and real-world use\n")

	return prompt.String()
}
