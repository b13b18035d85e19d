package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"aiblog/internal/core"
)

// GroundingOptions controls a search-grounded call.
type GroundingOptions struct {
	Model       string
	Temperature float32
}

// GroundedResponse is the text of a grounded call plus whatever grounding
// metadata the model attached. Metadata is absent when the model answered
// from its own knowledge.
type GroundedResponse struct {
	Text            string
	Sources         []core.Source
	SearchQueries   []string
	RenderedContent string
}

// researchSafetySettings block medium-and-above for every category we screen.
var researchSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// GenerateGrounded issues one call with the Google Search tool enabled.
func (c *Client) GenerateGrounded(ctx context.Context, prompt string, options GroundingOptions) (*GroundedResponse, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	model := options.Model
	if model == "" {
		model = c.researchModel
	}

	cfg := groundedConfig(options)
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  RoleUser,
	}}

	resp, err := c.generate(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate grounded content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	out := &GroundedResponse{Text: text}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		applyGrounding(out, resp.Candidates[0].GroundingMetadata)
	}
	return out, nil
}

// groundedConfig enables the Google Search tool under the research safety
// settings.
func groundedConfig(options GroundingOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Tools:          []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		SafetySettings: researchSafetySettings,
	}
	if options.Temperature > 0 {
		cfg.Temperature = genai.Ptr(options.Temperature)
	}
	return cfg
}

// applyGrounding copies sources, queries and the search widget from metadata.
func applyGrounding(out *GroundedResponse, md *genai.GroundingMetadata) {
	if md == nil {
		return
	}
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out.Sources = append(out.Sources, core.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	out.SearchQueries = append(out.SearchQueries, md.WebSearchQueries...)
	if md.SearchEntryPoint != nil {
		out.RenderedContent = md.SearchEntryPoint.RenderedContent
	}
}
