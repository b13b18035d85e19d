package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ImageResponse carries the first inline image of a response and any text
// the model returned alongside it.
type ImageResponse struct {
	Data     []byte
	MIMEType string
	Text     string
}

// GenerateImage asks the image model for TEXT and IMAGE modalities. When no
// image part comes back the returned error is ErrNoImage and the response
// still carries the model's text, which usually explains the refusal.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResponse, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  RoleUser,
	}}

	resp, err := c.generate(ctx, c.imageModel, contents, imageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	if err := inspect(resp); err != nil {
		return nil, err
	}

	return extractImage(resp)
}

func imageConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

func extractImage(resp *genai.GenerateContentResponse) (*ImageResponse, error) {
	out := &ImageResponse{}
	var texts []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && out.Data == nil {
				out.Data = part.InlineData.Data
				out.MIMEType = part.InlineData.MIMEType
				continue
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	if out.Data == nil {
		return out, ErrNoImage
	}
	return out, nil
}
