package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"aiblog/internal/config"
	"aiblog/internal/deadline"
)

const (
	// DefaultModel is the default Gemini model for text generation.
	DefaultModel = "gemini-2.5-flash"
	// DefaultImageModel is the default Gemini model for cover images.
	DefaultImageModel = "gemini-2.0-flash-preview-image-generation"
	// DefaultTimeout bounds a single model call.
	DefaultTimeout = 120 * time.Second

	RoleUser  = "user"
	RoleModel = "model"
)

// Client wraps the Gemini SDK. It holds no conversation state; multi-turn
// calls thread a Conversation value through SendMessage.
type Client struct {
	apiKey        string
	modelName     string
	researchModel string
	imageModel    string
	maxTokens     int32
	temperature   float32
	timeout       time.Duration
	gClient       *genai.Client
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens         int32         // Maximum number of tokens to generate
	Temperature       float32       // Temperature for randomness (0.0 to 1.0)
	Model             string        // Model to use (optional, defaults to client's model)
	ResponseSchema    *genai.Schema // Optional: schema for structured JSON output
	SystemInstruction string        // Optional: system prompt
}

// NewClient creates a Gemini client from configuration.
func NewClient(cfg config.GeminiConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	gClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		apiKey:        cfg.APIKey,
		modelName:     cfg.Model,
		researchModel: cfg.ResearchModel,
		imageModel:    cfg.ImageModel,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		timeout:       config.Duration(cfg.Timeout, DefaultTimeout),
		gClient:       gClient,
	}
	if c.modelName == "" {
		c.modelName = DefaultModel
	}
	if c.researchModel == "" {
		c.researchModel = c.modelName
	}
	if c.imageModel == "" {
		c.imageModel = DefaultImageModel
	}
	return c, nil
}

// Close releases client resources. The genai client holds none today.
func (c *Client) Close() {}

// ModelName returns the default text model.
func (c *Client) ModelName() string {
	return c.modelName
}

// generate runs one GenerateContent call under the per-call budget.
func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return deadline.Get(ctx, c.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.gClient.Models.GenerateContent(ctx, model, contents, cfg)
	})
}

// GenerateText generates text using the LLM with specified options
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  RoleUser,
	}}

	resp, err := c.generate(ctx, modelName, contents, c.buildConfig(options))
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	return responseText(resp)
}

// buildConfig maps options onto a request config, falling back to the
// client's configured limits.
func (c *Client) buildConfig(options TextGenerationOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = maxTokens
	}

	temperature := options.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		config.Temperature = genai.Ptr(temperature)
	}

	if options.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = options.ResponseSchema
	}
	if options.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: options.SystemInstruction}},
		}
	}
	return config
}

// responseText extracts text from a response, classifying empty results.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if err := inspect(resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		if finishReason(resp) == genai.FinishReasonMaxTokens {
			return "", ErrMaxTokens
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}

// inspect reports safety blocks on the prompt or the first candidate.
func inspect(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: prompt blocked (%s)", ErrSafetyBlocked, resp.PromptFeedback.BlockReason)
	}
	switch finishReason(resp) {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return fmt.Errorf("%w: candidate finished with %s", ErrSafetyBlocked, finishReason(resp))
	}
	return nil
}

func finishReason(resp *genai.GenerateContentResponse) genai.FinishReason {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return resp.Candidates[0].FinishReason
}
