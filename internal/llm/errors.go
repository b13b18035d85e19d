package llm

import "errors"

var (
	// ErrMissingAPIKey is returned when no Gemini key is configured.
	ErrMissingAPIKey = errors.New("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrSafetyBlocked is returned when the prompt or the candidate was blocked.
	ErrSafetyBlocked = errors.New("response blocked by safety filters")
	// ErrMaxTokens is returned when output was cut off before any text arrived.
	ErrMaxTokens = errors.New("response truncated at max output tokens")
	// ErrNoImage is returned when an image call returned no inline image data.
	ErrNoImage = errors.New("no image data in response")
)
