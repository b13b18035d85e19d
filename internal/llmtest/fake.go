// Package llmtest provides a scripted stand-in for the Gemini client so stage
// and pipeline tests run without network access.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"aiblog/internal/llm"
)

// ErrUnscripted is returned by a Fake method that has no handler.
var ErrUnscripted = errors.New("llmtest: no scripted response")

// Fake implements every method the pipeline stages need from the LLM client.
// Handlers are optional; a nil handler returns ErrUnscripted.
type Fake struct {
	OnText     func(prompt string, opts llm.TextGenerationOptions) (string, error)
	OnGrounded func(prompt string, opts llm.GroundingOptions) (*llm.GroundedResponse, error)
	OnImage    func(prompt string) (*llm.ImageResponse, error)
	OnMessage  func(conv llm.Conversation, message string) (string, error)

	mu              sync.Mutex
	TextPrompts     []string
	TextOptions     []llm.TextGenerationOptions
	GroundedPrompts []string
	ImagePrompts    []string
	Messages        []string
}

// GenerateText records the prompt and delegates to OnText.
func (f *Fake) GenerateText(ctx context.Context, prompt string, opts llm.TextGenerationOptions) (string, error) {
	f.mu.Lock()
	f.TextPrompts = append(f.TextPrompts, prompt)
	f.TextOptions = append(f.TextOptions, opts)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.OnText == nil {
		return "", ErrUnscripted
	}
	return f.OnText(prompt, opts)
}

// GenerateGrounded records the prompt and delegates to OnGrounded.
func (f *Fake) GenerateGrounded(ctx context.Context, prompt string, opts llm.GroundingOptions) (*llm.GroundedResponse, error) {
	f.mu.Lock()
	f.GroundedPrompts = append(f.GroundedPrompts, prompt)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnGrounded == nil {
		return nil, ErrUnscripted
	}
	return f.OnGrounded(prompt, opts)
}

// GenerateImage records the prompt and delegates to OnImage.
func (f *Fake) GenerateImage(ctx context.Context, prompt string) (*llm.ImageResponse, error) {
	f.mu.Lock()
	f.ImagePrompts = append(f.ImagePrompts, prompt)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnImage == nil {
		return nil, ErrUnscripted
	}
	return f.OnImage(prompt)
}

// SendMessage mirrors the real client: on success the returned transcript
// carries both turns, on error the input transcript comes back unchanged.
func (f *Fake) SendMessage(ctx context.Context, conv llm.Conversation, message string, opts llm.TextGenerationOptions) (string, llm.Conversation, error) {
	f.mu.Lock()
	f.Messages = append(f.Messages, message)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", conv, err
	}
	if f.OnMessage == nil {
		return "", conv, ErrUnscripted
	}
	reply, err := f.OnMessage(conv, message)
	if err != nil {
		return "", conv, err
	}
	return reply, conv.Append(llm.RoleUser, message).Append(llm.RoleModel, reply), nil
}

// Counts returns the number of calls per method.
func (f *Fake) Counts() (text, grounded, image, messages int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.TextPrompts), len(f.GroundedPrompts), len(f.ImagePrompts), len(f.Messages)
}

// Sequence returns a handler that yields replies in order and repeats the
// last one once the script runs out.
func Sequence(replies ...string) func(string, llm.TextGenerationOptions) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(string, llm.TextGenerationOptions) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return "", ErrUnscripted
		}
		r := replies[i]
		if i < len(replies)-1 {
			i++
		}
		return r, nil
	}
}

// MessageSequence is Sequence for conversational replies.
func MessageSequence(replies ...string) func(llm.Conversation, string) (string, error) {
	next := Sequence(replies...)
	return func(llm.Conversation, string) (string, error) {
		return next("", llm.TextGenerationOptions{})
	}
}
