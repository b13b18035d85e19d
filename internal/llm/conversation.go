package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"` // RoleUser or RoleModel
	Text string `json:"text"`
}

// Conversation is an immutable chat transcript. Each SendMessage returns the
// extended transcript so callers can replay or record it.
type Conversation struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// NewConversation starts a transcript with a system instruction.
func NewConversation(system string) Conversation {
	return Conversation{System: system}
}

// Append returns a copy of the conversation with one more message.
func (c Conversation) Append(role, text string) Conversation {
	msgs := make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(msgs, c.Messages)
	return Conversation{System: c.System, Messages: append(msgs, Message{Role: role, Text: text})}
}

// Len returns the number of messages.
func (c Conversation) Len() int {
	return len(c.Messages)
}

// Contents converts the transcript into SDK contents.
func (c Conversation) Contents() []*genai.Content {
	contents := make([]*genai.Content, 0, len(c.Messages))
	for _, m := range c.Messages {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: m.Text}},
			Role:  m.Role,
		})
	}
	return contents
}

// SendMessage sends message on top of conv and returns the reply together
// with the transcript extended by both turns. On error conv is returned
// unchanged.
func (c *Client) SendMessage(ctx context.Context, conv Conversation, message string, options TextGenerationOptions) (string, Conversation, error) {
	if message == "" {
		return "", conv, fmt.Errorf("message cannot be empty")
	}

	model := c.modelName
	if options.Model != "" {
		model = options.Model
	}
	if options.SystemInstruction == "" {
		options.SystemInstruction = conv.System
	}

	next := conv.Append(RoleUser, message)
	resp, err := c.generate(ctx, model, next.Contents(), c.buildConfig(options))
	if err != nil {
		return "", conv, fmt.Errorf("failed to send message: %w", err)
	}

	reply, err := responseText(resp)
	if err != nil {
		return "", conv, err
	}

	return reply, next.Append(RoleModel, reply), nil
}
