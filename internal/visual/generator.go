// Package visual generates cover images for posts and stores them in object storage.
package visual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/storage"
	"aiblog/internal/textutil"
)

// DefaultStyle is appended to every image prompt.
const DefaultStyle = "Modern editorial illustration, clean composition, 16:9 aspect ratio, no text, no logos, no watermarks."

// LLMClient defines the LLM operations needed by the image generator
type LLMClient interface {
	GenerateImage(ctx context.Context, prompt string) (*llm.ImageResponse, error)
}

// Generator produces a cover image and returns its public URL.
type Generator struct {
	llmClient LLMClient
	bucket    storage.Bucket
	style     string
	now       func() time.Time
	log       *slog.Logger
}

// NewGenerator creates an image generator that uploads into bucket.
func NewGenerator(llmClient LLMClient, bucket storage.Bucket) *Generator {
	return &Generator{
		llmClient: llmClient,
		bucket:    bucket,
		style:     DefaultStyle,
		now:       time.Now,
		log:       logger.Get().With("stage", "image"),
	}
}

// Generate returns the public URL of the uploaded image, or "" when no image
// could be produced or stored. It never fails the caller.
func (g *Generator) Generate(ctx context.Context, prompt, title string) (url string) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Image generation panicked", "panic", fmt.Sprint(r))
			url = ""
		}
	}()

	if strings.TrimSpace(prompt) == "" {
		g.log.Warn("No image prompt, skipping cover image")
		return ""
	}

	resp, err := g.llmClient.GenerateImage(ctx, buildPrompt(prompt, g.style))
	if err != nil {
		if errors.Is(err, llm.ErrNoImage) && resp != nil && resp.Text != "" {
			g.log.Warn("Image model returned no image", "explanation", textutil.Truncate(resp.Text, 500))
		} else {
			g.log.Warn("Image generation failed", "error", err.Error())
		}
		return ""
	}
	if resp == nil || len(resp.Data) == 0 {
		g.log.Warn("Image model returned no image data")
		return ""
	}

	key := textutil.ImageFilename(title, g.now(), textutil.ExtensionForMIME(resp.MIMEType))
	contentType := resp.MIMEType
	if contentType == "" {
		contentType = "image/png"
	}

	if err := g.bucket.Upload(ctx, key, resp.Data, contentType); err != nil {
		g.log.Warn("Image upload failed", "key", key, "error", err.Error())
		return ""
	}

	url = g.bucket.PublicURL(key)
	g.log.Info("Cover image stored", "key", key, "bytes", len(resp.Data), "url", url)
	return url
}

func buildPrompt(prompt, style string) string {
	prompt = strings.TrimSpace(prompt)
	if style == "" {
		return prompt
	}
	return prompt + "\n\nStyle: " + style
}
