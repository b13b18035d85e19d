package pipeline

import (
	"context"
	"fmt"

	"aiblog/internal/config"
	"aiblog/internal/draft"
	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/markdown"
	"aiblog/internal/metadata"
	"aiblog/internal/metrics"
	"aiblog/internal/outline"
	"aiblog/internal/persistence"
	"aiblog/internal/refine"
	"aiblog/internal/research"
	"aiblog/internal/storage"
	"aiblog/internal/topic"
	"aiblog/internal/trends"
	"aiblog/internal/visual"
)

var _ TrendRefresher = (*trends.Aggregator)(nil)

// Builder helps construct a fully configured Pipeline from application config.
// Anything not supplied through a With method is created from the config.
type Builder struct {
	cfg       *config.Config
	llmClient LLMClient
	store     persistence.ContentStore
	bucket    storage.Bucket
	trends    TrendSource
	metrics   *metrics.Metrics
	maxPoints int
	noImages  bool
}

// NewBuilder creates a new pipeline builder
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, maxPoints: cfg.Research.MaxPoints}
}

// WithLLMClient sets the LLM client
func (b *Builder) WithLLMClient(client LLMClient) *Builder {
	b.llmClient = client
	return b
}

// WithStore sets the content store
func (b *Builder) WithStore(store persistence.ContentStore) *Builder {
	b.store = store
	return b
}

// WithBucket sets the object storage used for cover images
func (b *Builder) WithBucket(bucket storage.Bucket) *Builder {
	b.bucket = bucket
	return b
}

// WithTrendSource sets the trend source
func (b *Builder) WithTrendSource(source TrendSource) *Builder {
	b.trends = source
	return b
}

// WithMetrics sets the metrics collectors
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// WithMaxPoints caps the number of researched outline points. 0 researches all.
func (b *Builder) WithMaxPoints(n int) *Builder {
	b.maxPoints = n
	return b
}

// WithoutImages disables cover image generation
func (b *Builder) WithoutImages() *Builder {
	b.noImages = true
	return b
}

// Build creates the pipeline. The content store is opened last so a failure
// earlier never leaks a connection.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	client := b.llmClient
	if client == nil {
		c, err := llm.NewClient(b.cfg.AI.Gemini)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		logger.Get().Info("Gemini client ready", "model", c.ModelName())
		client = c
	}

	var images ImageGenerator
	if !b.noImages {
		bucket := b.bucket
		if bucket == nil {
			bk, err := storage.New(ctx, b.cfg.Storage)
			if err != nil {
				return nil, fmt.Errorf("failed to create image storage: %w", err)
			}
			bucket = bk
		}
		images = visual.NewGenerator(client, bucket)
	}

	source := b.trends
	if source == nil {
		source = trends.NewAggregator(b.cfg.Trends)
	}

	store := b.store
	if store == nil {
		s, err := persistence.Open(ctx, b.cfg.Store, b.cfg.Pipeline.ToolCategory)
		if err != nil {
			return nil, fmt.Errorf("failed to open content store: %w", err)
		}
		store = s
	}

	components := Components{
		Trends:   source,
		Topics:   topic.NewSelector(client),
		Outline:  outline.NewGenerator(client),
		Research: research.NewResearcher(client, b.maxPoints),
		Draft:    draft.NewGenerator(client),
		Refine:   refine.NewLoop(client, b.cfg.Refine.SatisfactionThreshold),
		Polish:   refine.NewPolisher(client),
		Metadata: metadata.NewExtractor(client, b.cfg.Metadata.MaxDraftChars, b.cfg.Metadata.WordsPerMinute),
		Markdown: markdown.NewValidator(client),
		Images:   images,
		Store:    store,
		Metrics:  b.metrics,
	}

	return New(components, &Config{
		StageTimeout: config.Duration(b.cfg.Pipeline.StageTimeout, DefaultConfig().StageTimeout),
		Author:       b.cfg.App.Author,
		ToolCategory: b.cfg.Pipeline.ToolCategory,
	})
}
