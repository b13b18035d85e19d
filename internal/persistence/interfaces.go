// Package persistence provides the content store the pipeline reads context
// from and writes finished posts to.
package persistence

import (
	"context"

	"aiblog/internal/core"
)

// ContentStore is the blog's datastore as seen by the generation pipeline.
type ContentStore interface {
	// ListPostTitles returns every post title, newest first
	ListPostTitles(ctx context.Context) ([]string, error)

	// CategoryPostCounts returns post counts per category, least used first
	CategoryPostCounts(ctx context.Context) ([]core.CategoryCount, error)

	// ListCategories returns all categories ordered by id
	ListCategories(ctx context.Context) ([]core.Category, error)

	// ListToolNames returns tool names already featured by tool posts
	ListToolNames(ctx context.Context) ([]string, error)

	// InsertPost stores a new post. A slug collision returns false with a nil
	// error; any other failure returns false with the error.
	InsertPost(ctx context.Context, post *core.Post) (bool, error)

	// ListPosts returns posts newest first, filtered by kind
	ListPosts(ctx context.Context, filter PostFilter) ([]core.Post, error)

	// Close releases the connection pool
	Close() error
}

// PostFilter selects posts for listing.
type PostFilter struct {
	Kind  core.PostKind // Empty for all posts
	Limit int           // 0 means DefaultListLimit
}

// DefaultListLimit is used when a filter has no limit.
const DefaultListLimit = 50
