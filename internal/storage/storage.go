// Package storage uploads generated assets to object storage and resolves
// their public URLs.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aiblog/internal/config"
)

// DefaultUploadTimeout bounds a single upload.
const DefaultUploadTimeout = 60 * time.Second

// Bucket is an upsert-only object store with public URLs.
type Bucket interface {
	// Upload writes data under key, replacing any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// PublicURL resolves the URL readers use to fetch key.
	PublicURL(key string) string
}

// New creates the bucket selected by cfg.Provider.
func New(ctx context.Context, cfg config.Storage) (Bucket, error) {
	switch cfg.Provider {
	case "s3", "":
		return NewS3Bucket(ctx, cfg)
	case "local":
		return NewLocalBucket(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimPrefix(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
