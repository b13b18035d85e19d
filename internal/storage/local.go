package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"aiblog/internal/logger"
)

// LocalBucket writes objects to a directory; useful for development and dry runs.
type LocalBucket struct {
	dir           string
	publicBaseURL string
}

// NewLocalBucket creates the directory if needed.
func NewLocalBucket(dir, publicBaseURL string) (*LocalBucket, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", abs, err)
	}
	return &LocalBucket{dir: abs, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (b *LocalBucket) path(key string) (string, error) {
	p := filepath.Join(b.dir, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if !strings.HasPrefix(p, b.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage directory", key)
	}
	return p, nil
}

// Upload writes (or overwrites) the file for key.
func (b *LocalBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	logger.Debug("Stored object locally", "path", p, "bytes", len(data), "content_type", contentType)
	return nil
}

// PublicURL returns <public_base_url>/<key>, or a file URL when no base is set.
func (b *LocalBucket) PublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	if b.publicBaseURL != "" {
		return b.publicBaseURL + "/" + key
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(b.dir, key))}).String()
}
