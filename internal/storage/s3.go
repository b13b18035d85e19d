package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"aiblog/internal/config"
	"aiblog/internal/deadline"
	"aiblog/internal/logger"
)

// putObjectAPI is the slice of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Bucket stores objects in an S3-compatible bucket (AWS, Supabase, MinIO).
type S3Bucket struct {
	client        putObjectAPI
	bucket        string
	prefix        string
	region        string
	endpoint      string
	publicBaseURL string
	timeout       time.Duration
	log           *slog.Logger
}

// NewS3Bucket creates an S3 bucket client. Static credentials are used when
// both keys are configured, otherwise the default AWS credential chain.
func NewS3Bucket(ctx context.Context, cfg config.Storage) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	b := newS3Bucket(s3.NewFromConfig(awsCfg, s3Opts...), cfg)
	b.log.Info("S3 storage initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return b, nil
}

func newS3Bucket(client putObjectAPI, cfg config.Storage) *S3Bucket {
	return &S3Bucket{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		region:        cfg.Region,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout:       DefaultUploadTimeout,
		log:           logger.Get().With("component", "storage", "provider", "s3"),
	}
}

// Upload puts the object. PutObject overwrites, which gives upsert semantics.
func (b *S3Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	fullKey := joinKey(b.prefix, key)
	err := deadline.Run(ctx, b.timeout, func(ctx context.Context) error {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(fullKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fullKey, err)
	}

	b.log.Debug("Uploaded object", "key", fullKey, "bytes", len(data), "content_type", contentType)
	return nil
}

// PublicURL returns <public_base_url>/<bucket>/<key> when a public base URL
// is configured, the path-style endpoint URL for custom endpoints, and the
// virtual-hosted AWS URL otherwise.
func (b *S3Bucket) PublicURL(key string) string {
	fullKey := joinKey(b.prefix, key)
	switch {
	case b.publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.bucket, fullKey)
	case b.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, fullKey)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, fullKey)
	}
}
