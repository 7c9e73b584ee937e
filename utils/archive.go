// utils/archive.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores finished match replays.
type Archiver interface {
	PutReplay(ctx context.Context, key string, body []byte) (string, error)
}

// ArchiveConfig points at any S3 compatible bucket (S3, R2, MinIO).
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string // empty for AWS S3
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	PublicBaseURL   string
}

// ArchiveConfigFromEnv reads the ARCHIVE_* variables. ok is false when no
// bucket is configured.
func ArchiveConfigFromEnv() (cfg ArchiveConfig, ok bool) {
	cfg = ArchiveConfig{
		Bucket:          GetEnvDefault("ARCHIVE_BUCKET", ""),
		Endpoint:        GetEnvDefault("ARCHIVE_ENDPOINT", ""),
		Region:          GetEnvDefault("ARCHIVE_REGION", "auto"),
		AccessKeyID:     GetEnvDefault("ARCHIVE_ACCESS_KEY_ID", ""),
		AccessKeySecret: GetEnvDefault("ARCHIVE_ACCESS_KEY_SECRET", ""),
		PublicBaseURL:   GetEnvDefault("ARCHIVE_PUBLIC_URL", ""),
	}
	return cfg, cfg.Bucket != ""
}

// S3Archive writes replays as JSON objects.
type S3Archive struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Archive(ctx context.Context, cfg ArchiveConfig) (*S3Archive, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Archive{client: client, bucket: cfg.Bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// PutReplay uploads body under key and returns its URL.
func (a *S3Archive) PutReplay(ctx context.Context, key string, body []byte) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload replay: %w", err)
	}
	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}
