package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"reviewq/internal/config"
	"reviewq/internal/ports"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ ports.ObjectStorage = (*Storage)(nil)

// Storage keeps task images in an S3-compatible bucket.
type Storage struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

// New connects to the configured MinIO server, creating the bucket if needed.
func New(ctx context.Context, cfg config.Storage) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{client: client, bucketName: cfg.BucketName, baseURL: baseURL(cfg)}, nil
}

func baseURL(cfg config.Storage) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.BucketName)
}

// Save uploads src under name and returns the object's URL.
func (s *Storage) Save(ctx context.Context, name string, src io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, name, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return objectURL(s.baseURL, name), nil
}

func objectURL(base, name string) string {
	return base + "/" + (&url.URL{Path: path.Clean(name)}).EscapedPath()
}
