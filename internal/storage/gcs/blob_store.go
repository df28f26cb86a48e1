// Package gcs stores uploaded post images in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// CacheControl is applied to every object; keys are content hashes so
	// objects never change once written.
	CacheControl string
}

// objectWriter is the slice of *storage.Writer the store needs.
type objectWriter interface {
	io.Writer
	Close() error
}

// BlobStore writes images to a configured GCS bucket.
type BlobStore struct {
	bucket       string
	cacheControl string
	newWriter    func(ctx context.Context, path, contentType, cacheControl string) objectWriter
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	bucket := client.Bucket(cfg.Bucket)
	return &BlobStore{
		bucket:       cfg.Bucket,
		cacheControl: cfg.CacheControl,
		newWriter: func(ctx context.Context, path, contentType, cacheControl string) objectWriter {
			w := bucket.Object(path).NewWriter(ctx)
			if contentType != "" {
				w.ContentType = contentType
			}
			if cacheControl != "" {
				w.CacheControl = cacheControl
			}
			return w
		},
	}, nil
}

// PublicURL is the https address of path when the bucket is publicly readable.
func (s *BlobStore) PublicURL(path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, path)
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.newWriter(ctx, path, contentType, s.cacheControl)
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
