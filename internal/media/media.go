// Package media stores post images under content-addressed keys.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// BlobStore persists an object and returns its storage URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Hasher produces a hex digest of data.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Upload errors callers can map to client responses.
var (
	ErrTooLarge        = errors.New("image exceeds upload limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmpty           = errors.New("image is empty")
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Config controls key layout and limits.
type Config struct {
	// Prefix is prepended to every key.
	Prefix string
	// PublicBaseURL, when set, replaces the storage URI in returned URLs.
	PublicBaseURL string
	// MaxBytes caps an upload; zero means 5 MiB.
	MaxBytes int64
}

// Uploader hashes, validates, and stores images.
type Uploader struct {
	store  BlobStore
	hasher Hasher
	cfg    Config
}

// NewUploader builds an Uploader.
func NewUploader(store BlobStore, hasher Hasher, cfg Config) (*Uploader, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &Uploader{store: store, hasher: hasher, cfg: cfg}, nil
}

// MaxBytes is the configured upload cap.
func (u *Uploader) MaxBytes() int64 {
	return u.cfg.MaxBytes
}

// Upload reads r, sniffs its type, and stores it under
// <prefix>/<hash[0:2]>/<hash><ext>. It returns the URL to record on the post.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.cfg.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > u.cfg.MaxBytes {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	sum, err := u.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash image: %w", err)
	}
	key := Key(u.cfg.Prefix, sum, ext)

	uri, err := u.store.PutObject(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	if u.cfg.PublicBaseURL != "" {
		return u.cfg.PublicBaseURL + "/" + key, nil
	}
	return uri, nil
}

// Key builds the object key for a digest.
func Key(prefix, sum, ext string) string {
	shard := sum
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(prefix, shard, sum+ext)
}
