// Package storage keeps product images on the local filesystem or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/agrimart/internal"
)

// Storage defines file storage operations.
type Storage interface {
	// Put stores content under key and returns its public URL.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Get returns a reader the caller must close.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for key.
	URL(key string) string

	Exists(ctx context.Context, key string) (bool, error)
}

// imageTypes maps accepted upload content types to file extensions.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageExtension returns the extension for an accepted image content type.
func ImageExtension(contentType string) (string, bool) {
	ext, ok := imageTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// ProductImageKey builds a unique key for a product image upload.
func ProductImageKey(productID, ext string) string {
	return path.Join("products", productID, uuid.NewString()+ext)
}

// NewStorage creates the backend named by cfg.Provider.
func NewStorage(ctx context.Context, cfg internal.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "r2":
		return NewR2Storage(ctx, R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
			PublicURL:   cfg.R2PublicURL,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}
