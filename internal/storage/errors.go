package storage

import (
	"fmt"

	"github.com/dukerupert/agrimart/internal/domain"
)

var (
	ErrR2AccountIDRequired   = domain.Invalid("storage.r2", "R2 account ID is required")
	ErrR2CredentialsRequired = domain.Invalid("storage.r2", "R2 credentials are required")
	ErrBucketRequired        = domain.Invalid("storage.s3", "bucket name is required")

	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = domain.Invalid("storage.key", "invalid storage key")
)

// ErrFileNotFound creates an error for a missing key.
func ErrFileNotFound(key string) error {
	return domain.NotFound("storage.get", "file", key)
}

// ErrUnknownProvider creates an error for unknown storage providers.
func ErrUnknownProvider(provider string) error {
	return domain.Invalid("storage.new", fmt.Sprintf("unknown storage provider: %s", provider))
}
