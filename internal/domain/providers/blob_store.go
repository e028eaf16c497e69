package providers

import (
	"context"
	"io"
)

// BlobStore persists uploaded file bytes under opaque keys
type BlobStore interface {
	// Put writes size bytes from body under key
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// URLFor returns the address clients fetch key from
	URLFor(key string) string
}
