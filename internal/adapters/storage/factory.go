package storage

import (
	"context"
	"fmt"

	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/pkg/config"
)

// NewBlobStore builds the blob store selected by cfg.Driver
func NewBlobStore(ctx context.Context, cfg *config.StorageConfig) (providers.BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			KeyPrefix:  "photos/",
			PresignTTL: cfg.S3PresignTTL,
		})
	case "cloudinary":
		return NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryPath)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
