package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/berez-app/berez/backend/internal/domain/providers"
)

type imageUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore keeps photos as Cloudinary image assets
type CloudinaryStore struct {
	upload    imageUploader
	cloudName string
	folder    string
}

var _ providers.BlobStore = (*CloudinaryStore)(nil)

// NewCloudinaryStore connects with a cloudinary:// URL and stores assets under folder
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("cloudinary URL is required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryStore{upload: &cld.Upload, cloudName: cld.Config.Cloud.CloudName, folder: folder}, nil
}

// publicID drops the extension; Cloudinary adds the format itself
func (s *CloudinaryStore) publicID(key string) string {
	return path.Join(s.folder, strings.TrimSuffix(key, path.Ext(key)))
}

// Put uploads body as an image asset named after key
func (s *CloudinaryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	overwrite := false
	_, err := s.upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:     s.publicID(key),
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	return nil
}

// Delete destroys the asset
func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	_, err := s.upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.publicID(key),
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// URLFor returns the HTTPS delivery URL of the asset
func (s *CloudinaryStore) URLFor(key string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s%s", s.cloudName, s.publicID(key), path.Ext(key))
}
