package entities

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// MaxPhotoSize is the largest accepted upload in bytes
const MaxPhotoSize int64 = 10 * 1024 * 1024

var allowedPhotoExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Photo is the metadata of an uploaded image. The bytes live in the blob store under Filename.
type Photo struct {
	ID               int64     `json:"photo_id" db:"id"`
	Filename         string    `json:"filename" db:"filename"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	ContentType      string    `json:"content_type" db:"content_type"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	UserID           *int64    `json:"user_id,omitempty" db:"user_id"`
	FountainID       *int64    `json:"fountain_id,omitempty" db:"fountain_id"`
	ReviewID         *int64    `json:"review_id,omitempty" db:"review_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	URL              string    `json:"url" db:"-"`
}

// PhotoUpload describes an incoming file before it is stored
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	FountainID  *int64
	ReviewID    *int64
}

// PhotoExtension returns the lowercased extension of name if it is allowed
func PhotoExtension(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedPhotoExtensions[ext]; !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("file type %q is not allowed", ext))
	}
	return ext, nil
}

// ValidatePhotoUpload checks the extension allow-list and the size bound
func ValidatePhotoUpload(u PhotoUpload, maxSize int64) (string, error) {
	ext, err := PhotoExtension(u.Filename)
	if err != nil {
		return "", err
	}
	if u.Size <= 0 {
		return "", apperrors.NewValidationError("file is empty")
	}
	if u.Size > maxSize {
		return "", apperrors.NewValidationError(fmt.Sprintf("file exceeds maximum size of %d bytes", maxSize))
	}
	return ext, nil
}

// ContentTypeFor returns the declared content type if present, else the one implied by the extension
func ContentTypeFor(declared, ext string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return allowedPhotoExtensions[ext]
}
