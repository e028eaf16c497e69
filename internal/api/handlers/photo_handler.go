package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// multipartOverhead is the room left for form fields and boundaries above the file size limit
const multipartOverhead = 1 << 20

// PhotoHandler handles photo uploads and downloads
type PhotoHandler struct {
	manager  *services.FountainManager
	maxSize  int64
	localDir string
}

// NewPhotoHandler creates a new photo handler. localDir is set when uploads are kept on local disk.
func NewPhotoHandler(manager *services.FountainManager, maxSize int64, localDir string) *PhotoHandler {
	if maxSize <= 0 {
		maxSize = entities.MaxPhotoSize
	}
	return &PhotoHandler{manager: manager, maxSize: maxSize, localDir: localDir}
}

// UploadPhoto handles POST /photos/upload (multipart: file, fountain_id, review_id)
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, r, apperrors.NewValidationError("file exceeds maximum size"))
			return
		}
		respondWithError(w, r, apperrors.NewValidationError("invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, r, apperrors.NewValidationError("file is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxSize {
		respondWithError(w, r, apperrors.NewValidationError("file exceeds maximum size"))
		return
	}

	upload := entities.PhotoUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	if upload.FountainID, err = formID(r, "fountain_id"); err != nil {
		respondWithError(w, r, err)
		return
	}
	if upload.ReviewID, err = formID(r, "review_id"); err != nil {
		respondWithError(w, r, err)
		return
	}

	photo, err := h.manager.UploadPhoto(r.Context(), upload, file, middleware.UserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, photo)
}

func formID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid " + name)
	}
	return &id, nil
}

// GetPhoto handles GET /photos/{id}
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	photo, err := h.manager.GetPhoto(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, photo)
}

// ServeUpload handles GET /uploads/{key} for the local blob store
func (h *PhotoHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if h.localDir == "" || key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		respondWithError(w, r, apperrors.NewNotFoundError("file not found"))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, filepath.Join(h.localDir, key))
}
