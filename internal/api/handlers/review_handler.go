package handlers

import (
	"net/http"

	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// ReviewHandler handles review and report requests
type ReviewHandler struct {
	manager *services.FountainManager
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(manager *services.FountainManager) *ReviewHandler {
	return &ReviewHandler{manager: manager}
}

type submitReviewRequest struct {
	FountainID int64 `json:"fountain_id"`
	entities.ReviewInput
}

// SubmitReview handles POST /review
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.FountainID <= 0 {
		respondWithError(w, r, apperrors.NewValidationError("fountain_id is required"))
		return
	}

	review, err := h.manager.SubmitReview(r.Context(), req.FountainID, req.ReviewInput, middleware.UserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

// ListReviews handles GET /fountains/{id}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	reviews, err := h.manager.ListReviews(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

type submitReportRequest struct {
	FountainID int64 `json:"fountain_id"`
	entities.ReportInput
}

// SubmitReport handles POST /fountains/report
func (h *ReviewHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req submitReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.FountainID <= 0 {
		respondWithError(w, r, apperrors.NewValidationError("fountain_id is required"))
		return
	}

	report, err := h.manager.SubmitReport(r.Context(), req.FountainID, req.ReportInput, middleware.UserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, report)
}

// ListReports handles GET /fountains/{id}/reports
func (h *ReviewHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	reports, err := h.manager.ListReports(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reports)
}

// ResolveReport handles PUT /reports/{id}/status
func (h *ReviewHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	status, err := entities.ParseReportStatus(req.Status)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	report, err := h.manager.ResolveReport(r.Context(), id, status)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
