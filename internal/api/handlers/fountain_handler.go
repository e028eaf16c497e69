package handlers

import (
	"net/http"

	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// FountainHandler handles fountain-related HTTP requests
type FountainHandler struct {
	manager *services.FountainManager
}

// NewFountainHandler creates a new fountain handler
func NewFountainHandler(manager *services.FountainManager) *FountainHandler {
	return &FountainHandler{manager: manager}
}

// GetFountain handles GET /fountains/{id}
func (h *FountainHandler) GetFountain(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	f, err := h.manager.GetFountain(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, f)
}

// FindNearest handles GET /fountains/nearest?longitude=&latitude=&limit=
func (h *FountainHandler) FindNearest(w http.ResponseWriter, r *http.Request) {
	lon, err := queryFloat(r, "longitude")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	lat, err := queryFloat(r, "latitude")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultNearestLimit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	res, err := h.manager.FindNearest(r.Context(), lon, lat, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// SearchFountains handles GET /fountains/search?q=&limit=
func (h *FountainHandler) SearchFountains(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", services.DefaultSearchLimit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	fountains, err := h.manager.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": fountains,
		"count": len(fountains),
	})
}

// CreateFountain handles POST /fountains, the operator path that may carry an explicit id
func (h *FountainHandler) CreateFountain(w http.ResponseWriter, r *http.Request) {
	var in entities.FountainInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}
	f, err := h.manager.CreateFountain(r.Context(), in, nil)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, f)
}

// SubmitFountain handles POST /fountains/submit. Submissions always get a fresh id and stay
// marked as user submitted, also when anonymous.
func (h *FountainHandler) SubmitFountain(w http.ResponseWriter, r *http.Request) {
	var in entities.FountainInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}
	in.ID = nil
	in.Status = entities.FountainStatusUserSubmitted

	f, err := h.manager.CreateFountain(r.Context(), in, middleware.UserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, f)
}

type updateFountainResponse struct {
	Fountain      *entities.Fountain `json:"fountain"`
	ChangedFields []string           `json:"changed_fields"`
	Message       string             `json:"message"`
}

// UpdateFountain handles PUT /fountains/{id}
func (h *FountainHandler) UpdateFountain(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var in entities.FountainInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}

	f, changed, err := h.manager.UpdateFountain(r.Context(), id, in)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	resp := updateFountainResponse{Fountain: f, ChangedFields: changed, Message: "fountain updated"}
	if len(changed) == 0 {
		resp.ChangedFields = []string{}
		resp.Message = "no changes detected"
	}
	respondWithJSON(w, http.StatusOK, resp)
}
