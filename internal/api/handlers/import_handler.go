package handlers

import (
	"net/http"

	"github.com/berez-app/berez/backend/internal/adapters/feed"
	"github.com/berez-app/berez/backend/internal/application/services"
)

// maxFeedBody bounds uploaded feed files
const maxFeedBody = 32 << 20

// ImportHandler loads municipal feed files
type ImportHandler struct {
	manager *services.FountainManager
}

// NewImportHandler creates a new import handler
func NewImportHandler(manager *services.FountainManager) *ImportHandler {
	return &ImportHandler{manager: manager}
}

// Import handles POST /admin/import. The format comes from ?format= or the Content-Type.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	format := feed.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = feed.FormatFromName(r.Header.Get("Content-Type"))
	}

	rows, err := feed.Read(http.MaxBytesReader(w, r.Body, maxFeedBody), format)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.manager.ImportFromFeed(r.Context(), rows)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
