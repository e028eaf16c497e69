package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// maxJSONBody bounds request bodies of JSON endpoints
const maxJSONBody = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError writes the error body and logs failures that are not the caller's fault
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if middleware.StatusFor(err) >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("request failed")
	}
	middleware.WriteError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if err == io.EOF {
			return apperrors.NewValidationError("request body is required")
		}
		return apperrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// pathID reads a positive integer path parameter
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperrors.NewValidationError(name + " is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return v, nil
}

// queryInt reads an optional integer; absent yields def
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return v, nil
}
