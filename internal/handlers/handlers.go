package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"coined/internal/middleware"
	"coined/internal/models"
	"coined/internal/services"

	"github.com/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError is the single place service errors become HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var submitted *services.AlreadySubmittedError
	switch {
	case errors.As(err, &submitted):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":   err.Error(),
			"attempt": submitted.Attempt,
		})
	case errors.Is(err, services.ErrInvalidInput):
		payload := map[string]any{"error": err.Error()}
		if fields := services.FieldErrors(err); len(fields) > 0 {
			payload["fields"] = fields
		}
		respondJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

// identity reads the caller set by middleware.Auth; false means the 401 was
// already written.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return models.Identity{}, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
