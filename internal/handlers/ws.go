package handlers

import (
	"net/http"
	"strings"

	"coined/internal/auth"
	"coined/internal/websocket"
)

// WSBalances streams live balance updates. The token comes from the query
// string or a bearer header.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if _, err := h.lookup.GetByID(r.Context(), claims.AccountID()); err != nil {
		respondError(w, http.StatusUnauthorized, "account not found")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.AccountID())
}
