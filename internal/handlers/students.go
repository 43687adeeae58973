package handlers

import (
	"net/http"

	"coined/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	students, err := h.accounts.ListStudents(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	student, err := h.accounts.GetStudent(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, student)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.accounts.RemoveStudent(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "student removed"})
}

type adjustCoinsRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction"`
	// Type is the older name for direction.
	Type     string `json:"type"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

func (h *Handler) AdjustCoins(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req adjustCoinsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseCoins(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	direction := req.Direction
	if direction == "" {
		direction = req.Type
	}
	result, err := h.ledger.ApplyAdjustment(r.Context(), services.AdjustmentRequest{
		AccountID: chi.URLParam(r, "id"),
		Amount:    amount,
		Direction: direction,
		Label:     req.Label,
		Category:  req.Category,
		ActorID:   caller.AccountID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.ListTransactions(r.Context(), caller, chi.URLParam(r, "id"), queryInt(r, "limit", 100))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	rows, err := h.ledger.Reconcile(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	mismatched := 0
	for _, row := range rows {
		if row.Difference != 0 {
			mismatched++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts":   rows,
		"mismatched": mismatched,
	})
}

func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	rows, err := h.ledger.AuditTrail(r.Context(), caller, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.accounts.Leaderboard(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
