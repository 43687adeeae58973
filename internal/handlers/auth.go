package handlers

import (
	"net/http"

	"coined/internal/auth"
	"coined/internal/models"
	"coined/internal/services"
)

type registerRequest struct {
	services.RegisterInput
	// Login is accepted as an alias for handle.
	Login string `json:"login"`
}

func (req registerRequest) input() services.RegisterInput {
	in := req.RegisterInput
	if in.Handle == "" {
		in.Handle = req.Login
	}
	return in
}

type authResponse struct {
	Token   string         `json:"token"`
	Account models.Account `json:"account"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.accounts.Register(r.Context(), req.input())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, account)
}

type loginRequest struct {
	services.LoginInput
	Login string `json:"login"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.LoginInput
	if in.Handle == "" {
		in.Handle = req.Login
	}
	account, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, account)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, account models.Account) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.ID, account.Role, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, status, authResponse{Token: token, Account: account})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), caller.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.accounts.CreateStudent(r.Context(), caller, req.input())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}
