package handlers

import (
	"net/http"

	"coined/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListShop(w http.ResponseWriter, r *http.Request) {
	items, err := h.shop.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateShopItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var in services.ShopItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	item, err := h.shop.Create(r.Context(), caller, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) DeleteShopItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.shop.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	result, err := h.shop.Purchase(r.Context(), chi.URLParam(r, "id"), caller.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
