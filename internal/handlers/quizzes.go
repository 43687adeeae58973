package handlers

import (
	"net/http"

	"coined/internal/scoring"
	"coined/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	quizzes, err := h.quizzes.List(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	quiz, err := h.quizzes.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quiz)
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var in services.QuizInput
	if !decodeJSON(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.Create(r.Context(), caller, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var in services.QuizInput
	if !decodeJSON(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.Update(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quiz)
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.quizzes.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "quiz deleted"})
}

func (h *Handler) ToggleQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	active, err := h.quizzes.Toggle(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"active": active})
}

type submitRequest struct {
	Answers   scoring.Answers `json:"answers"`
	TimeTaken int             `json:"timeTaken"`
}

func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Answers == nil {
		respondError(w, http.StatusBadRequest, "invalid answers format")
		return
	}
	if req.TimeTaken < 0 {
		req.TimeTaken = 0
	}
	result, err := h.quizzes.Submit(r.Context(), services.SubmitRequest{
		QuizID:    chi.URLParam(r, "id"),
		AccountID: caller.AccountID,
		Answers:   req.Answers,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) MyAttempts(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	attempts, err := h.quizzes.MyAttempts(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, attempts)
}

func (h *Handler) QuizResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	results, err := h.quizzes.Results(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}
