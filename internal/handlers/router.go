package handlers

import (
	"net/http"
	"strings"

	"coined/internal/config"
	"coined/internal/middleware"
	"coined/internal/models"
	"coined/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	lookup   middleware.AccountLookup
	accounts AccountService
	ledger   LedgerService
	quizzes  QuizService
	shop     ShopService
	hub      *websocket.Hub
}

func New(cfg config.Config, lookup middleware.AccountLookup, accounts AccountService, ledger LedgerService, quizzes QuizService, shop ShopService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:      cfg,
		lookup:   lookup,
		accounts: accounts,
		ledger:   ledger,
		quizzes:  quizzes,
		shop:     shop,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret, h.lookup)
	teacher := middleware.RequireRole(models.RoleTeacher)
	student := middleware.RequireRole(models.RoleStudent)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
		r.With(authenticated, teacher).Post("/students", h.CreateStudent)
	})

	router.Route("/students", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.ListStudents)
		r.With(teacher).Get("/{id}", h.GetStudent)
		r.With(teacher).Delete("/{id}", h.DeleteStudent)
		r.With(teacher).Post("/{id}/coins", h.AdjustCoins)
		r.Get("/{id}/transactions", h.ListTransactions)
	})
	router.With(authenticated, teacher).Get("/reconcile", h.Reconcile)
	router.With(authenticated, teacher).Get("/audit", h.AuditTrail)
	router.Get("/leaderboard", h.Leaderboard)

	router.Route("/shop", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.ListShop)
		r.With(teacher).Post("/", h.CreateShopItem)
		r.With(teacher).Delete("/{id}", h.DeleteShopItem)
		r.With(student).Post("/{id}/buy", h.Purchase)
	})

	router.Route("/quizzes", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.ListQuizzes)
		r.With(teacher).Post("/", h.CreateQuiz)
		r.With(student).Get("/my-attempts", h.MyAttempts)
		r.Get("/{id}", h.GetQuiz)
		r.With(teacher).Put("/{id}", h.UpdateQuiz)
		r.With(teacher).Delete("/{id}", h.DeleteQuiz)
		r.With(teacher).Patch("/{id}/toggle", h.ToggleQuiz)
		r.With(student).Post("/{id}/submit", h.SubmitQuiz)
		r.With(teacher).Get("/{id}/results", h.QuizResults)
	})

	router.Get("/ws/balances", h.WSBalances)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
