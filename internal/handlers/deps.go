package handlers

import (
	"context"

	"coined/internal/models"
	"coined/internal/services"
	"coined/internal/store"
)

type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (models.Account, error)
	CreateStudent(ctx context.Context, teacher models.Identity, in services.RegisterInput) (models.Account, error)
	Login(ctx context.Context, in services.LoginInput) (models.Account, error)
	Get(ctx context.Context, accountID string) (models.Account, error)
	ListStudents(ctx context.Context, requester models.Identity) ([]models.Account, error)
	GetStudent(ctx context.Context, teacher models.Identity, studentID string) (models.Account, error)
	RemoveStudent(ctx context.Context, teacher models.Identity, studentID string) error
	Leaderboard(ctx context.Context, limit int) ([]services.LeaderboardEntry, error)
}

type LedgerService interface {
	ApplyAdjustment(ctx context.Context, req services.AdjustmentRequest) (services.AdjustmentResult, error)
	ListTransactions(ctx context.Context, requester models.Identity, accountID string, limit int) ([]models.LedgerEntry, error)
	Reconcile(ctx context.Context, requester models.Identity) ([]store.BalanceCheck, error)
	AuditTrail(ctx context.Context, teacher models.Identity, limit, offset int) ([]store.AuditLog, error)
}

type QuizService interface {
	Submit(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error)
	Create(ctx context.Context, teacher models.Identity, in services.QuizInput) (models.Quiz, error)
	Update(ctx context.Context, teacher models.Identity, quizID string, in services.QuizInput) (models.Quiz, error)
	Delete(ctx context.Context, teacher models.Identity, quizID string) error
	Toggle(ctx context.Context, teacher models.Identity, quizID string) (bool, error)
	Get(ctx context.Context, requester models.Identity, quizID string) (services.QuizView, error)
	List(ctx context.Context, requester models.Identity) ([]services.QuizView, error)
	MyAttempts(ctx context.Context, requester models.Identity) ([]store.AttemptWithQuiz, error)
	Results(ctx context.Context, teacher models.Identity, quizID string) (services.QuizResults, error)
}

type ShopService interface {
	List(ctx context.Context) ([]models.ShopItem, error)
	Create(ctx context.Context, teacher models.Identity, in services.ShopItemInput) (models.ShopItem, error)
	Delete(ctx context.Context, teacher models.Identity, itemID string) error
	Purchase(ctx context.Context, itemID, accountID string) (services.AdjustmentResult, error)
}
