package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coined/internal/auth"
	"coined/internal/config"
	"coined/internal/models"
	"coined/internal/services"
	"coined/internal/store"
	"coined/internal/websocket"
)

type stubLookup struct {
	accounts map[string]models.Account
}

func (s stubLookup) GetByID(_ context.Context, accountID string) (models.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return account, nil
}

type stubAccountService struct {
	registerFn      func(ctx context.Context, in services.RegisterInput) (models.Account, error)
	createStudentFn func(ctx context.Context, teacher models.Identity, in services.RegisterInput) (models.Account, error)
	loginFn         func(ctx context.Context, in services.LoginInput) (models.Account, error)
	getFn           func(ctx context.Context, accountID string) (models.Account, error)
	listStudentsFn  func(ctx context.Context, requester models.Identity) ([]models.Account, error)
	getStudentFn    func(ctx context.Context, teacher models.Identity, studentID string) (models.Account, error)
	removeStudentFn func(ctx context.Context, teacher models.Identity, studentID string) error
	leaderboardFn   func(ctx context.Context, limit int) ([]services.LeaderboardEntry, error)
}

func (s stubAccountService) Register(ctx context.Context, in services.RegisterInput) (models.Account, error) {
	if s.registerFn == nil {
		return models.Account{}, nil
	}
	return s.registerFn(ctx, in)
}

func (s stubAccountService) CreateStudent(ctx context.Context, teacher models.Identity, in services.RegisterInput) (models.Account, error) {
	if s.createStudentFn == nil {
		return models.Account{}, nil
	}
	return s.createStudentFn(ctx, teacher, in)
}

func (s stubAccountService) Login(ctx context.Context, in services.LoginInput) (models.Account, error) {
	if s.loginFn == nil {
		return models.Account{}, services.ErrUnauthorized
	}
	return s.loginFn(ctx, in)
}

func (s stubAccountService) Get(ctx context.Context, accountID string) (models.Account, error) {
	if s.getFn == nil {
		return models.Account{ID: accountID}, nil
	}
	return s.getFn(ctx, accountID)
}

func (s stubAccountService) ListStudents(ctx context.Context, requester models.Identity) ([]models.Account, error) {
	if s.listStudentsFn == nil {
		return []models.Account{}, nil
	}
	return s.listStudentsFn(ctx, requester)
}

func (s stubAccountService) GetStudent(ctx context.Context, teacher models.Identity, studentID string) (models.Account, error) {
	if s.getStudentFn == nil {
		return models.Account{}, services.ErrNotFound
	}
	return s.getStudentFn(ctx, teacher, studentID)
}

func (s stubAccountService) RemoveStudent(ctx context.Context, teacher models.Identity, studentID string) error {
	if s.removeStudentFn == nil {
		return nil
	}
	return s.removeStudentFn(ctx, teacher, studentID)
}

func (s stubAccountService) Leaderboard(ctx context.Context, limit int) ([]services.LeaderboardEntry, error) {
	if s.leaderboardFn == nil {
		return []services.LeaderboardEntry{}, nil
	}
	return s.leaderboardFn(ctx, limit)
}

type stubLedgerService struct {
	applyFn     func(ctx context.Context, req services.AdjustmentRequest) (services.AdjustmentResult, error)
	listFn      func(ctx context.Context, requester models.Identity, accountID string, limit int) ([]models.LedgerEntry, error)
	reconcileFn func(ctx context.Context, requester models.Identity) ([]store.BalanceCheck, error)
	auditFn     func(ctx context.Context, teacher models.Identity, limit, offset int) ([]store.AuditLog, error)
}

func (s stubLedgerService) ApplyAdjustment(ctx context.Context, req services.AdjustmentRequest) (services.AdjustmentResult, error) {
	if s.applyFn == nil {
		return services.AdjustmentResult{}, nil
	}
	return s.applyFn(ctx, req)
}

func (s stubLedgerService) ListTransactions(ctx context.Context, requester models.Identity, accountID string, limit int) ([]models.LedgerEntry, error) {
	if s.listFn == nil {
		return []models.LedgerEntry{}, nil
	}
	return s.listFn(ctx, requester, accountID, limit)
}

func (s stubLedgerService) Reconcile(ctx context.Context, requester models.Identity) ([]store.BalanceCheck, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, requester)
}

func (s stubLedgerService) AuditTrail(ctx context.Context, teacher models.Identity, limit, offset int) ([]store.AuditLog, error) {
	if s.auditFn == nil {
		return []store.AuditLog{}, nil
	}
	return s.auditFn(ctx, teacher, limit, offset)
}

type stubQuizService struct {
	submitFn     func(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error)
	createFn     func(ctx context.Context, teacher models.Identity, in services.QuizInput) (models.Quiz, error)
	updateFn     func(ctx context.Context, teacher models.Identity, quizID string, in services.QuizInput) (models.Quiz, error)
	deleteFn     func(ctx context.Context, teacher models.Identity, quizID string) error
	toggleFn     func(ctx context.Context, teacher models.Identity, quizID string) (bool, error)
	getFn        func(ctx context.Context, requester models.Identity, quizID string) (services.QuizView, error)
	listFn       func(ctx context.Context, requester models.Identity) ([]services.QuizView, error)
	myAttemptsFn func(ctx context.Context, requester models.Identity) ([]store.AttemptWithQuiz, error)
	resultsFn    func(ctx context.Context, teacher models.Identity, quizID string) (services.QuizResults, error)
}

func (s stubQuizService) Submit(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error) {
	if s.submitFn == nil {
		return services.SubmitResult{}, nil
	}
	return s.submitFn(ctx, req)
}

func (s stubQuizService) Create(ctx context.Context, teacher models.Identity, in services.QuizInput) (models.Quiz, error) {
	if s.createFn == nil {
		return models.Quiz{}, nil
	}
	return s.createFn(ctx, teacher, in)
}

func (s stubQuizService) Update(ctx context.Context, teacher models.Identity, quizID string, in services.QuizInput) (models.Quiz, error) {
	if s.updateFn == nil {
		return models.Quiz{}, nil
	}
	return s.updateFn(ctx, teacher, quizID, in)
}

func (s stubQuizService) Delete(ctx context.Context, teacher models.Identity, quizID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, teacher, quizID)
}

func (s stubQuizService) Toggle(ctx context.Context, teacher models.Identity, quizID string) (bool, error) {
	if s.toggleFn == nil {
		return false, nil
	}
	return s.toggleFn(ctx, teacher, quizID)
}

func (s stubQuizService) Get(ctx context.Context, requester models.Identity, quizID string) (services.QuizView, error) {
	if s.getFn == nil {
		return services.QuizView{}, services.ErrNotFound
	}
	return s.getFn(ctx, requester, quizID)
}

func (s stubQuizService) List(ctx context.Context, requester models.Identity) ([]services.QuizView, error) {
	if s.listFn == nil {
		return []services.QuizView{}, nil
	}
	return s.listFn(ctx, requester)
}

func (s stubQuizService) MyAttempts(ctx context.Context, requester models.Identity) ([]store.AttemptWithQuiz, error) {
	if s.myAttemptsFn == nil {
		return []store.AttemptWithQuiz{}, nil
	}
	return s.myAttemptsFn(ctx, requester)
}

func (s stubQuizService) Results(ctx context.Context, teacher models.Identity, quizID string) (services.QuizResults, error) {
	if s.resultsFn == nil {
		return services.QuizResults{}, nil
	}
	return s.resultsFn(ctx, teacher, quizID)
}

type stubShopService struct {
	listFn     func(ctx context.Context) ([]models.ShopItem, error)
	createFn   func(ctx context.Context, teacher models.Identity, in services.ShopItemInput) (models.ShopItem, error)
	deleteFn   func(ctx context.Context, teacher models.Identity, itemID string) error
	purchaseFn func(ctx context.Context, itemID, accountID string) (services.AdjustmentResult, error)
}

func (s stubShopService) List(ctx context.Context) ([]models.ShopItem, error) {
	if s.listFn == nil {
		return []models.ShopItem{}, nil
	}
	return s.listFn(ctx)
}

func (s stubShopService) Create(ctx context.Context, teacher models.Identity, in services.ShopItemInput) (models.ShopItem, error) {
	if s.createFn == nil {
		return models.ShopItem{}, nil
	}
	return s.createFn(ctx, teacher, in)
}

func (s stubShopService) Delete(ctx context.Context, teacher models.Identity, itemID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, teacher, itemID)
}

func (s stubShopService) Purchase(ctx context.Context, itemID, accountID string) (services.AdjustmentResult, error) {
	if s.purchaseFn == nil {
		return services.AdjustmentResult{}, nil
	}
	return s.purchaseFn(ctx, itemID, accountID)
}

var (
	testTeacher = models.Account{ID: "t1", Handle: "johnson", Name: "Ms. Johnson", Role: models.RoleTeacher}
	testStudent = models.Account{ID: "s1", Handle: "alex", Name: "Alex", Role: models.RoleStudent, Coins: 120}
)

type testDeps struct {
	accounts stubAccountService
	ledger   stubLedgerService
	quizzes  stubQuizService
	shop     stubShopService
}

func newTestRouter(deps testDeps) http.Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	lookup := stubLookup{accounts: map[string]models.Account{
		testTeacher.ID: testTeacher,
		testStudent.ID: testStudent,
	}}
	return New(cfg, lookup, deps.accounts, deps.ledger, deps.quizzes, deps.shop, websocket.NewHub()).Routes()
}

func tokenFor(t *testing.T, account models.Account) string {
	t.Helper()
	token, err := auth.GenerateToken("secret", account.ID, account.Role, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// do sends a request through the router; a nil caller sends no token.
func do(t *testing.T, router http.Handler, method, path string, body any, caller *models.Account) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *caller))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rr.Body.String())
	}
}
