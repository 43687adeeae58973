package services

import (
	"context"
	"sync"

	"coined/internal/models"
	"coined/internal/store"
	"coined/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memBank is an in-memory account table and ledger. Its tx runner holds a
// lock for the whole transaction and restores a snapshot when fn fails, so
// tests observe serialized, all-or-nothing changes.
type memBank struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	accounts map[string]models.Account
	entries  []models.LedgerEntry
	attempts map[string]models.QuizAttempt
}

func newMemBank(accounts ...models.Account) *memBank {
	b := &memBank{accounts: map[string]models.Account{}, attempts: map[string]models.QuizAttempt{}}
	for _, account := range accounts {
		b.accounts[account.ID] = account
	}
	return b
}

func (b *memBank) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	b.mu.Lock()
	accounts := make(map[string]models.Account, len(b.accounts))
	for id, account := range b.accounts {
		accounts[id] = account
	}
	entries := append([]models.LedgerEntry(nil), b.entries...)
	attempts := make(map[string]models.QuizAttempt, len(b.attempts))
	for key, attempt := range b.attempts {
		attempts[key] = attempt
	}
	b.mu.Unlock()

	if err := fn(nil); err != nil {
		b.mu.Lock()
		b.accounts, b.entries, b.attempts = accounts, entries, attempts
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *memBank) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[accountID]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (b *memBank) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error) {
	return b.GetByID(ctx, accountID)
}

func (b *memBank) AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account := b.accounts[accountID]
	if account.Coins+delta < 0 {
		return 0, store.ErrBalanceGuard
	}
	account.Coins += delta
	b.accounts[accountID] = account
	return account.Coins, nil
}

func (b *memBank) Reconcile(ctx context.Context) ([]store.BalanceCheck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rows []store.BalanceCheck
	for _, account := range b.accounts {
		var sum int64
		for _, entry := range b.entries {
			if entry.AccountID == account.ID {
				sum += entry.Amount
			}
		}
		rows = append(rows, store.BalanceCheck{
			AccountID: account.ID, Handle: account.Handle,
			StoredBalance: account.Coins, CalculatedBalance: sum, Difference: account.Coins - sum,
		})
	}
	return rows, nil
}

func (b *memBank) Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	return nil
}

func (b *memBank) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rows []models.LedgerEntry
	for i := len(b.entries) - 1; i >= 0 && len(rows) < limit; i-- {
		if b.entries[i].AccountID == accountID {
			rows = append(rows, b.entries[i])
		}
	}
	return rows, nil
}

func (b *memBank) balance(accountID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[accountID].Coins
}

func (b *memBank) ledger() []models.LedgerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.LedgerEntry(nil), b.entries...)
}

// memAttempts stores attempts in the bank so they roll back with it.
type memAttempts struct {
	bank *memBank
}

func (m memAttempts) Insert(ctx context.Context, tx store.Execer, attempt models.QuizAttempt) error {
	m.bank.mu.Lock()
	defer m.bank.mu.Unlock()
	key := attempt.QuizID + "/" + attempt.AccountID
	if _, ok := m.bank.attempts[key]; ok {
		return uniqueViolation(store.AttemptUniqueConstraint)
	}
	m.bank.attempts[key] = attempt
	return nil
}

func (m memAttempts) Get(ctx context.Context, quizID, accountID string) (models.QuizAttempt, error) {
	m.bank.mu.Lock()
	defer m.bank.mu.Unlock()
	attempt, ok := m.bank.attempts[quizID+"/"+accountID]
	if !ok {
		return models.QuizAttempt{}, store.ErrNotFound
	}
	return attempt, nil
}

func (m memAttempts) ListByAccount(ctx context.Context, accountID string) ([]store.AttemptWithQuiz, error) {
	return nil, nil
}

func (m memAttempts) ListByQuiz(ctx context.Context, quizID string) ([]store.AttemptResult, error) {
	return nil, nil
}

type stubAudit struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
	listFn func(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAudit) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error) {
	if s.listFn == nil {
		return []store.AuditLog{}, nil
	}
	return s.listFn(ctx, actorID, limit, offset)
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(accountID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

type recordingNotifier struct {
	mu       sync.Mutex
	chats    []string
	messages []string
}

func (n *recordingNotifier) Notify(chatID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, chatID)
	n.messages = append(n.messages, text)
}

type stubQuizStore struct {
	createFn        func(ctx context.Context, quiz models.Quiz) error
	updateFn        func(ctx context.Context, quiz models.Quiz) (int64, error)
	deleteFn        func(ctx context.Context, quizID, teacherID string) (int64, error)
	toggleFn        func(ctx context.Context, quizID, teacherID string) (bool, error)
	getByIDFn       func(ctx context.Context, quizID string) (models.Quiz, error)
	listByTeacherFn func(ctx context.Context, teacherID string) ([]models.Quiz, error)
	listActiveFn    func(ctx context.Context, accountID string) ([]store.QuizListing, error)
}

func (s stubQuizStore) Create(ctx context.Context, quiz models.Quiz) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, quiz)
}

func (s stubQuizStore) Update(ctx context.Context, quiz models.Quiz) (int64, error) {
	if s.updateFn == nil {
		return 1, nil
	}
	return s.updateFn(ctx, quiz)
}

func (s stubQuizStore) Delete(ctx context.Context, quizID, teacherID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, quizID, teacherID)
}

func (s stubQuizStore) Toggle(ctx context.Context, quizID, teacherID string) (bool, error) {
	if s.toggleFn == nil {
		return false, nil
	}
	return s.toggleFn(ctx, quizID, teacherID)
}

func (s stubQuizStore) GetByID(ctx context.Context, quizID string) (models.Quiz, error) {
	if s.getByIDFn == nil {
		return models.Quiz{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, quizID)
}

func (s stubQuizStore) ListByTeacher(ctx context.Context, teacherID string) ([]models.Quiz, error) {
	if s.listByTeacherFn == nil {
		return nil, nil
	}
	return s.listByTeacherFn(ctx, teacherID)
}

func (s stubQuizStore) ListActive(ctx context.Context, accountID string) ([]store.QuizListing, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx, accountID)
}

type stubAttemptStore struct {
	insertFn        func(ctx context.Context, tx store.Execer, attempt models.QuizAttempt) error
	getFn           func(ctx context.Context, quizID, accountID string) (models.QuizAttempt, error)
	listByAccountFn func(ctx context.Context, accountID string) ([]store.AttemptWithQuiz, error)
	listByQuizFn    func(ctx context.Context, quizID string) ([]store.AttemptResult, error)
}

func (s stubAttemptStore) Insert(ctx context.Context, tx store.Execer, attempt models.QuizAttempt) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, attempt)
}

func (s stubAttemptStore) Get(ctx context.Context, quizID, accountID string) (models.QuizAttempt, error) {
	if s.getFn == nil {
		return models.QuizAttempt{}, store.ErrNotFound
	}
	return s.getFn(ctx, quizID, accountID)
}

func (s stubAttemptStore) ListByAccount(ctx context.Context, accountID string) ([]store.AttemptWithQuiz, error) {
	if s.listByAccountFn == nil {
		return nil, nil
	}
	return s.listByAccountFn(ctx, accountID)
}

func (s stubAttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]store.AttemptResult, error) {
	if s.listByQuizFn == nil {
		return nil, nil
	}
	return s.listByQuizFn(ctx, quizID)
}

type stubShopStore struct {
	createFn     func(ctx context.Context, item models.ShopItem) error
	getByIDFn    func(ctx context.Context, itemID string) (models.ShopItem, error)
	listActiveFn func(ctx context.Context) ([]models.ShopItem, error)
	deleteFn     func(ctx context.Context, itemID string) (int64, error)
}

func (s stubShopStore) Create(ctx context.Context, item models.ShopItem) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, item)
}

func (s stubShopStore) GetByID(ctx context.Context, itemID string) (models.ShopItem, error) {
	if s.getByIDFn == nil {
		return models.ShopItem{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, itemID)
}

func (s stubShopStore) ListActive(ctx context.Context) ([]models.ShopItem, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

func (s stubShopStore) Delete(ctx context.Context, itemID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, itemID)
}

type stubAccountStore struct {
	createFn       func(ctx context.Context, tx store.Execer, account models.Account) error
	getByIDFn      func(ctx context.Context, accountID string) (models.Account, error)
	getByHandleFn  func(ctx context.Context, handle string) (models.Account, error)
	getByEmailFn   func(ctx context.Context, email string) (models.Account, error)
	getByChatIDFn  func(ctx context.Context, chatID string) (models.Account, error)
	listStudentsFn func(ctx context.Context, teacherID *string) ([]models.Account, error)
	leaderboardFn  func(ctx context.Context, limit int) ([]models.Account, error)
	rankFn         func(ctx context.Context, coins int64) (int, error)
	deleteFn       func(ctx context.Context, tx store.Execer, accountID string) (int64, error)
	linkChatFn     func(ctx context.Context, accountID, chatID string) error
	unlinkChatFn   func(ctx context.Context, chatID string) (int64, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, account models.Account) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, account)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByHandle(ctx context.Context, handle string) (models.Account, error) {
	if s.getByHandleFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByHandleFn(ctx, handle)
}

func (s stubAccountStore) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	if s.getByEmailFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubAccountStore) GetByChatID(ctx context.Context, chatID string) (models.Account, error) {
	if s.getByChatIDFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByChatIDFn(ctx, chatID)
}

func (s stubAccountStore) ListStudents(ctx context.Context, teacherID *string) ([]models.Account, error) {
	if s.listStudentsFn == nil {
		return nil, nil
	}
	return s.listStudentsFn(ctx, teacherID)
}

func (s stubAccountStore) Leaderboard(ctx context.Context, limit int) ([]models.Account, error) {
	if s.leaderboardFn == nil {
		return nil, nil
	}
	return s.leaderboardFn(ctx, limit)
}

func (s stubAccountStore) Rank(ctx context.Context, coins int64) (int, error) {
	if s.rankFn == nil {
		return 1, nil
	}
	return s.rankFn(ctx, coins)
}

func (s stubAccountStore) Delete(ctx context.Context, tx store.Execer, accountID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, tx, accountID)
}

func (s stubAccountStore) LinkChat(ctx context.Context, accountID, chatID string) error {
	if s.linkChatFn == nil {
		return nil
	}
	return s.linkChatFn(ctx, accountID, chatID)
}

func (s stubAccountStore) UnlinkChat(ctx context.Context, chatID string) (int64, error) {
	if s.unlinkChatFn == nil {
		return 0, nil
	}
	return s.unlinkChatFn(ctx, chatID)
}

func student(id string, balance int64) models.Account {
	return models.Account{ID: id, Handle: id, Name: "Student " + id, Role: models.RoleStudent, Coins: balance}
}

func teacherIdentity(id string) models.Identity {
	return models.Identity{AccountID: id, Role: models.RoleTeacher}
}

func studentIdentity(id string) models.Identity {
	return models.Identity{AccountID: id, Role: models.RoleStudent}
}

func strPtr(s string) *string { return &s }

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}
