package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coined/internal/coins"
	"coined/internal/db"
	"coined/internal/models"
	"coined/internal/notify"
	"coined/internal/store"
	"coined/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 100
)

type LedgerAccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error)
	Reconcile(ctx context.Context) ([]store.BalanceCheck, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error)
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

type Notifier interface {
	Notify(chatID, text string)
}

// LedgerService owns every balance change. Each change writes exactly one
// ledger entry in the same transaction as the balance update.
type LedgerService struct {
	txRunner db.TxRunner
	accounts LedgerAccountStore
	ledger   LedgerStore
	audit    AuditStore
	hub      BalanceHub
	notifier Notifier
}

func NewLedgerService(txRunner db.TxRunner, accounts LedgerAccountStore, ledger LedgerStore, audit AuditStore, hub BalanceHub, notifier Notifier) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		accounts: accounts,
		ledger:   ledger,
		audit:    audit,
		hub:      hub,
		notifier: notifier,
	}
}

type AdjustmentRequest struct {
	AccountID string
	Amount    int64
	Direction string
	Label     string
	Category  string
	// ActorID is the teacher behind the change; empty for system credits.
	ActorID string
}

type AdjustmentResult struct {
	Account models.Account     `json:"account"`
	Entry   models.LedgerEntry `json:"ledger_entry"`
}

var ledgerCategories = map[string]bool{
	models.CategoryHomework: true,
	models.CategoryBehavior: true,
	models.CategoryReward:   true,
	models.CategoryShop:     true,
	models.CategoryQuiz:     true,
	models.CategoryOther:    true,
}

func normalizeAdjustment(req AdjustmentRequest) (AdjustmentRequest, error) {
	if req.Amount <= 0 {
		return req, invalid("amount must be a positive whole number")
	}
	if req.Direction != models.DirectionEarn && req.Direction != models.DirectionSpend {
		return req, invalid("type must be earn or spend")
	}
	if req.Category == "" {
		req.Category = models.CategoryBehavior
		if req.ActorID == "" {
			req.Category = models.CategoryOther
		}
	}
	if !ledgerCategories[req.Category] {
		return req, invalid("unknown category")
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		req.Label = "Teacher Bonus"
		if req.Direction == models.DirectionSpend {
			req.Label = "Teacher Deduction"
		}
	}
	return req, nil
}

// ApplyAdjustment changes one student's balance in its own transaction and
// announces the result after commit.
func (s *LedgerService) ApplyAdjustment(ctx context.Context, req AdjustmentRequest) (AdjustmentResult, error) {
	req, err := normalizeAdjustment(req)
	if err != nil {
		return AdjustmentResult{}, err
	}
	var result AdjustmentResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.ApplyInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	s.Announce(result, adjustmentMessage(result))
	return result, nil
}

// ApplyInTx runs the adjustment inside a caller-owned transaction. The caller
// announces after its own commit.
func (s *LedgerService) ApplyInTx(ctx context.Context, tx store.Tx, req AdjustmentRequest) (AdjustmentResult, error) {
	req, err := normalizeAdjustment(req)
	if err != nil {
		return AdjustmentResult{}, err
	}
	account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
	if err != nil {
		return AdjustmentResult{}, orNotFound(err, "student not found")
	}
	if !account.IsStudent() {
		return AdjustmentResult{}, notFound("student not found")
	}
	if req.ActorID != "" && !account.ManagedBy(req.ActorID) {
		return AdjustmentResult{}, notFound("student not found")
	}

	delta := req.Amount
	if req.Direction == models.DirectionSpend {
		if req.Amount > account.Coins {
			return AdjustmentResult{}, ErrInsufficientBalance
		}
		delta = -req.Amount
	}
	balance, err := s.accounts.AdjustBalance(ctx, tx, account.ID, delta)
	if errors.Is(err, store.ErrBalanceGuard) {
		return AdjustmentResult{}, ErrInsufficientBalance
	}
	if err != nil {
		return AdjustmentResult{}, err
	}

	entry := models.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Label:     req.Label,
		Amount:    delta,
		Direction: req.Direction,
		Category:  req.Category,
		CreatedAt: time.Now().UTC(),
	}
	if req.ActorID != "" {
		actor := req.ActorID
		entry.ActorID = &actor
	}
	if err := s.ledger.Insert(ctx, tx, entry); err != nil {
		return AdjustmentResult{}, err
	}
	if req.ActorID != "" {
		err := s.audit.Log(ctx, tx, req.ActorID, "adjust_coins", "account", account.ID, map[string]any{
			"entry_id":  entry.ID,
			"amount":    delta,
			"direction": req.Direction,
			"label":     req.Label,
			"category":  req.Category,
			"balance":   balance,
		})
		if err != nil {
			return AdjustmentResult{}, err
		}
	}
	account.Coins = balance
	return AdjustmentResult{Account: account, Entry: entry}, nil
}

// Announce pushes a committed change to the account's sockets and, when a
// chat is linked, to the notifier. It never blocks on delivery.
func (s *LedgerService) Announce(result AdjustmentResult, message string) {
	if s.hub != nil {
		s.hub.BroadcastBalance(result.Account.ID, websocket.BalanceUpdate{
			AccountID: result.Account.ID,
			Balance:   result.Account.Coins,
			Level:     coins.LevelFor(result.Account.Coins).Name,
			Delta:     result.Entry.Amount,
			Label:     result.Entry.Label,
		})
	}
	if s.notifier != nil && result.Account.ChatID != nil && message != "" {
		s.notifier.Notify(*result.Account.ChatID, message)
	}
}

// ListTransactions returns an account's ledger, newest first. Students only
// see their own history; teachers see the students they manage.
func (s *LedgerService) ListTransactions(ctx context.Context, requester models.Identity, accountID string, limit int) ([]models.LedgerEntry, error) {
	if requester.AccountID != accountID {
		if !requester.IsTeacher() {
			return nil, ErrForbidden
		}
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, orNotFound(err, "student not found")
		}
		if !account.IsStudent() || !account.ManagedBy(requester.AccountID) {
			return nil, notFound("student not found")
		}
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	rows, err := s.ledger.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.LedgerEntry{}
	}
	return rows, nil
}

func (s *LedgerService) Reconcile(ctx context.Context, requester models.Identity) ([]store.BalanceCheck, error) {
	if !requester.IsTeacher() {
		return nil, ErrForbidden
	}
	return s.accounts.Reconcile(ctx)
}

// AuditTrail lists the requesting teacher's own recorded actions.
func (s *LedgerService) AuditTrail(ctx context.Context, teacher models.Identity, limit, offset int) ([]store.AuditLog, error) {
	if !teacher.IsTeacher() {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.audit.ListByActor(ctx, teacher.AccountID, limit, offset)
}

func adjustmentMessage(result AdjustmentResult) string {
	balance := coins.Format(result.Account.Coins)
	if result.Entry.Amount < 0 {
		return fmt.Sprintf("💸 *%s coins*\n\n📝 %s\n💰 Balance: *%s coins*",
			coins.Format(result.Entry.Amount), notify.EscapeMarkdown(result.Entry.Label), balance)
	}
	return fmt.Sprintf("🪙 *+%s coins!*\n\n📝 %s\n💰 Balance: *%s coins*",
		coins.Format(result.Entry.Amount), notify.EscapeMarkdown(result.Entry.Label), balance)
}
