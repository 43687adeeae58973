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

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ShopStore interface {
	Create(ctx context.Context, item models.ShopItem) error
	GetByID(ctx context.Context, itemID string) (models.ShopItem, error)
	ListActive(ctx context.Context) ([]models.ShopItem, error)
	Delete(ctx context.Context, itemID string) (int64, error)
}

type ShopService struct {
	txRunner db.TxRunner
	accounts AccountReader
	items    ShopStore
	ledger   Ledger
}

func NewShopService(txRunner db.TxRunner, accounts AccountReader, items ShopStore, ledger Ledger) *ShopService {
	return &ShopService{
		txRunner: txRunner,
		accounts: accounts,
		items:    items,
		ledger:   ledger,
	}
}

// Purchase spends the item's cost from the student's balance. Either the
// balance drops and one spend entry is written, or nothing changes.
func (s *ShopService) Purchase(ctx context.Context, itemID, accountID string) (AdjustmentResult, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return AdjustmentResult{}, orNotFound(err, "item not found")
	}
	if !item.Active {
		return AdjustmentResult{}, notFound("item not found")
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return AdjustmentResult{}, orNotFound(err, "account not found")
	}
	if !account.IsStudent() {
		return AdjustmentResult{}, ErrForbidden
	}

	var result AdjustmentResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.ledger.ApplyInTx(ctx, tx, AdjustmentRequest{
			AccountID: account.ID,
			Amount:    item.Cost,
			Direction: models.DirectionSpend,
			Label:     item.Name,
			Category:  models.CategoryShop,
		})
		return err
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	s.ledger.Announce(result, purchaseMessage(item, result.Account.Coins))
	return result, nil
}

func purchaseMessage(item models.ShopItem, balance int64) string {
	return fmt.Sprintf("🛍 *Purchase complete!*\n\n%s %s\n🪙 -%s coins\n💰 Balance: *%s coins*",
		item.Emoji, notify.EscapeMarkdown(item.Name), coins.Format(item.Cost), coins.Format(balance))
}

func (s *ShopService) List(ctx context.Context) ([]models.ShopItem, error) {
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ShopItem{}
	}
	return items, nil
}

type ShopItemInput struct {
	Name        string `json:"name" validate:"notblank,max=100" yaml:"name"`
	Cost        int64  `json:"cost" validate:"min=1" yaml:"cost"`
	Category    string `json:"category" validate:"omitempty,oneof='School Supplies' Snacks Academic Fun" yaml:"category"`
	Emoji       string `json:"emoji" validate:"max=16" yaml:"emoji"`
	Description string `json:"description" validate:"max=500" yaml:"description"`
	Tag         string `json:"tag" validate:"omitempty,oneof=NEW HOT" yaml:"tag"`
}

// NewShopItem validates input and builds an active catalog item.
func NewShopItem(in ShopItemInput, createdBy string) (models.ShopItem, error) {
	if err := validate(in); err != nil {
		return models.ShopItem{}, err
	}
	item := models.ShopItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Cost:        in.Cost,
		Category:    in.Category,
		Emoji:       in.Emoji,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if item.Category == "" {
		item.Category = models.ShopFun
	}
	if item.Emoji == "" {
		item.Emoji = "🎁"
	}
	if in.Tag != "" {
		tag := in.Tag
		item.Tag = &tag
	}
	if createdBy != "" {
		item.CreatedBy = &createdBy
	}
	return item, nil
}

func (s *ShopService) Create(ctx context.Context, teacher models.Identity, in ShopItemInput) (models.ShopItem, error) {
	if !teacher.IsTeacher() {
		return models.ShopItem{}, ErrForbidden
	}
	item, err := NewShopItem(in, teacher.AccountID)
	if err != nil {
		return models.ShopItem{}, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return models.ShopItem{}, err
	}
	return item, nil
}

func (s *ShopService) Delete(ctx context.Context, teacher models.Identity, itemID string) error {
	if !teacher.IsTeacher() {
		return ErrForbidden
	}
	n, err := s.items.Delete(ctx, itemID)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("item not found")
	}
	return nil
}
