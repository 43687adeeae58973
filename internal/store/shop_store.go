package store

import (
	"context"

	"coined/internal/models"

	"github.com/pkg/errors"
)

const shopColumns = `id, name, cost, category, emoji, description, tag, active, created_by, created_at`

type ShopStore struct {
	db DB
}

func NewShopStore(db DB) *ShopStore {
	return &ShopStore{db: db}
}

func (s *ShopStore) Create(ctx context.Context, item models.ShopItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shop_items (id, name, cost, category, emoji, description, tag, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Name, item.Cost, item.Category, item.Emoji, item.Description, item.Tag, item.Active, item.CreatedBy)
	if err != nil {
		return errors.Wrap(err, "insert shop item")
	}
	return nil
}

func (s *ShopStore) GetByID(ctx context.Context, itemID string) (models.ShopItem, error) {
	var row models.ShopItem
	if err := s.db.GetContext(ctx, &row, `SELECT `+shopColumns+` FROM shop_items WHERE id = $1`, itemID); err != nil {
		return models.ShopItem{}, wrapGet(err, "get shop item")
	}
	return row, nil
}

func (s *ShopStore) ListActive(ctx context.Context) ([]models.ShopItem, error) {
	rows := []models.ShopItem{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+shopColumns+`
		FROM shop_items
		WHERE active = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list shop items")
	}
	return rows, nil
}

func (s *ShopStore) Delete(ctx context.Context, itemID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shop_items WHERE id = $1`, itemID)
	if err != nil {
		return 0, errors.Wrap(err, "delete shop item")
	}
	return res.RowsAffected()
}

// ExistsByName is used by the seeder to stay idempotent.
func (s *ShopStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM shop_items WHERE name = $1)`, name)
	if err != nil {
		return false, errors.Wrap(err, "check shop item")
	}
	return exists, nil
}
