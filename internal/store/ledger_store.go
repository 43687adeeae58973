package store

import (
	"context"

	"coined/internal/models"

	"github.com/pkg/errors"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Insert appends one entry. Entries are never updated.
func (s *LedgerStore) Insert(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, actor_id, label, amount, direction, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.AccountID, entry.ActorID, entry.Label, entry.Amount, entry.Direction, entry.Category)
	if err != nil {
		return errors.Wrap(err, "insert ledger entry")
	}
	return nil
}

func (s *LedgerStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	rows := []models.LedgerEntry{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, actor_id, label, amount, direction, category, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger entries")
	}
	return rows, nil
}
