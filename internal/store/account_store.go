package store

import (
	"context"
	"database/sql"

	"coined/internal/models"

	"github.com/pkg/errors"
)

// ErrBalanceGuard is returned when a balance change would take coins below zero.
var ErrBalanceGuard = errors.New("balance would become negative")

const (
	AccountHandleConstraint = "accounts_handle_key"
	AccountEmailConstraint  = "accounts_email_key"
	AccountChatConstraint   = "accounts_chat_id_key"
)

const accountColumns = `id, handle, email, name, password_hash, role, class_label, avatar, color, coins, chat_id, teacher_id, created_at, updated_at`

type AccountStore struct {
	db DB
}

// BalanceCheck compares a stored balance with the sum of its ledger.
type BalanceCheck struct {
	AccountID         string `db:"account_id" json:"account_id"`
	Handle            string `db:"handle" json:"handle"`
	StoredBalance     int64  `db:"stored_balance" json:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance" json:"calculated_balance"`
	Difference        int64  `db:"difference" json:"difference"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, handle, email, name, password_hash, role, class_label, avatar, color, coins, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
	`, account.ID, account.Handle, account.Email, account.Name, account.PasswordHash, account.Role,
		account.ClassLabel, account.Avatar, account.Color, account.TeacherID)
	if err != nil {
		return errors.Wrap(err, "insert account")
	}
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	return s.getOne(ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
}

func (s *AccountStore) GetByHandle(ctx context.Context, handle string) (models.Account, error) {
	return s.getOne(ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE handle = $1`, handle)
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	return s.getOne(ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (s *AccountStore) GetByChatID(ctx context.Context, chatID string) (models.Account, error) {
	return s.getOne(ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE chat_id = $1 AND role = 'student'`, chatID)
}

// GetForUpdate locks the account row until the surrounding transaction ends.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	return s.getOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
}

// AdjustBalance applies delta and returns the new balance. The update is
// refused by the WHERE clause when the result would be negative.
func (s *AccountStore) AdjustBalance(ctx context.Context, tx Getter, accountID string, delta int64) (int64, error) {
	var coins int64
	err := tx.GetContext(ctx, &coins, `
		UPDATE accounts
		SET coins = coins + $1, updated_at = NOW()
		WHERE id = $2 AND coins + $1 >= 0
		RETURNING coins
	`, delta, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBalanceGuard
	}
	if err != nil {
		return 0, errors.Wrap(err, "adjust balance")
	}
	return coins, nil
}

// ListStudents returns students ordered by coins. A non-nil teacherID limits
// the result to that teacher's students.
func (s *AccountStore) ListStudents(ctx context.Context, teacherID *string) ([]models.Account, error) {
	var rows []models.Account
	var err error
	if teacherID != nil {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+accountColumns+`
			FROM accounts
			WHERE role = 'student' AND teacher_id = $1
			ORDER BY coins DESC, name
		`, *teacherID)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+accountColumns+`
			FROM accounts
			WHERE role = 'student'
			ORDER BY coins DESC, name
		`)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	return rows, nil
}

func (s *AccountStore) Leaderboard(ctx context.Context, limit int) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'student'
		ORDER BY coins DESC, name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "leaderboard")
	}
	return rows, nil
}

// Rank is one plus the number of students holding more coins.
func (s *AccountStore) Rank(ctx context.Context, coins int64) (int, error) {
	var ahead int
	err := s.db.GetContext(ctx, &ahead, `
		SELECT COUNT(*) FROM accounts WHERE role = 'student' AND coins > $1
	`, coins)
	if err != nil {
		return 0, errors.Wrap(err, "rank")
	}
	return ahead + 1, nil
}

// Delete removes the account. Ledger entries and quiz attempts go with it
// through ON DELETE CASCADE.
func (s *AccountStore) Delete(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return 0, errors.Wrap(err, "delete account")
	}
	return res.RowsAffected()
}

func (s *AccountStore) LinkChat(ctx context.Context, accountID, chatID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET chat_id = $1, updated_at = NOW() WHERE id = $2
	`, chatID, accountID)
	if err != nil {
		return errors.Wrap(err, "link chat")
	}
	return nil
}

func (s *AccountStore) UnlinkChat(ctx context.Context, chatID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET chat_id = NULL, updated_at = NOW() WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return 0, errors.Wrap(err, "unlink chat")
	}
	return res.RowsAffected()
}

func (s *AccountStore) Reconcile(ctx context.Context) ([]BalanceCheck, error) {
	var rows []BalanceCheck
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       a.handle,
		       a.coins AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (a.coins - COALESCE(SUM(l.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		WHERE a.role = 'student'
		GROUP BY a.id, a.handle, a.coins
		ORDER BY a.handle
	`)
	if err != nil {
		return nil, errors.Wrap(err, "reconcile balances")
	}
	return rows, nil
}

func (s *AccountStore) getOne(ctx context.Context, getter Getter, query string, arg any) (models.Account, error) {
	var row models.Account
	if err := getter.GetContext(ctx, &row, query, arg); err != nil {
		return models.Account{}, wrapGet(err, "get account")
	}
	return row, nil
}
