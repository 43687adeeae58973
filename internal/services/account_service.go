package services

import (
	"context"
	"strings"
	"time"
	"unicode"

	"coined/internal/auth"
	"coined/internal/coins"
	"coined/internal/db"
	"coined/internal/models"
	"coined/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	defaultColor           = "#22c55e"
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByHandle(ctx context.Context, handle string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByChatID(ctx context.Context, chatID string) (models.Account, error)
	ListStudents(ctx context.Context, teacherID *string) ([]models.Account, error)
	Leaderboard(ctx context.Context, limit int) ([]models.Account, error)
	Rank(ctx context.Context, coins int64) (int, error)
	Delete(ctx context.Context, tx store.Execer, accountID string) (int64, error)
	LinkChat(ctx context.Context, accountID, chatID string) error
	UnlinkChat(ctx context.Context, chatID string) (int64, error)
}

type AccountService struct {
	txRunner db.TxRunner
	accounts AccountStore
	audit    AuditStore
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, audit AuditStore) *AccountService {
	return &AccountService{txRunner: txRunner, accounts: accounts, audit: audit}
}

type RegisterInput struct {
	Handle     string `json:"handle" validate:"required,handle" yaml:"handle"`
	Name       string `json:"name" validate:"notblank,max=100" yaml:"name"`
	Email      string `json:"email" validate:"omitempty,email,max=254" yaml:"email"`
	Password   string `json:"password" validate:"required,min=4,max=72" yaml:"password"`
	Role       string `json:"role" validate:"omitempty,oneof=student teacher" yaml:"role"`
	ClassLabel string `json:"class" validate:"max=50" yaml:"class"`
	Avatar     string `json:"avatar" validate:"max=8" yaml:"avatar"`
	Color      string `json:"color" validate:"omitempty,hexcolor" yaml:"color"`
}

// Initials builds an avatar from the first letters of up to two name parts.
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Fields(name) {
		if count == 2 {
			break
		}
		r := []rune(part)[0]
		b.WriteRune(unicode.ToUpper(r))
		count++
	}
	return b.String()
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.Account, error) {
	return s.create(ctx, in, "")
}

// CreateStudent registers a student assigned to the calling teacher.
func (s *AccountService) CreateStudent(ctx context.Context, teacher models.Identity, in RegisterInput) (models.Account, error) {
	if !teacher.IsTeacher() {
		return models.Account{}, ErrForbidden
	}
	in.Role = models.RoleStudent
	return s.create(ctx, in, teacher.AccountID)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, teacherID string) (models.Account, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate(in); err != nil {
		return models.Account{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.Account{}, errors.Wrap(err, "hash password")
	}
	now := time.Now().UTC()
	account := models.Account{
		ID:           uuid.NewString(),
		Handle:       in.Handle,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
		ClassLabel:   strings.TrimSpace(in.ClassLabel),
		Avatar:       strings.ToUpper(strings.TrimSpace(in.Avatar)),
		Color:        in.Color,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if account.Role == "" {
		account.Role = models.RoleStudent
	}
	if account.Avatar == "" {
		account.Avatar = Initials(account.Name)
	}
	if account.Color == "" {
		account.Color = defaultColor
	}
	if in.Email != "" {
		email := in.Email
		account.Email = &email
	}
	if teacherID != "" {
		account.TeacherID = &teacherID
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.Create(ctx, tx, account); err != nil {
			return err
		}
		if teacherID == "" {
			return nil
		}
		return s.audit.Log(ctx, tx, teacherID, "create_student", "account", account.ID, map[string]string{
			"handle": account.Handle,
			"name":   account.Name,
		})
	})
	switch {
	case db.IsUniqueViolation(err, store.AccountHandleConstraint):
		return models.Account{}, conflict("handle already taken")
	case db.IsUniqueViolation(err, store.AccountEmailConstraint):
		return models.Account{}, conflict("email already registered")
	case db.IsUniqueViolation(err, ""):
		return models.Account{}, conflict("account already exists")
	case err != nil:
		return models.Account{}, err
	}
	return account, nil
}

type LoginInput struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials by handle, falling back to email. Every failure
// is reported as ErrUnauthorized.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (models.Account, error) {
	handle := strings.TrimSpace(in.Handle)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if in.Password == "" || (handle == "" && email == "") {
		return models.Account{}, ErrUnauthorized
	}
	var account models.Account
	var err error
	if handle != "" {
		account, err = s.accounts.GetByHandle(ctx, handle)
		if errors.Is(err, store.ErrNotFound) && strings.Contains(handle, "@") {
			account, err = s.accounts.GetByEmail(ctx, strings.ToLower(handle))
		}
	} else {
		account, err = s.accounts.GetByEmail(ctx, email)
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, ErrUnauthorized
	}
	if err != nil {
		return models.Account{}, err
	}
	if !auth.CheckPassword(account.PasswordHash, in.Password) {
		return models.Account{}, ErrUnauthorized
	}
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, orNotFound(err, "account not found")
	}
	return account, nil
}

// ListStudents returns a teacher's own students, or every student for a
// student viewer.
func (s *AccountService) ListStudents(ctx context.Context, requester models.Identity) ([]models.Account, error) {
	var teacherID *string
	if requester.IsTeacher() {
		id := requester.AccountID
		teacherID = &id
	}
	rows, err := s.accounts.ListStudents(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Account{}
	}
	return rows, nil
}

func (s *AccountService) GetStudent(ctx context.Context, teacher models.Identity, studentID string) (models.Account, error) {
	if !teacher.IsTeacher() {
		return models.Account{}, ErrForbidden
	}
	account, err := s.accounts.GetByID(ctx, studentID)
	if err != nil {
		return models.Account{}, orNotFound(err, "student not found")
	}
	if !account.IsStudent() || !account.ManagedBy(teacher.AccountID) {
		return models.Account{}, notFound("student not found")
	}
	return account, nil
}

// RemoveStudent deletes a student with its ledger and attempts, auditing the
// removal in the same transaction.
func (s *AccountService) RemoveStudent(ctx context.Context, teacher models.Identity, studentID string) error {
	student, err := s.GetStudent(ctx, teacher, studentID)
	if err != nil {
		return err
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.audit.Log(ctx, tx, teacher.AccountID, "remove_student", "account", student.ID, map[string]any{
			"handle": student.Handle,
			"name":   student.Name,
			"coins":  student.Coins,
		}); err != nil {
			return err
		}
		n, err := s.accounts.Delete(ctx, tx, student.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("student not found")
		}
		return nil
	})
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Class  string `json:"class"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
	Coins  int64  `json:"coins"`
	Level  string `json:"level"`
}

func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	rows, err := s.accounts.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = LeaderboardEntry{
			Rank:   i + 1,
			ID:     row.ID,
			Name:   row.Name,
			Class:  row.ClassLabel,
			Avatar: row.Avatar,
			Color:  row.Color,
			Coins:  row.Coins,
			Level:  coins.LevelFor(row.Coins).Name,
		}
	}
	return entries, nil
}

func (s *AccountService) Rank(ctx context.Context, account models.Account) (int, error) {
	return s.accounts.Rank(ctx, account.Coins)
}

// ByChat finds the student linked to a Telegram chat.
func (s *AccountService) ByChat(ctx context.Context, chatID string) (models.Account, error) {
	account, err := s.accounts.GetByChatID(ctx, chatID)
	if err != nil {
		return models.Account{}, orNotFound(err, "no linked account")
	}
	return account, nil
}

// LinkChat verifies a student's credentials and binds the chat to them. A
// chat moves off any account it was linked to before.
func (s *AccountService) LinkChat(ctx context.Context, login, password, chatID string) (models.Account, error) {
	account, err := s.Login(ctx, LoginInput{Handle: login, Password: password})
	if err != nil {
		return models.Account{}, err
	}
	if !account.IsStudent() {
		return models.Account{}, ErrForbidden
	}
	if account.ChatID != nil && *account.ChatID != chatID {
		return models.Account{}, conflict("account is linked to another Telegram chat")
	}
	if _, err := s.accounts.UnlinkChat(ctx, chatID); err != nil {
		return models.Account{}, err
	}
	if err := s.accounts.LinkChat(ctx, account.ID, chatID); err != nil {
		if db.IsUniqueViolation(err, store.AccountChatConstraint) {
			return models.Account{}, conflict("chat is already linked")
		}
		return models.Account{}, err
	}
	account.ChatID = &chatID
	return account, nil
}

// UnlinkChat reports whether an account was linked to the chat.
func (s *AccountService) UnlinkChat(ctx context.Context, chatID string) (bool, error) {
	n, err := s.accounts.UnlinkChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
