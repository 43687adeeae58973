package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

const (
	DirectionEarn  = "earn"
	DirectionSpend = "spend"
)

const (
	CategoryHomework = "homework"
	CategoryBehavior = "behavior"
	CategoryReward   = "reward"
	CategoryShop     = "shop"
	CategoryQuiz     = "quiz"
	CategoryOther    = "other"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	AccountID string `json:"id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
}

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

type Account struct {
	ID           string    `db:"id" json:"id"`
	Handle       string    `db:"handle" json:"handle"`
	Email        *string   `db:"email" json:"email,omitempty"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	ClassLabel   string    `db:"class_label" json:"class"`
	Avatar       string    `db:"avatar" json:"avatar"`
	Color        string    `db:"color" json:"color"`
	Coins        int64     `db:"coins" json:"coins"`
	ChatID       *string   `db:"chat_id" json:"-"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (a Account) IsStudent() bool { return a.Role == RoleStudent }

// ManagedBy reports whether a teacher may act on this student.
func (a Account) ManagedBy(teacherID string) bool {
	return a.TeacherID == nil || *a.TeacherID == teacherID
}

func (a Account) Identity() Identity {
	return Identity{AccountID: a.ID, Role: a.Role, Name: a.Name}
}

type LedgerEntry struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	Label     string    `db:"label" json:"label"`
	Amount    int64     `db:"amount" json:"amount"`
	Direction string    `db:"direction" json:"type"`
	Category  string    `db:"category" json:"category"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

// Questions is stored as a jsonb array.
type Questions []Question

func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q)
}

func (q *Questions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*q = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("questions: unsupported column type")
	}
	return json.Unmarshal(raw, q)
}

type Quiz struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Title      string    `db:"title" json:"title"`
	Subject    string    `db:"subject" json:"subject"`
	ClassLabel string    `db:"class_label" json:"class"`
	Questions  Questions `db:"questions" json:"questions"`
	MaxCoins   int64     `db:"max_coins" json:"max_coins"`
	TimeLimit  int       `db:"time_limit" json:"time_limit"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// AnswerKey lists the correct option index of each question in order.
func (q Quiz) AnswerKey() []int {
	key := make([]int, len(q.Questions))
	for i, question := range q.Questions {
		key[i] = question.Correct
	}
	return key
}

type QuizAttempt struct {
	ID          string         `db:"id" json:"id"`
	QuizID      string         `db:"quiz_id" json:"quiz_id"`
	AccountID   string         `db:"account_id" json:"account_id"`
	Answers     types.JSONText `db:"answers" json:"answers"`
	Correct     int            `db:"correct" json:"correct"`
	Total       int            `db:"total" json:"total"`
	Score       int            `db:"score" json:"score"`
	CoinsEarned int64          `db:"coins_earned" json:"coins_earned"`
	TimeTaken   int            `db:"time_taken" json:"time_taken"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

const (
	ShopSchoolSupplies = "School Supplies"
	ShopSnacks         = "Snacks"
	ShopAcademic       = "Academic"
	ShopFun            = "Fun"
)

type ShopItem struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Cost        int64     `db:"cost" json:"cost"`
	Category    string    `db:"category" json:"category"`
	Emoji       string    `db:"emoji" json:"emoji"`
	Description string    `db:"description" json:"description"`
	Tag         *string   `db:"tag" json:"tag"`
	Active      bool      `db:"active" json:"active"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
