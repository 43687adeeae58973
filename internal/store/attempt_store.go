package store

import (
	"context"
	"time"

	"coined/internal/models"

	"github.com/pkg/errors"
)

// AttemptUniqueConstraint guards one attempt per (quiz, account).
const AttemptUniqueConstraint = "quiz_attempts_quiz_id_account_id_key"

const attemptColumns = `id, quiz_id, account_id, answers, correct, total, score, coins_earned, time_taken, created_at`

type AttemptStore struct {
	db DB
}

// AttemptWithQuiz is an attempt listed for its student.
type AttemptWithQuiz struct {
	models.QuizAttempt
	QuizTitle   string `db:"quiz_title" json:"quiz_title"`
	QuizSubject string `db:"quiz_subject" json:"quiz_subject"`
}

// AttemptResult is an attempt listed for the quiz owner.
type AttemptResult struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	StudentName   string    `db:"student_name" json:"student_name"`
	StudentHandle string    `db:"student_handle" json:"student_handle"`
	StudentClass  string    `db:"student_class" json:"student_class"`
	Correct       int       `db:"correct" json:"correct"`
	Total         int       `db:"total" json:"total"`
	Score         int       `db:"score" json:"score"`
	CoinsEarned   int64     `db:"coins_earned" json:"coins_earned"`
	TimeTaken     int       `db:"time_taken" json:"time_taken"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func NewAttemptStore(db DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Insert fails with a unique violation on AttemptUniqueConstraint when the
// account already answered the quiz.
func (s *AttemptStore) Insert(ctx context.Context, tx Execer, attempt models.QuizAttempt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, account_id, answers, correct, total, score, coins_earned, time_taken)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, attempt.ID, attempt.QuizID, attempt.AccountID, attempt.Answers, attempt.Correct, attempt.Total,
		attempt.Score, attempt.CoinsEarned, attempt.TimeTaken)
	if err != nil {
		return errors.Wrap(err, "insert quiz attempt")
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, quizID, accountID string) (models.QuizAttempt, error) {
	var row models.QuizAttempt
	err := s.db.GetContext(ctx, &row, `
		SELECT `+attemptColumns+`
		FROM quiz_attempts
		WHERE quiz_id = $1 AND account_id = $2
	`, quizID, accountID)
	if err != nil {
		return models.QuizAttempt{}, wrapGet(err, "get quiz attempt")
	}
	return row, nil
}

func (s *AttemptStore) ListByAccount(ctx context.Context, accountID string) ([]AttemptWithQuiz, error) {
	rows := []AttemptWithQuiz{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.quiz_id, a.account_id, a.answers, a.correct, a.total, a.score,
		       a.coins_earned, a.time_taken, a.created_at,
		       q.title AS quiz_title, q.subject AS quiz_subject
		FROM quiz_attempts a
		JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.account_id = $1
		ORDER BY a.created_at DESC
	`, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list account attempts")
	}
	return rows, nil
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]AttemptResult, error) {
	rows := []AttemptResult{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.account_id, u.name AS student_name, u.handle AS student_handle,
		       u.class_label AS student_class, a.correct, a.total, a.score,
		       a.coins_earned, a.time_taken, a.created_at
		FROM quiz_attempts a
		JOIN accounts u ON u.id = a.account_id
		WHERE a.quiz_id = $1
		ORDER BY a.score DESC, a.time_taken ASC
	`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list quiz results")
	}
	return rows, nil
}
