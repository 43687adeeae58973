package store

import (
	"context"

	"coined/internal/models"

	"github.com/pkg/errors"
)

const quizColumns = `id, teacher_id, title, subject, class_label, questions, max_coins, time_limit, active, created_at, updated_at`

type QuizStore struct {
	db DB
}

// QuizListing is a quiz summary as seen by a student.
type QuizListing struct {
	models.Quiz
	Attempted bool `db:"attempted" json:"attempted"`
}

func NewQuizStore(db DB) *QuizStore {
	return &QuizStore{db: db}
}

func (s *QuizStore) Create(ctx context.Context, quiz models.Quiz) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, teacher_id, title, subject, class_label, questions, max_coins, time_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, quiz.ID, quiz.TeacherID, quiz.Title, quiz.Subject, quiz.ClassLabel, quiz.Questions, quiz.MaxCoins, quiz.TimeLimit, quiz.Active)
	if err != nil {
		return errors.Wrap(err, "insert quiz")
	}
	return nil
}

// Update rewrites the editable fields of a quiz owned by quiz.TeacherID.
func (s *QuizStore) Update(ctx context.Context, quiz models.Quiz) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quizzes
		SET title = $1, subject = $2, class_label = $3, questions = $4,
		    max_coins = $5, time_limit = $6, active = $7, updated_at = NOW()
		WHERE id = $8 AND teacher_id = $9
	`, quiz.Title, quiz.Subject, quiz.ClassLabel, quiz.Questions, quiz.MaxCoins, quiz.TimeLimit, quiz.Active, quiz.ID, quiz.TeacherID)
	if err != nil {
		return 0, errors.Wrap(err, "update quiz")
	}
	return res.RowsAffected()
}

func (s *QuizStore) Delete(ctx context.Context, quizID, teacherID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1 AND teacher_id = $2`, quizID, teacherID)
	if err != nil {
		return 0, errors.Wrap(err, "delete quiz")
	}
	return res.RowsAffected()
}

// Toggle flips the active flag and returns the new value.
func (s *QuizStore) Toggle(ctx context.Context, quizID, teacherID string) (bool, error) {
	var active bool
	err := s.db.GetContext(ctx, &active, `
		UPDATE quizzes
		SET active = NOT active, updated_at = NOW()
		WHERE id = $1 AND teacher_id = $2
		RETURNING active
	`, quizID, teacherID)
	if err != nil {
		return false, wrapGet(err, "toggle quiz")
	}
	return active, nil
}

func (s *QuizStore) GetByID(ctx context.Context, quizID string) (models.Quiz, error) {
	var row models.Quiz
	if err := s.db.GetContext(ctx, &row, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, quizID); err != nil {
		return models.Quiz{}, wrapGet(err, "get quiz")
	}
	return row, nil
}

func (s *QuizStore) ListByTeacher(ctx context.Context, teacherID string) ([]models.Quiz, error) {
	rows := []models.Quiz{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+quizColumns+`
		FROM quizzes
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "list teacher quizzes")
	}
	return rows, nil
}

// ListActive returns active quizzes flagged with whether accountID has
// already submitted an attempt.
func (s *QuizStore) ListActive(ctx context.Context, accountID string) ([]QuizListing, error) {
	rows := []QuizListing{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT q.id, q.teacher_id, q.title, q.subject, q.class_label, q.questions,
		       q.max_coins, q.time_limit, q.active, q.created_at, q.updated_at,
		       EXISTS (
		           SELECT 1 FROM quiz_attempts a WHERE a.quiz_id = q.id AND a.account_id = $1
		       ) AS attempted
		FROM quizzes q
		WHERE q.active = TRUE
		ORDER BY q.created_at DESC
	`, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list active quizzes")
	}
	return rows, nil
}
