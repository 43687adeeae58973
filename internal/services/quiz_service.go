package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coined/internal/coins"
	"coined/internal/db"
	"coined/internal/models"
	"coined/internal/notify"
	"coined/internal/scoring"
	"coined/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	defaultQuizCoins     = 20
	defaultQuizTimeLimit = 10
)

type AccountReader interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
}

type QuizStore interface {
	Create(ctx context.Context, quiz models.Quiz) error
	Update(ctx context.Context, quiz models.Quiz) (int64, error)
	Delete(ctx context.Context, quizID, teacherID string) (int64, error)
	Toggle(ctx context.Context, quizID, teacherID string) (bool, error)
	GetByID(ctx context.Context, quizID string) (models.Quiz, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Quiz, error)
	ListActive(ctx context.Context, accountID string) ([]store.QuizListing, error)
}

type AttemptStore interface {
	Insert(ctx context.Context, tx store.Execer, attempt models.QuizAttempt) error
	Get(ctx context.Context, quizID, accountID string) (models.QuizAttempt, error)
	ListByAccount(ctx context.Context, accountID string) ([]store.AttemptWithQuiz, error)
	ListByQuiz(ctx context.Context, quizID string) ([]store.AttemptResult, error)
}

// Ledger is the part of LedgerService other services post through.
type Ledger interface {
	ApplyInTx(ctx context.Context, tx store.Tx, req AdjustmentRequest) (AdjustmentResult, error)
	Announce(result AdjustmentResult, message string)
}

type QuizService struct {
	txRunner db.TxRunner
	accounts AccountReader
	quizzes  QuizStore
	attempts AttemptStore
	ledger   Ledger
	notifier Notifier
}

func NewQuizService(txRunner db.TxRunner, accounts AccountReader, quizzes QuizStore, attempts AttemptStore, ledger Ledger, notifier Notifier) *QuizService {
	return &QuizService{
		txRunner: txRunner,
		accounts: accounts,
		quizzes:  quizzes,
		attempts: attempts,
		ledger:   ledger,
		notifier: notifier,
	}
}

type SubmitRequest struct {
	QuizID    string
	AccountID string
	Answers   []scoring.Selection
	TimeTaken int
}

type SubmitResult struct {
	Score       int                `json:"score"`
	CoinsEarned int64              `json:"coins_earned"`
	Correct     int                `json:"correct"`
	Total       int                `json:"total"`
	Balance     int64              `json:"balance"`
	Attempt     models.QuizAttempt `json:"attempt"`
}

var errDuplicateAttempt = errors.New("duplicate attempt")

// Submit grades a student's answers, records the attempt and credits the
// earned coins in one transaction. A second submission for the same quiz
// returns *AlreadySubmittedError carrying the first attempt.
func (s *QuizService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	account, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return SubmitResult{}, orNotFound(err, "account not found")
	}
	if !account.IsStudent() {
		return SubmitResult{}, ErrForbidden
	}
	quiz, err := s.quizzes.GetByID(ctx, req.QuizID)
	if err != nil {
		return SubmitResult{}, orNotFound(err, "quiz not found")
	}
	if !quiz.Active {
		return SubmitResult{}, notFound("quiz not found")
	}
	if existing, err := s.attempts.Get(ctx, quiz.ID, account.ID); err == nil {
		return SubmitResult{}, &AlreadySubmittedError{Attempt: existing}
	} else if !errors.Is(err, store.ErrNotFound) {
		return SubmitResult{}, err
	}

	graded, err := scoring.Grade(quiz.AnswerKey(), req.Answers, quiz.MaxCoins)
	if errors.Is(err, scoring.ErrAnswerCount) {
		return SubmitResult{}, invalid("invalid answers format")
	}
	if err != nil {
		return SubmitResult{}, err
	}
	answers, err := json.Marshal(req.Answers)
	if err != nil {
		return SubmitResult{}, errors.Wrap(err, "encode answers")
	}
	timeTaken := req.TimeTaken
	if timeTaken < 0 {
		timeTaken = 0
	}
	attempt := models.QuizAttempt{
		ID:          uuid.NewString(),
		QuizID:      quiz.ID,
		AccountID:   account.ID,
		Answers:     answers,
		Correct:     graded.Correct,
		Total:       graded.Total,
		Score:       graded.Score,
		CoinsEarned: graded.Coins,
		TimeTaken:   timeTaken,
		CreatedAt:   time.Now().UTC(),
	}

	var credit AdjustmentResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.attempts.Insert(ctx, tx, attempt); err != nil {
			if db.IsUniqueViolation(err, store.AttemptUniqueConstraint) {
				return errDuplicateAttempt
			}
			return err
		}
		if graded.Coins == 0 {
			return nil
		}
		var err error
		credit, err = s.ledger.ApplyInTx(ctx, tx, AdjustmentRequest{
			AccountID: account.ID,
			Amount:    graded.Coins,
			Direction: models.DirectionEarn,
			Label:     fmt.Sprintf("Test: %s (%d%%)", quiz.Title, graded.Score),
			Category:  models.CategoryQuiz,
		})
		return err
	})
	if errors.Is(err, errDuplicateAttempt) {
		existing, getErr := s.attempts.Get(ctx, quiz.ID, account.ID)
		if getErr != nil {
			return SubmitResult{}, ErrAlreadySubmitted
		}
		return SubmitResult{}, &AlreadySubmittedError{Attempt: existing}
	}
	if err != nil {
		return SubmitResult{}, err
	}

	balance := account.Coins
	if graded.Coins > 0 {
		balance = credit.Account.Coins
		s.ledger.Announce(credit, quizMessage(quiz.Title, graded, balance))
	} else if s.notifier != nil && account.ChatID != nil {
		s.notifier.Notify(*account.ChatID, quizMessage(quiz.Title, graded, balance))
	}
	return SubmitResult{
		Score:       graded.Score,
		CoinsEarned: graded.Coins,
		Correct:     graded.Correct,
		Total:       graded.Total,
		Balance:     balance,
		Attempt:     attempt,
	}, nil
}

func quizMessage(title string, graded scoring.Result, balance int64) string {
	return fmt.Sprintf("🎯 *Quiz result!*\n\n📝 %s\n✅ Score: *%d%%* (%d/%d)\n🪙 *+%s coins* added!\n💰 Balance: *%s coins*",
		notify.EscapeMarkdown(title), graded.Score, graded.Correct, graded.Total, coins.Format(graded.Coins), coins.Format(balance))
}

type QuestionInput struct {
	Prompt  string   `json:"prompt" validate:"notblank,max=500"`
	Options []string `json:"options" validate:"min=2,max=8,dive,notblank,max=200"`
	Correct int      `json:"correct" validate:"min=0"`
}

type QuizInput struct {
	Title      string          `json:"title" validate:"notblank,max=200"`
	Subject    string          `json:"subject" validate:"max=100"`
	ClassLabel string          `json:"class" validate:"max=50"`
	Questions  []QuestionInput `json:"questions" validate:"required,min=1,max=100,dive"`
	MaxCoins   *int64          `json:"max_coins" validate:"omitempty,min=0,max=10000"`
	TimeLimit  *int            `json:"time_limit" validate:"omitempty,min=1,max=240"`
	Active     *bool           `json:"active"`
}

func (in QuizInput) questions() (models.Questions, error) {
	out := make(models.Questions, len(in.Questions))
	for i, q := range in.Questions {
		if q.Correct >= len(q.Options) {
			return nil, invalid(fmt.Sprintf("question %d: correct option out of range", i+1))
		}
		options := make([]string, len(q.Options))
		for j, option := range q.Options {
			options[j] = strings.TrimSpace(option)
		}
		out[i] = models.Question{Prompt: strings.TrimSpace(q.Prompt), Options: options, Correct: q.Correct}
	}
	return out, nil
}

func (in QuizInput) apply(quiz *models.Quiz) error {
	if err := validate(in); err != nil {
		return err
	}
	questions, err := in.questions()
	if err != nil {
		return err
	}
	quiz.Title = strings.TrimSpace(in.Title)
	quiz.Subject = strings.TrimSpace(in.Subject)
	quiz.ClassLabel = strings.TrimSpace(in.ClassLabel)
	quiz.Questions = questions
	if in.MaxCoins != nil {
		quiz.MaxCoins = *in.MaxCoins
	}
	if in.TimeLimit != nil {
		quiz.TimeLimit = *in.TimeLimit
	}
	if in.Active != nil {
		quiz.Active = *in.Active
	}
	return nil
}

func (s *QuizService) Create(ctx context.Context, teacher models.Identity, in QuizInput) (models.Quiz, error) {
	if !teacher.IsTeacher() {
		return models.Quiz{}, ErrForbidden
	}
	now := time.Now().UTC()
	quiz := models.Quiz{
		ID:        uuid.NewString(),
		TeacherID: teacher.AccountID,
		MaxCoins:  defaultQuizCoins,
		TimeLimit: defaultQuizTimeLimit,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(&quiz); err != nil {
		return models.Quiz{}, err
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

// Update replaces a quiz's content. Only the owning teacher may edit it.
func (s *QuizService) Update(ctx context.Context, teacher models.Identity, quizID string, in QuizInput) (models.Quiz, error) {
	quiz, err := s.owned(ctx, teacher, quizID)
	if err != nil {
		return models.Quiz{}, err
	}
	if err := in.apply(&quiz); err != nil {
		return models.Quiz{}, err
	}
	quiz.UpdatedAt = time.Now().UTC()
	n, err := s.quizzes.Update(ctx, quiz)
	if err != nil {
		return models.Quiz{}, err
	}
	if n == 0 {
		return models.Quiz{}, notFound("quiz not found")
	}
	return quiz, nil
}

func (s *QuizService) Delete(ctx context.Context, teacher models.Identity, quizID string) error {
	if !teacher.IsTeacher() {
		return ErrForbidden
	}
	n, err := s.quizzes.Delete(ctx, quizID, teacher.AccountID)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("quiz not found")
	}
	return nil
}

// Toggle flips the quiz's active flag and returns the new value.
func (s *QuizService) Toggle(ctx context.Context, teacher models.Identity, quizID string) (bool, error) {
	if !teacher.IsTeacher() {
		return false, ErrForbidden
	}
	active, err := s.quizzes.Toggle(ctx, quizID, teacher.AccountID)
	if err != nil {
		return false, orNotFound(err, "quiz not found")
	}
	return active, nil
}

type QuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct *int     `json:"correct,omitempty"`
}

// QuizView is a quiz shaped for its viewer: students never receive the
// answer key.
type QuizView struct {
	ID            string         `json:"id"`
	TeacherID     string         `json:"teacher_id"`
	Title         string         `json:"title"`
	Subject       string         `json:"subject"`
	ClassLabel    string         `json:"class"`
	Questions     []QuestionView `json:"questions,omitempty"`
	QuestionCount int            `json:"question_count"`
	MaxCoins      int64          `json:"max_coins"`
	TimeLimit     int            `json:"time_limit"`
	Active        bool           `json:"active"`
	Attempted     *bool          `json:"attempted,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func newQuizView(quiz models.Quiz, withQuestions, withKey bool) QuizView {
	view := QuizView{
		ID:            quiz.ID,
		TeacherID:     quiz.TeacherID,
		Title:         quiz.Title,
		Subject:       quiz.Subject,
		ClassLabel:    quiz.ClassLabel,
		QuestionCount: len(quiz.Questions),
		MaxCoins:      quiz.MaxCoins,
		TimeLimit:     quiz.TimeLimit,
		Active:        quiz.Active,
		CreatedAt:     quiz.CreatedAt,
	}
	if !withQuestions {
		return view
	}
	view.Questions = make([]QuestionView, len(quiz.Questions))
	for i, q := range quiz.Questions {
		view.Questions[i] = QuestionView{Prompt: q.Prompt, Options: q.Options}
		if withKey {
			correct := q.Correct
			view.Questions[i].Correct = &correct
		}
	}
	return view
}

// Get returns one quiz. Teachers see their own quizzes with the answer key;
// students see active quizzes without it.
func (s *QuizService) Get(ctx context.Context, requester models.Identity, quizID string) (QuizView, error) {
	if requester.IsTeacher() {
		quiz, err := s.owned(ctx, requester, quizID)
		if err != nil {
			return QuizView{}, err
		}
		return newQuizView(quiz, true, true), nil
	}
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return QuizView{}, orNotFound(err, "quiz not found")
	}
	if !quiz.Active {
		return QuizView{}, notFound("quiz not found")
	}
	view := newQuizView(quiz, true, false)
	_, err = s.attempts.Get(ctx, quiz.ID, requester.AccountID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return QuizView{}, err
	}
	attempted := err == nil
	view.Attempted = &attempted
	return view, nil
}

func (s *QuizService) List(ctx context.Context, requester models.Identity) ([]QuizView, error) {
	views := []QuizView{}
	if requester.IsTeacher() {
		quizzes, err := s.quizzes.ListByTeacher(ctx, requester.AccountID)
		if err != nil {
			return nil, err
		}
		for _, quiz := range quizzes {
			views = append(views, newQuizView(quiz, true, true))
		}
		return views, nil
	}
	listings, err := s.quizzes.ListActive(ctx, requester.AccountID)
	if err != nil {
		return nil, err
	}
	for _, listing := range listings {
		view := newQuizView(listing.Quiz, false, false)
		attempted := listing.Attempted
		view.Attempted = &attempted
		views = append(views, view)
	}
	return views, nil
}

func (s *QuizService) MyAttempts(ctx context.Context, requester models.Identity) ([]store.AttemptWithQuiz, error) {
	if !requester.IsStudent() {
		return nil, ErrForbidden
	}
	rows, err := s.attempts.ListByAccount(ctx, requester.AccountID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.AttemptWithQuiz{}
	}
	return rows, nil
}

type QuizResults struct {
	Quiz     QuizView              `json:"quiz"`
	Attempts []store.AttemptResult `json:"attempts"`
}

// Results lists every attempt at a quiz for its owner.
func (s *QuizService) Results(ctx context.Context, teacher models.Identity, quizID string) (QuizResults, error) {
	quiz, err := s.owned(ctx, teacher, quizID)
	if err != nil {
		return QuizResults{}, err
	}
	rows, err := s.attempts.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return QuizResults{}, err
	}
	if rows == nil {
		rows = []store.AttemptResult{}
	}
	return QuizResults{Quiz: newQuizView(quiz, false, false), Attempts: rows}, nil
}

func (s *QuizService) owned(ctx context.Context, teacher models.Identity, quizID string) (models.Quiz, error) {
	if !teacher.IsTeacher() {
		return models.Quiz{}, ErrForbidden
	}
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return models.Quiz{}, orNotFound(err, "quiz not found")
	}
	if quiz.TeacherID != teacher.AccountID {
		return models.Quiz{}, notFound("quiz not found")
	}
	return quiz, nil
}
