package services

import (
	"coined/internal/models"
	"coined/internal/store"
	"coined/internal/validator"

	"github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("not enough coins")
	ErrAlreadySubmitted    = errors.New("quiz already completed")
	ErrConflict            = errors.New("already exists")
	ErrUnauthorized        = errors.New("invalid login or password")
)

// AlreadySubmittedError carries the attempt that was recorded first.
type AlreadySubmittedError struct {
	Attempt models.QuizAttempt
}

func (e *AlreadySubmittedError) Error() string { return ErrAlreadySubmitted.Error() }

func (e *AlreadySubmittedError) Unwrap() error { return ErrAlreadySubmitted }

// reasonError gives a sentinel a client-facing message.
type reasonError struct {
	kind   error
	msg    string
	fields map[string]string
}

func (e *reasonError) Error() string { return e.msg }

func (e *reasonError) Unwrap() error { return e.kind }

func invalid(msg string) error {
	return &reasonError{kind: ErrInvalidInput, msg: msg}
}

func conflict(msg string) error {
	return &reasonError{kind: ErrConflict, msg: msg}
}

func notFound(msg string) error {
	return &reasonError{kind: ErrNotFound, msg: msg}
}

// validate runs struct tag validation and reports failures as ErrInvalidInput.
func validate(v any) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}
	var verr *validator.Error
	if errors.As(err, &verr) {
		return &reasonError{kind: ErrInvalidInput, msg: verr.Error(), fields: verr.Fields}
	}
	return errors.Wrap(err, "validate input")
}

// FieldErrors returns per-field messages attached to an invalid input error.
func FieldErrors(err error) map[string]string {
	var rerr *reasonError
	if errors.As(err, &rerr) {
		return rerr.fields
	}
	return nil
}

// orNotFound maps a store miss to a service-level not-found error.
func orNotFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msg)
	}
	return err
}
