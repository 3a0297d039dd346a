package db

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidID           = errors.New("invalid identifier")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrConcurrencyConflict = errors.New("concurrent update detected")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// ValidationError carries per-field messages from ozzo-validation.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.Fields.Error())
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError converts the result of validation.ValidateStruct /
// validation.Errors.Filter into a ValidationError. nil stays nil.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// AlreadyReturnedError is returned when a check-in targets a unit whose most
// recent episode is already closed.
type AlreadyReturnedError struct {
	EpisodeID  string
	ReturnedAt time.Time
}

func (e *AlreadyReturnedError) Error() string {
	return fmt.Sprintf("already returned at %s", e.ReturnedAt.Format(time.RFC3339))
}

func (e *AlreadyReturnedError) Unwrap() error { return ErrConflict }

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

// storeErr classifies a gorm error. Record-not-found and duplicate keys are
// domain outcomes; everything else means the persistence layer failed.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrConcurrencyConflict), errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidID), errors.Is(err, ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
