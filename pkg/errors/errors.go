package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrConflict      = errors.New("conflict")
	ErrSetup         = errors.New("environment not provisioned")
	ErrSkipped       = errors.New("skipped")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Kind classifies how a batch loop must react to an error.
type Kind int

const (
	// KindEntity is a per-entity failure: log, count, continue.
	KindEntity Kind = iota
	// KindSetup aborts the whole stage.
	KindSetup
	// KindSkip is an idempotency skip, not a failure.
	KindSkip
	// KindDataQuality is degraded input that was replaced by a default.
	KindDataQuality
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindSkip:
		return "skip"
	case KindDataQuality:
		return "data_quality"
	default:
		return "entity"
	}
}

// AppError represents a structured seeding error with a batch-handling kind.
type AppError struct {
	Code    string
	Message string
	Kind    Kind
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a per-entity error for a missing reference.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Kind:    KindEntity,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates an idempotency skip for a row that is already seeded.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Kind:    KindSkip,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a per-entity error for a record that fails validation.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Kind:    KindEntity,
		Err:     ErrInvalidInput,
	}
}

// Skipped creates a skip with a logged reason.
func Skipped(reason string) *AppError {
	return &AppError{
		Code:    "SKIPPED",
		Message: reason,
		Kind:    KindSkip,
		Err:     ErrSkipped,
	}
}

// Setup creates a fatal error for a missing file or reference row.
func Setup(message string, cause error) *AppError {
	err := ErrSetup
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSetup, cause)
	}
	return &AppError{
		Code:    "SETUP",
		Message: message,
		Kind:    KindSetup,
		Err:     err,
	}
}

// Internal creates a per-entity error for an unexpected failure.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Kind:    KindEntity,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the batch-handling kind of err.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	switch {
	case errors.Is(err, ErrSetup):
		return KindSetup
	case errors.Is(err, ErrSkipped), errors.Is(err, ErrAlreadyExists):
		return KindSkip
	case IsUniqueViolation(err):
		return KindSkip
	default:
		return KindEntity
	}
}

// IsFatal reports whether err must abort the current stage.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindSetup
}

// IsUniqueViolation reports whether err is a duplicate-key error from the
// database, by SQLSTATE when available and by message content otherwise.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
