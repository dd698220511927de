package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrInternal,
		ErrConflict, ErrSetup, ErrSkipped,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "db connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "variant not found"}
	assert.Equal(t, "NOT_FOUND: variant not found", appErr.Error())
}

func TestConstructors_Kinds(t *testing.T) {
	assert.Equal(t, KindEntity, NotFound("order", "7").Kind)
	assert.Equal(t, KindSkip, AlreadyExists("product", "slug", "tee-01").Kind)
	assert.Equal(t, KindEntity, InvalidInput("bad").Kind)
	assert.Equal(t, KindSkip, Skipped("no prototype").Kind)
	assert.Equal(t, KindSetup, Setup("missing store", nil).Kind)
	assert.Equal(t, KindEntity, Internal(errors.New("x")).Kind)
}

func TestSetup_WrapsCause(t *testing.T) {
	cause := errors.New("no rows")
	err := Setup("default tax category missing", cause)

	assert.True(t, errors.Is(err, ErrSetup))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsFatal(err))
}

func TestKindOf_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("seed product: %w", Skipped("prototype missing"))
	assert.Equal(t, KindSkip, KindOf(err))
	assert.False(t, IsFatal(err))
}

func TestKindOf_PlainErrors(t *testing.T) {
	assert.Equal(t, KindEntity, KindOf(errors.New("boom")))
	assert.Equal(t, KindSetup, KindOf(fmt.Errorf("load: %w", ErrSetup)))
	assert.Equal(t, KindSkip, KindOf(fmt.Errorf("insert: %w", ErrAlreadyExists)))
}

func TestIsFatal_Nil(t *testing.T) {
	assert.False(t, IsFatal(nil))
}

// --- Unique violation classification ---

func TestIsUniqueViolation_PgError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", Message: "dup"})
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, KindSkip, KindOf(err))
}

func TestIsUniqueViolation_OtherPgError(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	assert.False(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation_MessageFallback(t *testing.T) {
	err := errors.New(`ERROR: duplicate key value violates unique constraint "idx_x"`)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "lookup variant")
	require.Error(t, err)
	assert.Equal(t, "lookup variant: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "setup", KindSetup.String())
	assert.Equal(t, "skip", KindSkip.String())
	assert.Equal(t, "data_quality", KindDataQuality.String())
	assert.Equal(t, "entity", KindEntity.String())
}
