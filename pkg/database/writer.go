package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// Writer executes parameterized statements against a DBTX. Values are only
// ever bound as positional arguments; identifiers that must be spliced into
// SQL go through pgx.Identifier sanitisation.
type Writer struct {
	db            DBTX
	logger        *slog.Logger
	slowThreshold time.Duration
	transactional bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSlowQueryLog logs statements that take longer than threshold.
func WithSlowQueryLog(threshold time.Duration, logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.slowThreshold = threshold
		w.logger = logger
	}
}

// WithTransactions controls whether InTx opens a real transaction. When
// disabled, InTx runs its function directly against the underlying DBTX.
func WithTransactions(enabled bool) WriterOption {
	return func(w *Writer) {
		w.transactional = enabled
	}
}

// NewWriter creates a Writer over db. Transactions are enabled by default.
func NewWriter(db DBTX, opts ...WriterOption) *Writer {
	w := &Writer{db: db, transactional: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs a statement and returns the number of affected rows.
func (w *Writer) Execute(ctx context.Context, query string, args ...any) (_ int64, err error) {
	ctx, end := w.traceQuery(ctx, query)
	defer func() { end(err) }()

	tag, err := w.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Fetch runs a query and calls scan once per result row.
func (w *Writer) Fetch(ctx context.Context, scan func(pgx.Rows) error, query string, args ...any) (err error) {
	ctx, end := w.traceQuery(ctx, query)
	defer func() { end(err) }()

	rows, err := w.db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// FetchRow scans the first result row into dest. It reports false, with a nil
// error, when the query returns no rows.
func (w *Writer) FetchRow(ctx context.Context, dest []any, query string, args ...any) (_ bool, err error) {
	ctx, end := w.traceQuery(ctx, query)
	defer func() { end(err) }()

	err = w.db.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchVal returns the single value of the first result row.
func FetchVal[T any](ctx context.Context, w *Writer, query string, args ...any) (T, bool, error) {
	var v T
	found, err := w.FetchRow(ctx, []any{&v}, query, args...)
	return v, found, err
}

// Exists reports whether query returns at least one row.
func (w *Writer) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	return w.FetchRow(ctx, []any{&one}, query, args...)
}

// InTx runs fn with a Writer bound to a new transaction, committing when fn
// returns nil and rolling back otherwise.
func (w *Writer) InTx(ctx context.Context, fn func(tx *Writer) error) (err error) {
	if !w.transactional {
		return fn(w)
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	txw := *w
	txw.db = tx
	if err = fn(&txw); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ResyncSequence moves the id sequence of table past the highest existing id,
// so that the next auto-assigned id is MAX(id)+1 (or 1 for an empty table).
// It must follow every load that supplied explicit primary keys.
func (w *Writer) ResyncSequence(ctx context.Context, table string) (int64, error) {
	ident := pgx.Identifier{table}.Sanitize()
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		ident,
	)
	next, _, err := FetchVal[int64](ctx, w, query, table)
	if err != nil {
		return 0, fmt.Errorf("resync %s sequence: %w", table, err)
	}
	return next, nil
}
