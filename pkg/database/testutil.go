package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool for testing. The returned pool satisfies
// DBTX and can back a Writer. Call ExpectationsWereMet() at the end of each
// test.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}

// NewMockWriter returns a Writer over a fresh mock pool.
func NewMockWriter(opts ...WriterOption) (*Writer, pgxmock.PgxPoolIface, error) {
	mock, err := NewMockPool()
	if err != nil {
		return nil, nil, err
	}
	return NewWriter(mock, opts...), mock, nil
}
