package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// collectIDs runs a query returning a single bigint column.
func collectIDs(ctx context.Context, w *database.Writer, query string, args ...any) ([]int64, error) {
	var ids []int64
	err := w.Fetch(ctx, func(rows pgx.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// fetchID returns the id of the first row, if any.
func fetchID(ctx context.Context, w *database.Writer, what, query string, args ...any) (int64, bool, error) {
	id, found, err := database.FetchVal[int64](ctx, w, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", what, err)
	}
	return id, found, nil
}

// insertReturningID runs an INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, w *database.Writer, query string, args ...any) (int64, error) {
	id, _, err := database.FetchVal[int64](ctx, w, query, args...)
	return id, err
}
