package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// StateChangeRepository implements repository.StateChangeRepository using
// PostgreSQL.
type StateChangeRepository struct {
	w *database.Writer
}

// NewStateChangeRepository creates a new PostgreSQL-backed state change repository.
func NewStateChangeRepository(w *database.Writer) *StateChangeRepository {
	return &StateChangeRepository{w: w}
}

// NextStateChangeID returns the id following the highest existing one.
func (r *StateChangeRepository) NextStateChangeID(ctx context.Context) (int64, error) {
	id, _, err := database.FetchVal[int64](ctx, r.w, `SELECT COALESCE(MAX(id), 0) + 1 FROM spree_state_changes`)
	if err != nil {
		return 0, fmt.Errorf("get next state change id: %w", err)
	}
	return id, nil
}

// ShipmentsForOrders lists the shipments of orders.
func (r *StateChangeRepository) ShipmentsForOrders(ctx context.Context, orderIDs []int64) ([]domain.ShipmentState, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var shipments []domain.ShipmentState
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		var s domain.ShipmentState
		if err := rows.Scan(&s.ID, &s.OrderID, &s.State, &s.CreatedAt); err != nil {
			return err
		}
		shipments = append(shipments, s)
		return nil
	}, `
		SELECT id, order_id, state, created_at
		FROM spree_shipments
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	return shipments, nil
}

// InsertStateChange inserts one state change with its explicit id.
func (r *StateChangeRepository) InsertStateChange(ctx context.Context, c *domain.StateChange) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_state_changes (
			id, name, previous_state, stateful_id, user_id, stateful_type, next_state, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		c.ID, c.Name, c.PreviousState, c.StatefulID, c.UserID, c.StatefulType, c.NextState, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert state change %d: %w", c.ID, err)
	}
	return nil
}

// SetShipmentState rewrites the state of a shipment.
func (r *StateChangeRepository) SetShipmentState(ctx context.Context, shipmentID int64, state string, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		UPDATE spree_shipments SET state = $1, updated_at = GREATEST(updated_at, $2) WHERE id = $3`,
		state, at, shipmentID)
	if err != nil {
		return fmt.Errorf("set shipment %d state: %w", shipmentID, err)
	}
	return nil
}

// LatestStates returns the newest change of a machine per stateful id.
func (r *StateChangeRepository) LatestStates(ctx context.Context, name string, statefulIDs []int64) ([]domain.LatestState, error) {
	if len(statefulIDs) == 0 {
		return nil, nil
	}
	var latest []domain.LatestState
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		ls := domain.LatestState{Name: name}
		if err := rows.Scan(&ls.StatefulID, &ls.State, &ls.CreatedAt); err != nil {
			return err
		}
		latest = append(latest, ls)
		return nil
	}, `
		SELECT DISTINCT ON (stateful_id) stateful_id, next_state, created_at
		FROM spree_state_changes
		WHERE name = $1 AND stateful_id = ANY($2)
		ORDER BY stateful_id, created_at DESC, id DESC`, name, statefulIDs)
	if err != nil {
		return nil, fmt.Errorf("get latest %s states: %w", name, err)
	}
	return latest, nil
}

// PaymentStates returns the stored payment state of orders.
func (r *StateChangeRepository) PaymentStates(ctx context.Context, orderIDs []int64) (map[int64]string, error) {
	states := make(map[int64]string, len(orderIDs))
	if len(orderIDs) == 0 {
		return states, nil
	}
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		var (
			id    int64
			state string
		)
		if err := rows.Scan(&id, &state); err != nil {
			return err
		}
		states[id] = state
		return nil
	}, `SELECT id, COALESCE(payment_state, '') FROM spree_orders WHERE id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("get payment states: %w", err)
	}
	return states, nil
}

// applyStateQueries maps a state column to its UPDATE statement. Column
// names never come from input.
var applyStateQueries = map[string]string{
	repository.OrderStateColumn:    `UPDATE spree_orders SET state = $1, updated_at = GREATEST(updated_at, $2) WHERE id = $3`,
	repository.PaymentStateColumn:  `UPDATE spree_orders SET payment_state = $1, updated_at = GREATEST(updated_at, $2) WHERE id = $3`,
	repository.ShipmentStateColumn: `UPDATE spree_orders SET shipment_state = $1, updated_at = GREATEST(updated_at, $2) WHERE id = $3`,
}

// ApplyOrderState writes a denormalized state column of an order.
func (r *StateChangeRepository) ApplyOrderState(ctx context.Context, orderID int64, column, state string, at time.Time) error {
	query, ok := applyStateQueries[column]
	if !ok {
		return fmt.Errorf("unknown order state column %q", column)
	}
	if _, err := r.w.Execute(ctx, query, state, at, orderID); err != nil {
		return fmt.Errorf("apply %s of order %d: %w", column, orderID, err)
	}
	return nil
}

// WithinTx runs fn in a transaction.
func (r *StateChangeRepository) WithinTx(ctx context.Context, fn func(repository.StateChangeRepository) error) error {
	return r.w.InTx(ctx, func(tx *database.Writer) error {
		return fn(&StateChangeRepository{w: tx})
	})
}
