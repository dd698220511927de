package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	w *database.Writer
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(w *database.Writer) *OrderRepository {
	return &OrderRepository{w: w}
}

// ListUsers returns every user id and email.
func (r *OrderRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	}, `SELECT id, email FROM spree_users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AddressIDs lists address ids.
func (r *OrderRepository) AddressIDs(ctx context.Context) ([]int64, error) {
	ids, err := collectIDs(ctx, r.w, `SELECT id FROM spree_addresses`)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return ids, nil
}

// InsertAddress inserts an address and returns its id.
func (r *OrderRepository) InsertAddress(ctx context.Context, a *domain.Address) (int64, error) {
	id, err := insertReturningID(ctx, r.w, `
		INSERT INTO spree_addresses (
			firstname, lastname, address1, address2, city, zipcode, phone,
			state_name, alternative_phone, company, country_id,
			created_at, updated_at, user_id, label
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		a.FirstName, a.LastName, a.Address1, a.Address2, a.City, a.Zipcode, a.Phone,
		a.StateName, a.AlternativePhone, a.Company, a.CountryID,
		a.CreatedAt, a.UpdatedAt, a.UserID, a.Label,
	)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}
	return id, nil
}

// OrderExists checks for an order by id or number.
func (r *OrderRepository) OrderExists(ctx context.Context, id int64, number string) (bool, error) {
	ok, err := r.w.Exists(ctx, `SELECT 1 FROM spree_orders WHERE id = $1 OR number = $2 LIMIT 1`, id, number)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return ok, nil
}

// InsertOrder inserts an order with its explicit id.
func (r *OrderRepository) InsertOrder(ctx context.Context, o *domain.OrderRecord) error {
	query := `
		INSERT INTO spree_orders (
			id, number, item_total, total, state, adjustment_total,
			user_id, completed_at, bill_address_id, ship_address_id, payment_total,
			shipment_state, payment_state, email, special_instructions, created_at,
			updated_at, currency, last_ip_address, created_by_id, shipment_total,
			additional_tax_total, promo_total, channel, included_tax_total, item_count,
			approver_id, approved_at, confirmation_delivered, considered_risky, token,
			canceled_at, canceler_id, store_id, state_lock_version,
			taxable_adjustment_total, non_taxable_adjustment_total,
			store_owner_notification_delivered, public_metadata, private_metadata, internal_note
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31,
			$32, $33, $34, $35, $36, $37, $38, NULL, NULL, $39
		)`

	_, err := r.w.Execute(ctx, query,
		o.ID,
		o.Number,
		o.ItemTotal,
		o.Total,
		o.State,
		o.AdjustmentTotal,
		o.UserID,
		o.CompletedAt,
		o.BillAddressID,
		o.ShipAddressID,
		o.PaymentTotal,
		o.ShipmentState,
		o.PaymentState,
		o.Email,
		o.SpecialInstructions,
		o.CreatedAt,
		o.UpdatedAt,
		o.Currency,
		o.LastIPAddress,
		o.CreatedByID,
		o.ShipmentTotal,
		o.AdditionalTaxTotal,
		o.PromoTotal,
		o.Channel,
		o.IncludedTaxTotal,
		o.ItemCount,
		o.ApproverID,
		o.ApprovedAt,
		o.ConfirmationDelivered,
		o.ConsideredRisky,
		o.Token,
		o.CanceledAt,
		o.CancelerID,
		o.StoreID,
		o.StateLockVersion,
		o.TaxableAdjustmentTotal,
		o.NonTaxableAdjustmentTotal,
		o.StoreOwnerNotificationDelivered,
		o.InternalNote,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.Number, err)
	}
	return nil
}

// GuestOrdersMissingAddress lists guest orders lacking an address.
func (r *OrderRepository) GuestOrdersMissingAddress(ctx context.Context) ([]domain.GuestOrder, error) {
	var orders []domain.GuestOrder
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		var o domain.GuestOrder
		if err := rows.Scan(&o.ID, &o.Number, &o.Email, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return err
		}
		orders = append(orders, o)
		return nil
	}, `
		SELECT id, number, COALESCE(email, ''), created_at, updated_at
		FROM spree_orders
		WHERE user_id IS NULL
		  AND (bill_address_id IS NULL OR ship_address_id IS NULL)
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list guest orders without address: %w", err)
	}
	return orders, nil
}

// SetOrderAddresses points an order at its bill and ship addresses.
func (r *OrderRepository) SetOrderAddresses(ctx context.Context, orderID, billAddressID, shipAddressID int64) error {
	_, err := r.w.Execute(ctx, `
		UPDATE spree_orders SET bill_address_id = $1, ship_address_id = $2 WHERE id = $3`,
		billAddressID, shipAddressID, orderID)
	if err != nil {
		return fmt.Errorf("set addresses of order %d: %w", orderID, err)
	}
	return nil
}

// WithinTx runs fn in a transaction.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(repository.OrderRepository) error) error {
	return r.w.InTx(ctx, func(tx *database.Writer) error {
		return fn(&OrderRepository{w: tx})
	})
}
