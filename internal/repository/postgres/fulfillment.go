package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// FulfillmentRepository implements repository.FulfillmentRepository using
// PostgreSQL.
type FulfillmentRepository struct {
	w *database.Writer
}

// NewFulfillmentRepository creates a new PostgreSQL-backed fulfillment repository.
func NewFulfillmentRepository(w *database.Writer) *FulfillmentRepository {
	return &FulfillmentRepository{w: w}
}

func (r *FulfillmentRepository) ids(ctx context.Context, what, query string) ([]int64, error) {
	ids, err := collectIDs(ctx, r.w, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	return ids, nil
}

// OrderIDs lists order ids.
func (r *FulfillmentRepository) OrderIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "orders", `SELECT id FROM spree_orders`)
}

// VariantIDs lists variant ids in ascending order.
func (r *FulfillmentRepository) VariantIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "variants", `SELECT id FROM spree_variants ORDER BY id`)
}

// AddressIDs lists address ids.
func (r *FulfillmentRepository) AddressIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "addresses", `SELECT id FROM spree_addresses`)
}

// StockLocationIDs lists stock location ids in ascending order.
func (r *FulfillmentRepository) StockLocationIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "stock locations", `SELECT id FROM spree_stock_locations ORDER BY id`)
}

// ShipmentIDs lists shipment ids.
func (r *FulfillmentRepository) ShipmentIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "shipments", `SELECT id FROM spree_shipments`)
}

// ShippingMethodIDs lists shipping method ids.
func (r *FulfillmentRepository) ShippingMethodIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, "shipping methods", `SELECT id FROM spree_shipping_methods`)
}

// InsertLineItem inserts a line item with its explicit id.
func (r *FulfillmentRepository) InsertLineItem(ctx context.Context, li *domain.LineItem, at repository.RowTimes) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_line_items (
			id, variant_id, order_id, quantity, price, created_at, updated_at,
			currency, cost_price, tax_category_id, adjustment_total,
			additional_tax_total, promo_total, included_tax_total,
			pre_tax_amount, taxable_adjustment_total,
			non_taxable_adjustment_total, public_metadata, private_metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, NULL, NULL
		)`,
		li.ID, li.VariantID, li.OrderID, li.Quantity, li.Price, at.CreatedAt, at.UpdatedAt,
		li.Currency, li.CostPrice, li.TaxCategoryID, li.AdjustmentTotal,
		li.AdditionalTaxTotal, li.PromoTotal, li.IncludedTaxTotal,
		li.PreTaxAmount, li.TaxableAdjustmentTotal,
		li.NonTaxableAdjustmentTotal,
	)
	if err != nil {
		return fmt.Errorf("insert line item %d: %w", li.ID, err)
	}
	return nil
}

// InsertShipment inserts a shipment with its explicit id.
func (r *FulfillmentRepository) InsertShipment(ctx context.Context, s *domain.Shipment, at repository.RowTimes, shippedAt *time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_shipments (
			id, tracking, number, cost, shipped_at, order_id, address_id, state,
			created_at, updated_at, stock_location_id, adjustment_total,
			additional_tax_total, promo_total, included_tax_total, pre_tax_amount,
			taxable_adjustment_total, non_taxable_adjustment_total,
			public_metadata, private_metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, NULL, NULL
		)`,
		s.ID, s.Tracking, s.Number, s.Cost, shippedAt, s.OrderID, s.AddressID, s.State,
		at.CreatedAt, at.UpdatedAt, s.StockLocationID, s.AdjustmentTotal,
		s.AdditionalTaxTotal, s.PromoTotal, s.IncludedTaxTotal, s.PreTaxAmount,
		s.TaxableAdjustmentTotal, s.NonTaxableAdjustmentTotal,
	)
	if err != nil {
		return fmt.Errorf("insert shipment %s: %w", s.Number, err)
	}
	return nil
}

// InsertShippingRate inserts a shipping rate unless its id is taken.
func (r *FulfillmentRepository) InsertShippingRate(ctx context.Context, sr *domain.ShippingRate, at repository.RowTimes) (bool, error) {
	n, err := r.w.Execute(ctx, `
		INSERT INTO spree_shipping_rates (
			id, shipment_id, shipping_method_id, selected, cost, tax_rate_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		sr.ID, sr.ShipmentID, sr.ShippingMethodID, sr.Selected, sr.Cost, sr.TaxRateID,
		at.CreatedAt, at.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert shipping rate %d: %w", sr.ID, err)
	}
	return n > 0, nil
}
