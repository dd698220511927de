package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a spree_line_items row from the content source.
type LineItem struct {
	ID                        int64               `json:"id" validate:"required,gt=0"`
	VariantID                 int64               `json:"variant_id" validate:"required"`
	OrderID                   int64               `json:"order_id" validate:"required"`
	Quantity                  int                 `json:"quantity" validate:"gt=0"`
	Price                     decimal.Decimal     `json:"price"`
	CreatedAt                 Timestamp           `json:"created_at"`
	UpdatedAt                 Timestamp           `json:"updated_at"`
	Currency                  string              `json:"currency"`
	CostPrice                 decimal.NullDecimal `json:"cost_price"`
	TaxCategoryID             *int64              `json:"tax_category_id"`
	AdjustmentTotal           decimal.Decimal     `json:"adjustment_total"`
	AdditionalTaxTotal        decimal.Decimal     `json:"additional_tax_total"`
	PromoTotal                decimal.Decimal     `json:"promo_total"`
	IncludedTaxTotal          decimal.Decimal     `json:"included_tax_total"`
	PreTaxAmount              decimal.Decimal     `json:"pre_tax_amount"`
	TaxableAdjustmentTotal    decimal.Decimal     `json:"taxable_adjustment_total"`
	NonTaxableAdjustmentTotal decimal.Decimal     `json:"non_taxable_adjustment_total"`
}

// Shipment is a spree_shipments row from the content source.
type Shipment struct {
	ID                        int64           `json:"id" validate:"required,gt=0"`
	Tracking                  *string         `json:"tracking"`
	Number                    string          `json:"number" validate:"required"`
	Cost                      decimal.Decimal `json:"cost"`
	ShippedAt                 Timestamp       `json:"shipped_at"`
	OrderID                   int64           `json:"order_id" validate:"required"`
	AddressID                 *int64          `json:"address_id"`
	State                     string          `json:"state" validate:"required"`
	CreatedAt                 Timestamp       `json:"created_at"`
	UpdatedAt                 Timestamp       `json:"updated_at"`
	StockLocationID           int64           `json:"stock_location_id"`
	AdjustmentTotal           decimal.Decimal `json:"adjustment_total"`
	AdditionalTaxTotal        decimal.Decimal `json:"additional_tax_total"`
	PromoTotal                decimal.Decimal `json:"promo_total"`
	IncludedTaxTotal          decimal.Decimal `json:"included_tax_total"`
	PreTaxAmount              decimal.Decimal `json:"pre_tax_amount"`
	TaxableAdjustmentTotal    decimal.Decimal `json:"taxable_adjustment_total"`
	NonTaxableAdjustmentTotal decimal.Decimal `json:"non_taxable_adjustment_total"`
}

// ShippingRate is a spree_shipping_rates row from the content source.
type ShippingRate struct {
	ID               int64           `json:"id" validate:"required,gt=0"`
	ShipmentID       int64           `json:"shipment_id" validate:"required"`
	ShippingMethodID int64           `json:"shipping_method_id" validate:"required"`
	Selected         bool            `json:"selected"`
	Cost             decimal.Decimal `json:"cost"`
	TaxRateID        *int64          `json:"tax_rate_id"`
	CreatedAt        Timestamp       `json:"created_at"`
	UpdatedAt        Timestamp       `json:"updated_at"`
}

// ShipmentState is the planning view of one persisted shipment.
type ShipmentState struct {
	ID        int64
	OrderID   int64
	State     string
	CreatedAt time.Time
}
