package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
)

// Tables written with explicit primary keys or resynced after a load.
const (
	TableProducts      = "spree_products"
	TableVariants      = "spree_variants"
	TablePrices        = "spree_prices"
	TableStockItems    = "spree_stock_items"
	TableOrders        = "spree_orders"
	TableAddresses     = "spree_addresses"
	TableLineItems     = "spree_line_items"
	TableShipments     = "spree_shipments"
	TableShippingRates = "spree_shipping_rates"
	TableStateChanges  = "spree_state_changes"
)

// Order columns that hold a denormalized state.
const (
	OrderStateColumn    = "state"
	PaymentStateColumn  = "payment_state"
	ShipmentStateColumn = "shipment_state"
)

// RowTimes are the created_at/updated_at values of a row.
type RowTimes struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sequencer resyncs primary-key sequences after explicit-ID loads.
type Sequencer interface {
	// ResyncSequence makes the next auto-assigned id of table MAX(id)+1 and
	// returns that id.
	ResyncSequence(ctx context.Context, table string) (int64, error)
}

// CatalogRepository persists products and their variants.
type CatalogRepository interface {
	// Default reference rows. The bool is false when the row does not exist.
	DefaultShippingCategoryID(ctx context.Context) (int64, bool, error)
	DefaultTaxCategoryID(ctx context.Context) (int64, bool, error)
	DefaultStoreID(ctx context.Context) (int64, bool, error)
	DefaultStockLocationID(ctx context.Context) (int64, bool, error)

	// PrototypeIDs lists the prototypes defined in the store.
	PrototypeIDs(ctx context.Context) ([]int64, error)

	// ProductExists reports whether a product has the given id or slug.
	ProductExists(ctx context.Context, id int64, slug string) (bool, error)

	// OptionTypeIDs returns the distinct option types owning the values.
	OptionTypeIDs(ctx context.Context, optionValueIDs []int64) ([]int64, error)

	// InsertProduct writes a product row. A zero ID is assigned by the
	// store's sequence. Returns the product id.
	InsertProduct(ctx context.Context, p *domain.ProductRecord) (int64, error)

	LinkStore(ctx context.Context, productID, storeID int64, at time.Time) error
	LinkTaxon(ctx context.Context, productID, taxonID int64, position int, at time.Time) error
	LinkOptionType(ctx context.Context, productID, optionTypeID int64, position int, at time.Time) error

	// InsertVariant writes a variant row and returns its id.
	InsertVariant(ctx context.Context, v *domain.VariantRecord, at time.Time) (int64, error)
	InsertPrice(ctx context.Context, variantID int64, amount decimal.Decimal, currency string, at time.Time) error

	// LinkOptionValue reports false when the variant already carries the value.
	LinkOptionValue(ctx context.Context, variantID, optionValueID int64, at time.Time) (bool, error)

	InsertStockItem(ctx context.Context, variantID, stockLocationID int64, count int, at time.Time) error

	CountProducts(ctx context.Context) (int64, error)
	// CountVariants counts non-master variants.
	CountVariants(ctx context.Context) (int64, error)

	// WithinTx runs fn against a repository bound to one transaction.
	WithinTx(ctx context.Context, fn func(CatalogRepository) error) error
}

// ImageRepository persists image blobs, assets and attachments.
type ImageRepository interface {
	// FindProductID returns the id of the product with the given id or slug.
	FindProductID(ctx context.Context, id int64, slug string) (int64, bool, error)

	// ListVariants returns a product's variants ordered by position.
	ListVariants(ctx context.Context, productID int64) ([]domain.VariantRef, error)

	InsertBlob(ctx context.Context, b *domain.Blob) (int64, error)
	InsertAsset(ctx context.Context, a *domain.Asset) (int64, error)
	InsertAttachment(ctx context.Context, a *domain.Attachment) (int64, error)

	WithinTx(ctx context.Context, fn func(ImageRepository) error) error
}

// OrderRepository persists orders, their addresses and guest backfills.
type OrderRepository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	AddressIDs(ctx context.Context) ([]int64, error)

	// InsertAddress writes an address and returns its id.
	InsertAddress(ctx context.Context, a *domain.Address) (int64, error)

	// OrderExists reports whether an order has the given id or number.
	OrderExists(ctx context.Context, id int64, number string) (bool, error)

	// InsertOrder writes an order with its explicit id.
	InsertOrder(ctx context.Context, o *domain.OrderRecord) error

	// GuestOrdersMissingAddress lists orders without a user that lack a
	// bill or ship address.
	GuestOrdersMissingAddress(ctx context.Context) ([]domain.GuestOrder, error)
	SetOrderAddresses(ctx context.Context, orderID, billAddressID, shipAddressID int64) error

	WithinTx(ctx context.Context, fn func(OrderRepository) error) error
}

// FulfillmentRepository persists line items, shipments and shipping rates.
type FulfillmentRepository interface {
	OrderIDs(ctx context.Context) ([]int64, error)
	// VariantIDs returns every variant id in ascending order.
	VariantIDs(ctx context.Context) ([]int64, error)
	AddressIDs(ctx context.Context) ([]int64, error)
	StockLocationIDs(ctx context.Context) ([]int64, error)
	ShipmentIDs(ctx context.Context) ([]int64, error)
	ShippingMethodIDs(ctx context.Context) ([]int64, error)

	InsertLineItem(ctx context.Context, li *domain.LineItem, at RowTimes) error
	InsertShipment(ctx context.Context, s *domain.Shipment, at RowTimes, shippedAt *time.Time) error
	// InsertShippingRate reports false when a rate with the same id exists.
	InsertShippingRate(ctx context.Context, r *domain.ShippingRate, at RowTimes) (bool, error)
}

// StateChangeRepository persists state histories and derives the
// denormalized order states from them.
type StateChangeRepository interface {
	// NextStateChangeID returns MAX(id)+1 of the state change table.
	NextStateChangeID(ctx context.Context) (int64, error)

	// ShipmentsForOrders returns the shipments of the given orders.
	ShipmentsForOrders(ctx context.Context, orderIDs []int64) ([]domain.ShipmentState, error)

	InsertStateChange(ctx context.Context, c *domain.StateChange) error
	SetShipmentState(ctx context.Context, shipmentID int64, state string, at time.Time) error

	// LatestStates returns the most recent change of machine name for each
	// of the stateful ids.
	LatestStates(ctx context.Context, name string, statefulIDs []int64) ([]domain.LatestState, error)

	// PaymentStates returns the stored payment_state of each order.
	PaymentStates(ctx context.Context, orderIDs []int64) (map[int64]string, error)

	// ApplyOrderState writes one denormalized state column of an order.
	ApplyOrderState(ctx context.Context, orderID int64, column, state string, at time.Time) error

	WithinTx(ctx context.Context, fn func(StateChangeRepository) error) error
}
