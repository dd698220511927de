package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// USCountryID is the spree_countries id used for synthesized addresses.
const USCountryID = 232

// Order is an order document from the content source. Nullable columns are
// pointers.
type Order struct {
	ID                              int64           `json:"id" validate:"required,gt=0"`
	Number                          string          `json:"number" validate:"required"`
	ItemTotal                       decimal.Decimal `json:"item_total"`
	Total                           decimal.Decimal `json:"total"`
	State                           string          `json:"state" validate:"required"`
	AdjustmentTotal                 decimal.Decimal `json:"adjustment_total"`
	UserID                          *int64          `json:"user_id"`
	CompletedAt                     Timestamp       `json:"completed_at"`
	BillAddressID                   *int64          `json:"bill_address_id"`
	ShipAddressID                   *int64          `json:"ship_address_id"`
	PaymentTotal                    decimal.Decimal `json:"payment_total"`
	ShipmentState                   *string         `json:"shipment_state"`
	PaymentState                    *string         `json:"payment_state"`
	Email                           string          `json:"email"`
	SpecialInstructions             *string         `json:"special_instructions"`
	CreatedAt                       Timestamp       `json:"created_at"`
	UpdatedAt                       Timestamp       `json:"updated_at"`
	Currency                        string          `json:"currency"`
	LastIPAddress                   *string         `json:"last_ip_address"`
	CreatedByID                     *int64          `json:"created_by_id"`
	ShipmentTotal                   decimal.Decimal `json:"shipment_total"`
	AdditionalTaxTotal              decimal.Decimal `json:"additional_tax_total"`
	PromoTotal                      decimal.Decimal `json:"promo_total"`
	Channel                         string          `json:"channel"`
	IncludedTaxTotal                decimal.Decimal `json:"included_tax_total"`
	ItemCount                       int             `json:"item_count"`
	ApproverID                      *int64          `json:"approver_id"`
	ApprovedAt                      Timestamp       `json:"approved_at"`
	ConfirmationDelivered           bool            `json:"confirmation_delivered"`
	ConsideredRisky                 bool            `json:"considered_risky"`
	Token                           string          `json:"token"`
	CanceledAt                      Timestamp       `json:"canceled_at"`
	CancelerID                      *int64          `json:"canceler_id"`
	StoreID                         int64           `json:"store_id"`
	StateLockVersion                int             `json:"state_lock_version"`
	TaxableAdjustmentTotal          decimal.Decimal `json:"taxable_adjustment_total"`
	NonTaxableAdjustmentTotal       decimal.Decimal `json:"non_taxable_adjustment_total"`
	StoreOwnerNotificationDelivered *bool           `json:"store_owner_notification_delivered"`
	InternalNote                    *string         `json:"internal_note"`
}

// IsGuestPlaceholder reports whether an address id is a guest placeholder
// that must be replaced by a synthesized address.
func IsGuestPlaceholder(id *int64) bool {
	return id != nil && *id < 0
}

// OrderRecord is an order with its foreign keys and timestamps resolved
// against the target database.
type OrderRecord struct {
	*Order

	UserID        *int64
	CreatedByID   *int64
	BillAddressID *int64
	ShipAddressID *int64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	ApprovedAt  *time.Time
	CanceledAt  *time.Time
}

// OrderTimeline is the minimal order view used to plan state changes.
type OrderTimeline struct {
	ID            int64
	Number        string
	UserID        *int64
	State         string
	PaymentState  string
	ShipmentState string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Timeline returns the planning view of a resolved order.
func (r *OrderRecord) Timeline() OrderTimeline {
	t := OrderTimeline{
		ID:        r.ID,
		Number:    r.Number,
		UserID:    r.UserID,
		State:     r.State,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PaymentState != nil {
		t.PaymentState = *r.PaymentState
	}
	if r.ShipmentState != nil {
		t.ShipmentState = *r.ShipmentState
	}
	return t
}

// Address is a spree_addresses row.
type Address struct {
	ID               int64     `json:"id"`
	FirstName        string    `json:"firstname"`
	LastName         string    `json:"lastname"`
	Address1         string    `json:"address1"`
	Address2         *string   `json:"address2"`
	City             string    `json:"city"`
	Zipcode          string    `json:"zipcode"`
	Phone            string    `json:"phone"`
	StateName        string    `json:"state_name"`
	CountryID        int64     `json:"country_id"`
	Company          *string   `json:"company"`
	AlternativePhone *string   `json:"alternative_phone"`
	UserID           *int64    `json:"user_id"`
	Label            *string   `json:"label"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// User is a user record from the content source.
type User struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	IsCustomer bool   `json:"is_customer"`
}

// GuestOrder is an order without a user that is missing an address.
type GuestOrder struct {
	ID        int64
	Number    string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
