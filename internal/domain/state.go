package domain

import "time"

// Order states.
const (
	OrderStateCart           = "cart"
	OrderStateAddress        = "address"
	OrderStateDelivery       = "delivery"
	OrderStatePayment        = "payment"
	OrderStateConfirm        = "confirm"
	OrderStateComplete       = "complete"
	OrderStateCanceled       = "canceled"
	OrderStateAwaitingReturn = "awaiting_return"
	OrderStateReturned       = "returned"
)

// Payment states.
const (
	PaymentStateBalanceDue = "balance_due"
	PaymentStatePaid       = "paid"
	PaymentStateCreditOwed = "credit_owed"
	PaymentStateVoid       = "void"
	PaymentStateFailed     = "failed"
)

// Shipment states.
const (
	ShipmentStatePending   = "pending"
	ShipmentStateReady     = "ready"
	ShipmentStateBackorder = "backorder"
	ShipmentStatePartial   = "partial"
	ShipmentStateShipped   = "shipped"
	ShipmentStateCanceled  = "canceled"
)

// State machine names and stateful types recorded on spree_state_changes.
const (
	MachineOrder    = "order"
	MachinePayment  = "payment"
	MachineShipment = "shipment"

	StatefulTypeOrder    = "Spree::Order"
	StatefulTypeShipment = "Spree::Shipment"
)

// StateChange is one edge of an entity's state history.
type StateChange struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	StatefulType  string    `json:"stateful_type"`
	StatefulID    int64     `json:"stateful_id"`
	PreviousState string    `json:"previous_state"`
	NextState     string    `json:"next_state"`
	UserID        *int64    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// LatestState is the most recent transition for one (stateful_id, name).
type LatestState struct {
	StatefulID int64
	Name       string
	State      string
	CreatedAt  time.Time
}

// OrderTransitions is the order state graph.
func OrderTransitions() map[string][]string {
	return map[string][]string{
		OrderStateCart:           {OrderStateAddress, OrderStateCanceled},
		OrderStateAddress:        {OrderStateDelivery, OrderStateCanceled},
		OrderStateDelivery:       {OrderStatePayment, OrderStateCanceled},
		OrderStatePayment:        {OrderStateConfirm, OrderStateComplete, OrderStateCanceled},
		OrderStateConfirm:        {OrderStateComplete, OrderStateCanceled},
		OrderStateComplete:       {OrderStateAwaitingReturn},
		OrderStateAwaitingReturn: {OrderStateReturned},
		OrderStateCanceled:       {},
		OrderStateReturned:       {},
	}
}

// PaymentTransitions is the payment state graph.
func PaymentTransitions() map[string][]string {
	return map[string][]string{
		PaymentStateBalanceDue: {PaymentStatePaid, PaymentStateVoid, PaymentStateFailed},
		PaymentStatePaid:       {PaymentStateCreditOwed, PaymentStateVoid},
		PaymentStateCreditOwed: {},
		PaymentStateVoid:       {},
		PaymentStateFailed:     {},
	}
}

// ShipmentTransitions is the shipment state graph.
func ShipmentTransitions() map[string][]string {
	return map[string][]string{
		ShipmentStatePending:   {ShipmentStateReady, ShipmentStateBackorder, ShipmentStateCanceled},
		ShipmentStateBackorder: {ShipmentStateReady, ShipmentStateCanceled},
		ShipmentStateReady:     {ShipmentStateShipped, ShipmentStatePartial, ShipmentStateCanceled},
		ShipmentStatePartial:   {},
		ShipmentStateShipped:   {},
		ShipmentStateCanceled:  {},
	}
}

// IsValidOrderState checks if a state belongs to the order graph.
func IsValidOrderState(state string) bool {
	_, ok := OrderTransitions()[state]
	return ok
}

// CanTransition reports whether from -> to is an edge of graph.
func CanTransition(graph map[string][]string, from, to string) bool {
	for _, next := range graph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentBlocksShipping reports whether a payment state forbids a shipped
// shipment.
func PaymentBlocksShipping(paymentState string) bool {
	switch paymentState {
	case PaymentStateVoid, PaymentStateBalanceDue, PaymentStateCreditOwed, PaymentStateFailed:
		return true
	}
	return false
}

// OrderBlocksShipping reports whether an order state forbids a shipped
// shipment.
func OrderBlocksShipping(orderState string) bool {
	switch orderState {
	case OrderStateCanceled, OrderStateAwaitingReturn, OrderStateReturned:
		return true
	}
	return false
}

// ReachedComplete reports whether the order passed through complete.
func ReachedComplete(orderState string) bool {
	switch orderState {
	case OrderStateComplete, OrderStateAwaitingReturn, OrderStateReturned:
		return true
	}
	return false
}
