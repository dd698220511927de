// Package statemachine reconstructs plausible order, payment and shipment
// state histories that end in a given final state.
package statemachine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
)

// Edge is one transition of a state machine.
type Edge struct {
	From string
	To   string
}

// Options tunes the random choices made while planning paths.
type Options struct {
	SkipConfirmProbability      float64
	DirectVoidProbability       float64
	UserAttributionProbability  float64
	ShippedBackorderProbability float64
	ReadyBackorderProbability   float64
}

// DefaultOptions returns the planning probabilities used by the seeder.
func DefaultOptions() Options {
	return Options{
		SkipConfirmProbability:      0.3,
		DirectVoidProbability:       0.7,
		UserAttributionProbability:  0.8,
		ShippedBackorderProbability: 0.1,
		ReadyBackorderProbability:   0.2,
	}
}

// Planner plans state histories. It is not safe for concurrent use.
type Planner struct {
	opts Options
	rng  *rand.Rand
}

// NewPlanner creates a Planner drawing from rng.
func NewPlanner(opts Options, rng *rand.Rand) *Planner {
	return &Planner{opts: opts, rng: rng}
}

// NewRand returns a PCG source seeded with seed, or with the current time
// when seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

var checkoutSteps = []string{
	domain.OrderStateCart,
	domain.OrderStateAddress,
	domain.OrderStateDelivery,
	domain.OrderStatePayment,
	domain.OrderStateConfirm,
}

// chain returns the edges walking states in order.
func chain(states ...string) []Edge {
	if len(states) < 2 {
		return nil
	}
	edges := make([]Edge, 0, len(states)-1)
	for i := 1; i < len(states); i++ {
		edges = append(edges, Edge{From: states[i-1], To: states[i]})
	}
	return edges
}

func (p *Planner) completePath() []Edge {
	states := []string{
		domain.OrderStateCart,
		domain.OrderStateAddress,
		domain.OrderStateDelivery,
		domain.OrderStatePayment,
		domain.OrderStateConfirm,
		domain.OrderStateComplete,
	}
	if p.rng.Float64() < p.opts.SkipConfirmProbability {
		states = append(states[:4:4], domain.OrderStateComplete)
	}
	return chain(states...)
}

// OrderPath returns a walk from cart to final. A cart order has no edges.
func (p *Planner) OrderPath(final string) ([]Edge, error) {
	switch final {
	case domain.OrderStateComplete:
		return p.completePath(), nil
	case domain.OrderStateCanceled:
		stage := p.rng.IntN(len(checkoutSteps))
		states := append([]string{}, checkoutSteps[:stage+1]...)
		return chain(append(states, domain.OrderStateCanceled)...), nil
	case domain.OrderStateAwaitingReturn, domain.OrderStateReturned:
		// Returns always follow the confirmed checkout.
		states := []string{
			domain.OrderStateCart,
			domain.OrderStateAddress,
			domain.OrderStateDelivery,
			domain.OrderStatePayment,
			domain.OrderStateConfirm,
			domain.OrderStateComplete,
			domain.OrderStateAwaitingReturn,
		}
		if final == domain.OrderStateReturned {
			states = append(states, domain.OrderStateReturned)
		}
		return chain(states...), nil
	}

	for i, s := range checkoutSteps {
		if s == final {
			return chain(checkoutSteps[:i+1]...), nil
		}
	}
	return nil, fmt.Errorf("unknown order state %q", final)
}

// PaymentPath returns the payment history ending in final. balance_due and
// unknown states have no edges.
func (p *Planner) PaymentPath(final string) []Edge {
	switch final {
	case domain.PaymentStatePaid:
		return chain(domain.PaymentStateBalanceDue, domain.PaymentStatePaid)
	case domain.PaymentStateCreditOwed:
		return chain(domain.PaymentStateBalanceDue, domain.PaymentStatePaid, domain.PaymentStateCreditOwed)
	case domain.PaymentStateVoid:
		if p.rng.Float64() < p.opts.DirectVoidProbability {
			return chain(domain.PaymentStateBalanceDue, domain.PaymentStateVoid)
		}
		return chain(domain.PaymentStateBalanceDue, domain.PaymentStatePaid, domain.PaymentStateVoid)
	case domain.PaymentStateFailed:
		return chain(domain.PaymentStateBalanceDue, domain.PaymentStateFailed)
	}
	return nil
}

// ShipmentMustCancel reports whether a shipment of an order in these final
// states has to end canceled.
func ShipmentMustCancel(orderState, paymentState string) bool {
	return domain.PaymentBlocksShipping(paymentState) || domain.OrderBlocksShipping(orderState)
}

func (p *Planner) cancelPath() []Edge {
	switch p.rng.IntN(3) {
	case 0:
		return chain(domain.ShipmentStatePending, domain.ShipmentStateCanceled)
	case 1:
		return chain(domain.ShipmentStatePending, domain.ShipmentStateBackorder, domain.ShipmentStateCanceled)
	default:
		return chain(domain.ShipmentStatePending, domain.ShipmentStateReady, domain.ShipmentStateCanceled)
	}
}

// ShipmentPath returns the shipment history ending in final, or in canceled
// when forceCancel is set.
func (p *Planner) ShipmentPath(final string, forceCancel bool) []Edge {
	if forceCancel || final == domain.ShipmentStateCanceled {
		return p.cancelPath()
	}
	switch final {
	case domain.ShipmentStateShipped:
		if p.rng.Float64() < p.opts.ShippedBackorderProbability {
			return chain(domain.ShipmentStatePending, domain.ShipmentStateBackorder, domain.ShipmentStateReady, domain.ShipmentStateShipped)
		}
		return chain(domain.ShipmentStatePending, domain.ShipmentStateReady, domain.ShipmentStateShipped)
	case domain.ShipmentStateReady:
		if p.rng.Float64() < p.opts.ReadyBackorderProbability {
			return chain(domain.ShipmentStatePending, domain.ShipmentStateBackorder, domain.ShipmentStateReady)
		}
		return chain(domain.ShipmentStatePending, domain.ShipmentStateReady)
	case domain.ShipmentStatePartial:
		return chain(domain.ShipmentStatePending, domain.ShipmentStateReady, domain.ShipmentStatePartial)
	case domain.ShipmentStateBackorder:
		return chain(domain.ShipmentStatePending, domain.ShipmentStateBackorder)
	}
	return nil
}

// Plan is the reconstructed history of one order. Changes have no IDs yet.
type Plan struct {
	Changes []domain.StateChange
	// CanceledShipments lists shipments whose stored state must be rewritten
	// to canceled.
	CanceledShipments []int64
}

// PlanOrder reconstructs the order, payment and shipment histories of one
// order on a single timeline between its created and updated times.
func (p *Planner) PlanOrder(order domain.OrderTimeline, shipments []domain.ShipmentState) (Plan, error) {
	orderEdges, err := p.OrderPath(order.State)
	if err != nil {
		return Plan{}, fmt.Errorf("plan order %s: %w", order.Number, err)
	}

	var changes []domain.StateChange
	for _, e := range orderEdges {
		var user *int64
		if order.UserID != nil && e.To != domain.OrderStateAddress && e.To != domain.OrderStateComplete &&
			p.rng.Float64() < p.opts.UserAttributionProbability {
			uid := *order.UserID
			user = &uid
		}
		changes = append(changes, newChange(domain.MachineOrder, domain.StatefulTypeOrder, order.ID, e, user))
	}

	if domain.ReachedComplete(order.State) {
		for _, e := range p.PaymentPath(order.PaymentState) {
			changes = append(changes, newChange(domain.MachinePayment, domain.StatefulTypeOrder, order.ID, e, nil))
		}
	}

	var plan Plan
	cancel := ShipmentMustCancel(order.State, order.PaymentState)
	for _, s := range shipments {
		for _, e := range p.ShipmentPath(s.State, cancel) {
			changes = append(changes, newChange(domain.MachineShipment, domain.StatefulTypeShipment, s.ID, e, nil))
		}
		if cancel && s.State != domain.ShipmentStateCanceled {
			plan.CanceledShipments = append(plan.CanceledShipments, s.ID)
		}
	}

	times := Timestamps(p.rng, order.CreatedAt, order.UpdatedAt, len(changes))
	for i := range changes {
		changes[i].CreatedAt = times[i]
	}
	plan.Changes = changes
	return plan, nil
}

func newChange(machine, statefulType string, id int64, e Edge, user *int64) domain.StateChange {
	return domain.StateChange{
		Name:          machine,
		StatefulType:  statefulType,
		StatefulID:    id,
		PreviousState: e.From,
		NextState:     e.To,
		UserID:        user,
	}
}
