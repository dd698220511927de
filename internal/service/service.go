// Package service implements the seeding stages: products, images and
// orders with their line items, shipments, rates and state histories.
package service

import (
	"log/slog"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// Stage names, used for logging, metrics and events.
const (
	StageProducts = "products"
	StageImages   = "images"
	StageOrders   = "orders"
)

// Entity names reported to an Observer.
const (
	EntityProduct      = "product"
	EntityImage        = "image"
	EntityOrder        = "order"
	EntityLineItem     = "line_item"
	EntityShipment     = "shipment"
	EntityShippingRate = "shipping_rate"
	EntityStateChange  = "state_change"
	EntityGuestAddress = "guest_address"
)

// Observer receives the outcome of every seeded entity.
type Observer interface {
	Observe(stage, entity string, outcome domain.Outcome)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, domain.Outcome) {}

// Options are the settings shared by every stage.
type Options struct {
	// EntityTransactions wraps each entity's multi-table write in one
	// transaction.
	EntityTransactions bool
	Observer           Observer
	Logger             *slog.Logger
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// record tallies an outcome and forwards it to the observer.
func record(t *domain.Tally, obs Observer, stage, entity string, o domain.Outcome) {
	t.Record(o)
	obs.Observe(stage, entity, o)
}

// logOutcome logs one entity outcome at the level matching its kind.
// Inserted rows are only logged at debug.
func logOutcome(logger *slog.Logger, msg string, o domain.Outcome, err error, attrs ...any) {
	switch o {
	case domain.OutcomeInserted:
		logger.Debug(msg+" inserted", attrs...)
	case domain.OutcomeExisting:
		logger.Info(msg+" already exists", attrs...)
	case domain.OutcomeSkipped:
		if err != nil {
			attrs = append(attrs, slog.String("reason", err.Error()))
		}
		logger.Warn(msg+" skipped", attrs...)
	default:
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.Error("failed to seed "+msg, attrs...)
	}
}

// insertOutcome classifies the error of an explicit-id insert: a duplicate
// key means the row is already present.
func insertOutcome(err error) (domain.Outcome, error) {
	switch {
	case err == nil:
		return domain.OutcomeInserted, nil
	case apperrors.IsUniqueViolation(err):
		return domain.OutcomeExisting, nil
	default:
		return outcomeOf(domain.OutcomeFailed, err), err
	}
}

func setOf(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
