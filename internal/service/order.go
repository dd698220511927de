package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/internal/statemachine"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// OrderSource yields the order documents and their dependents.
type OrderSource interface {
	Users() ([]domain.User, error)
	Orders() ([]domain.Order, error)
	LineItems() ([]domain.LineItem, error)
	Shipments() ([]domain.Shipment, error)
	ShippingRates() ([]domain.ShippingRate, error)
}

// OrderRepositories groups the repositories the order stage writes through.
type OrderRepositories struct {
	Orders       repository.OrderRepository
	Fulfillment  repository.FulfillmentRepository
	StateChanges repository.StateChangeRepository
	Sequences    repository.Sequencer
}

// OrderOptions tunes the randomness of the order stage.
type OrderOptions struct {
	// ShipReuseBillProbability is the chance that a guest order ships to
	// its synthesized billing address.
	ShipReuseBillProbability float64
	Planner                  statemachine.Options
	// Seed makes address synthesis and history planning reproducible.
	// Zero seeds from the clock.
	Seed uint64
}

// DefaultOrderOptions returns the stage defaults.
func DefaultOrderOptions() OrderOptions {
	return OrderOptions{
		ShipReuseBillProbability: 0.7,
		Planner:                  statemachine.DefaultOptions(),
	}
}

// OrderReport summarizes an orders stage.
type OrderReport struct {
	Orders         domain.Counts     `json:"orders"`
	LineItems      domain.Counts     `json:"line_items"`
	Shipments      domain.Counts     `json:"shipments"`
	ShippingRates  domain.Counts     `json:"shipping_rates"`
	StateChanges   StateChangeReport `json:"state_changes"`
	GuestAddresses domain.Counts     `json:"guest_addresses"`
}

// orderRefs are the lookups shared by every order.
type orderRefs struct {
	dbUsers   map[int64]bool
	byEmail   map[string]int64
	customers map[int64]bool
	addresses map[int64]bool
}

// OrderSeeder writes orders and then, strictly after all of them, their
// line items, shipments, shipping rates, state histories and guest
// addresses.
type OrderSeeder struct {
	repos     OrderRepositories
	source    OrderSource
	cfg       OrderOptions
	opts      Options
	logger    *slog.Logger
	rng       *rand.Rand
	addresses *addressFaker
	planner   *statemachine.Planner
}

// NewOrderSeeder creates a new order seeder.
func NewOrderSeeder(repos OrderRepositories, source OrderSource, cfg OrderOptions, opts Options) *OrderSeeder {
	opts = opts.withDefaults()
	rng := statemachine.NewRand(cfg.Seed)
	return &OrderSeeder{
		repos:     repos,
		source:    source,
		cfg:       cfg,
		opts:      opts,
		logger:    opts.Logger.With(slog.String("stage", StageOrders)),
		rng:       rng,
		addresses: newAddressFaker(rng),
		planner:   statemachine.NewPlanner(cfg.Planner, rng),
	}
}

// Run seeds the orders stage. Setup errors abort it; per-entity failures are
// logged and counted.
func (s *OrderSeeder) Run(ctx context.Context) (*OrderReport, error) {
	report := &OrderReport{}

	timelines, counts, err := s.seedOrders(ctx)
	if err != nil {
		return nil, err
	}
	report.Orders = counts

	if report.LineItems, err = s.seedLineItems(ctx); err != nil {
		return nil, err
	}
	if report.Shipments, err = s.seedShipments(ctx); err != nil {
		return nil, err
	}
	if report.ShippingRates, err = s.seedShippingRates(ctx); err != nil {
		return nil, err
	}
	if report.StateChanges, err = s.seedStateChanges(ctx, timelines); err != nil {
		return nil, err
	}
	if report.GuestAddresses, err = s.backfillGuests(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("orders stage complete",
		slog.Int64("orders", report.Orders.Inserted),
		slog.Int64("orders_existing", report.Orders.Existing),
		slog.Int64("orders_failed", report.Orders.Failed),
		slog.Int64("line_items", report.LineItems.Inserted),
		slog.Int64("shipments", report.Shipments.Inserted),
		slog.Int64("shipping_rates", report.ShippingRates.Inserted),
		slog.Int64("state_changes", report.StateChanges.Changes),
		slog.Int64("guest_addresses", report.GuestAddresses.Inserted),
	)
	return report, nil
}

func (s *OrderSeeder) seedOrders(ctx context.Context) ([]domain.OrderTimeline, domain.Counts, error) {
	orders, err := s.source.Orders()
	if err != nil {
		return nil, domain.Counts{}, err
	}
	refs, err := s.loadRefs(ctx)
	if err != nil {
		return nil, domain.Counts{}, err
	}

	var (
		tally     domain.Tally
		timelines []domain.OrderTimeline
	)
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return nil, domain.Counts{}, err
		}
		o := &orders[i]
		outcome, rec, err := s.seedOrder(ctx, o, refs)
		outcome = outcomeOf(outcome, err)
		record(&tally, s.opts.Observer, StageOrders, EntityOrder, outcome)
		logOutcome(s.logger, "order", outcome, err, slog.Int64("order_id", o.ID), slog.String("number", o.Number))
		if outcome == domain.OutcomeInserted {
			timelines = append(timelines, rec.Timeline())
		}
	}

	counts := tally.Snapshot()
	if counts.Inserted > 0 {
		if err := resync(ctx, s.repos.Sequences, s.logger, repository.TableOrders, repository.TableAddresses); err != nil {
			return nil, domain.Counts{}, err
		}
	}
	s.logger.Info("orders seeded",
		slog.Int64("inserted", counts.Inserted),
		slog.Int64("existing", counts.Existing),
		slog.Int64("skipped", counts.Skipped),
		slog.Int64("failed", counts.Failed),
	)
	return timelines, counts, nil
}

func (s *OrderSeeder) loadRefs(ctx context.Context) (*orderRefs, error) {
	users, err := s.source.Users()
	if err != nil {
		return nil, err
	}
	dbUsers, err := s.repos.Orders.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Setup("list users", err)
	}
	addressIDs, err := s.repos.Orders.AddressIDs(ctx)
	if err != nil {
		return nil, apperrors.Setup("list addresses", err)
	}

	refs := &orderRefs{
		dbUsers:   make(map[int64]bool, len(dbUsers)),
		byEmail:   make(map[string]int64, len(dbUsers)),
		customers: make(map[int64]bool, len(users)),
		addresses: setOf(addressIDs),
	}
	for _, u := range dbUsers {
		refs.dbUsers[u.ID] = true
		if u.Email != "" {
			refs.byEmail[strings.ToLower(u.Email)] = u.ID
		}
	}
	for _, u := range users {
		if u.IsCustomer {
			refs.customers[u.ID] = true
		}
	}
	s.logger.Debug("loaded order references",
		slog.Int("users", len(dbUsers)), slog.Int("customers", len(refs.customers)), slog.Int("addresses", len(addressIDs)))
	return refs, nil
}

// seedOrder resolves one order's user, addresses and times and writes it.
func (s *OrderSeeder) seedOrder(ctx context.Context, o *domain.Order, refs *orderRefs) (domain.Outcome, *domain.OrderRecord, error) {
	exists, err := s.repos.Orders.OrderExists(ctx, o.ID, o.Number)
	if err != nil {
		return domain.OutcomeFailed, nil, err
	}
	if exists {
		return domain.OutcomeExisting, nil, nil
	}

	attrs := []any{slog.String("number", o.Number)}
	now := s.opts.Now()
	rec := &domain.OrderRecord{Order: o}
	rec.UserID, rec.CreatedByID = s.resolveUser(o, refs)
	rec.CreatedAt = s.timeOr(o.CreatedAt, now, "created_at", attrs...)
	rec.UpdatedAt = s.timeOr(o.UpdatedAt, rec.CreatedAt, "updated_at", attrs...)
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.CompletedAt = s.optionalTime(o.CompletedAt, "completed_at", attrs...)
	rec.ApprovedAt = s.optionalTime(o.ApprovedAt, "approved_at", attrs...)
	rec.CanceledAt = s.optionalTime(o.CanceledAt, "canceled_at", attrs...)

	bill := s.resolveAddress(o.BillAddressID, refs, "bill_address_id", attrs...)
	ship := s.resolveAddress(o.ShipAddressID, refs, "ship_address_id", attrs...)

	write := func(repo repository.OrderRepository) error {
		rec.BillAddressID, rec.ShipAddressID = bill, ship
		if domain.IsGuestPlaceholder(o.BillAddressID) {
			id, err := repo.InsertAddress(ctx, s.addresses.New(rec.CreatedAt, rec.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert bill address: %w", err)
			}
			rec.BillAddressID = &id
		}
		if domain.IsGuestPlaceholder(o.ShipAddressID) {
			if rec.BillAddressID != nil && s.rng.Float64() < s.cfg.ShipReuseBillProbability {
				id := *rec.BillAddressID
				rec.ShipAddressID = &id
			} else {
				id, err := repo.InsertAddress(ctx, s.addresses.New(rec.CreatedAt, rec.UpdatedAt))
				if err != nil {
					return fmt.Errorf("insert ship address: %w", err)
				}
				rec.ShipAddressID = &id
			}
		}
		return repo.InsertOrder(ctx, rec)
	}
	if s.opts.EntityTransactions {
		err = s.repos.Orders.WithinTx(ctx, write)
	} else {
		err = write(s.repos.Orders)
	}
	if err != nil {
		if apperrors.IsUniqueViolation(err) {
			return domain.OutcomeExisting, nil, nil
		}
		return domain.OutcomeFailed, nil, err
	}
	return domain.OutcomeInserted, rec, nil
}

// resolveUser keeps the order's user only when it exists and is a customer,
// then tries the order email, and otherwise turns the order into a guest
// order. It returns the user and created_by ids.
func (s *OrderSeeder) resolveUser(o *domain.Order, refs *orderRefs) (*int64, *int64) {
	if o.UserID != nil && refs.dbUsers[*o.UserID] && refs.customers[*o.UserID] {
		uid := *o.UserID
		return &uid, &uid
	}

	if o.Email != "" {
		if id, ok := refs.byEmail[strings.ToLower(o.Email)]; ok {
			if refs.customers[id] {
				if o.UserID != nil {
					s.logger.Warn("order user replaced by email match",
						slog.String("number", o.Number), slog.Int64("user_id", *o.UserID), slog.Int64("matched_user_id", id))
				}
				uid := id
				return &uid, &uid
			}
			s.logger.Warn("order email belongs to a non-customer, converting to guest order",
				slog.String("number", o.Number), slog.Int64("user_id", id))
			return nil, nil
		}
	}

	if o.UserID != nil {
		s.logger.Warn("order user not found, converting to guest order",
			slog.String("number", o.Number), slog.Int64("user_id", *o.UserID))
	}
	return nil, nil
}

// resolveAddress returns the address id to store before guest placeholders
// are synthesized. Unknown addresses are dropped.
func (s *OrderSeeder) resolveAddress(id *int64, refs *orderRefs, field string, attrs ...any) *int64 {
	if id == nil || *id == 0 || domain.IsGuestPlaceholder(id) {
		return nil
	}
	if !refs.addresses[*id] {
		s.logger.Warn("address not found, clearing reference",
			append(attrs, slog.String("field", field), slog.Int64("address_id", *id))...)
		return nil
	}
	v := *id
	return &v
}

// timeOr returns the parsed timestamp or fallback, warning when the source
// carried an unparseable value.
func (s *OrderSeeder) timeOr(ts domain.Timestamp, fallback time.Time, field string, attrs ...any) time.Time {
	if ts.Valid {
		return ts.Time
	}
	if ts.Present() {
		s.logger.Warn("invalid timestamp, using default",
			append(attrs, slog.String("field", field), slog.String("value", ts.Raw))...)
	}
	return fallback
}

func (s *OrderSeeder) optionalTime(ts domain.Timestamp, field string, attrs ...any) *time.Time {
	if ts.Present() && !ts.Valid {
		s.logger.Warn("invalid timestamp, storing null",
			append(attrs, slog.String("field", field), slog.String("value", ts.Raw))...)
	}
	return ts.Ptr()
}

// backfillGuests gives every guest order still lacking an address one
// synthesized address used for both billing and shipping.
func (s *OrderSeeder) backfillGuests(ctx context.Context) (domain.Counts, error) {
	guests, err := s.repos.Orders.GuestOrdersMissingAddress(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list guest orders", err)
	}

	var tally domain.Tally
	for _, g := range guests {
		write := func(repo repository.OrderRepository) error {
			id, err := repo.InsertAddress(ctx, s.addresses.New(g.CreatedAt, g.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert guest address: %w", err)
			}
			return repo.SetOrderAddresses(ctx, g.ID, id, id)
		}
		if s.opts.EntityTransactions {
			err = s.repos.Orders.WithinTx(ctx, write)
		} else {
			err = write(s.repos.Orders)
		}
		outcome := outcomeOf(domain.OutcomeInserted, err)
		record(&tally, s.opts.Observer, StageOrders, EntityGuestAddress, outcome)
		logOutcome(s.logger, "guest address", outcome, err, slog.Int64("order_id", g.ID), slog.String("number", g.Number))
	}

	counts := tally.Snapshot()
	if len(guests) > 0 {
		s.logger.Info("guest addresses backfilled", slog.Int64("updated", counts.Inserted), slog.Int64("failed", counts.Failed))
	}
	return counts, nil
}
