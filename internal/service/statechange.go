package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/internal/statemachine"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// StateChangeReport summarizes history reconstruction.
type StateChangeReport struct {
	// Orders counts the orders whose history was planned.
	Orders  domain.Counts `json:"orders"`
	Changes int64         `json:"changes"`
	// CanceledShipments counts shipments rewritten to canceled.
	CanceledShipments int64 `json:"canceled_shipments"`
	// Backfilled counts denormalized order columns written from the log.
	Backfilled int64 `json:"backfilled"`
	// BackfillFailed counts orders whose denormalized states could not be
	// written.
	BackfillFailed int64 `json:"backfill_failed"`
}

// seedStateChanges plans and writes the state histories of the given orders
// and then derives their denormalized states from the written log.
func (s *OrderSeeder) seedStateChanges(ctx context.Context, orders []domain.OrderTimeline) (StateChangeReport, error) {
	var report StateChangeReport
	if len(orders) == 0 {
		return report, nil
	}

	repo := s.repos.StateChanges
	orderIDs := make([]int64, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}
	shipments, err := repo.ShipmentsForOrders(ctx, orderIDs)
	if err != nil {
		return report, apperrors.Setup("list shipments", err)
	}
	byOrder := make(map[int64][]domain.ShipmentState)
	for _, sh := range shipments {
		byOrder[sh.OrderID] = append(byOrder[sh.OrderID], sh)
	}
	nextID, err := repo.NextStateChangeID(ctx)
	if err != nil {
		return report, apperrors.Setup("read state change id", err)
	}

	var tally domain.Tally
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		plan, err := s.planner.PlanOrder(o, byOrder[o.ID])
		if err == nil {
			for i := range plan.Changes {
				plan.Changes[i].ID = nextID
				nextID++
			}
			err = s.writePlan(ctx, plan)
		}
		outcome := outcomeOf(domain.OutcomeInserted, err)
		record(&tally, s.opts.Observer, StageOrders, EntityStateChange, outcome)
		logOutcome(s.logger, "state history", outcome, err,
			slog.Int64("order_id", o.ID), slog.String("number", o.Number), slog.Int("changes", len(plan.Changes)))
		if err == nil {
			report.Changes += int64(len(plan.Changes))
			report.CanceledShipments += int64(len(plan.CanceledShipments))
		}
	}
	report.Orders = tally.Snapshot()

	if report.Changes > 0 {
		if err := resync(ctx, s.repos.Sequences, s.logger, repository.TableStateChanges); err != nil {
			return report, err
		}
	}

	bf, err := s.backfillStates(ctx, orders, byOrder)
	report.Backfilled, report.BackfillFailed = bf.written, bf.failed
	if err != nil {
		return report, err
	}
	s.logger.Info("state changes seeded",
		slog.Int64("orders", report.Orders.Inserted),
		slog.Int64("failed", report.Orders.Failed),
		slog.Int64("changes", report.Changes),
		slog.Int64("canceled_shipments", report.CanceledShipments),
		slog.Int64("backfilled", report.Backfilled),
		slog.Int64("backfill_failed", report.BackfillFailed),
	)
	return report, nil
}

// writePlan inserts one order's changes and cancels the shipments the plan
// forced to canceled.
func (s *OrderSeeder) writePlan(ctx context.Context, plan statemachine.Plan) error {
	write := func(repo repository.StateChangeRepository) error {
		for i := range plan.Changes {
			if err := repo.InsertStateChange(ctx, &plan.Changes[i]); err != nil {
				return fmt.Errorf("insert state change %d: %w", plan.Changes[i].ID, err)
			}
		}
		for _, id := range plan.CanceledShipments {
			at := lastChangeOf(plan.Changes, domain.MachineShipment, id)
			if err := repo.SetShipmentState(ctx, id, domain.ShipmentStateCanceled, at); err != nil {
				return fmt.Errorf("cancel shipment %d: %w", id, err)
			}
		}
		return nil
	}
	if s.opts.EntityTransactions {
		return s.repos.StateChanges.WithinTx(ctx, write)
	}
	return write(s.repos.StateChanges)
}

func lastChangeOf(changes []domain.StateChange, machine string, statefulID int64) time.Time {
	var at time.Time
	for _, c := range changes {
		if c.Name == machine && c.StatefulID == statefulID && c.CreatedAt.After(at) {
			at = c.CreatedAt
		}
	}
	return at
}

// backfillStates writes each order's state, payment_state and shipment_state
// from the latest change per (stateful_id, name). Order and payment states
// come first so that the shipment pass can see the final payment state; a
// shipment still found shipped under a state that forbids it is corrected to
// canceled. Reading the log is fatal; a failed write only fails its order.
func (s *OrderSeeder) backfillStates(ctx context.Context, orders []domain.OrderTimeline, shipments map[int64][]domain.ShipmentState) (backfill, error) {
	repo := s.repos.StateChanges
	orderIDs := make([]int64, len(orders))
	orderStates := make(map[int64]string, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
		orderStates[o.ID] = o.State
	}

	var res backfill
	failed := make(map[int64]bool)
	fail := func(orderID int64, err error) {
		if failed[orderID] {
			return
		}
		failed[orderID] = true
		res.failed++
		s.opts.Observer.Observe(StageOrders, EntityStateChange, domain.OutcomeFailed)
		s.logger.Error("failed to backfill order states",
			slog.Int64("order_id", orderID), slog.String("error", err.Error()))
	}

	for _, pass := range []struct {
		machine string
		column  string
	}{
		{domain.MachineOrder, repository.OrderStateColumn},
		{domain.MachinePayment, repository.PaymentStateColumn},
	} {
		latest, err := repo.LatestStates(ctx, pass.machine, orderIDs)
		if err != nil {
			return res, fmt.Errorf("latest %s states: %w", pass.machine, err)
		}
		for _, l := range latest {
			if failed[l.StatefulID] {
				continue
			}
			if err := repo.ApplyOrderState(ctx, l.StatefulID, pass.column, l.State, l.CreatedAt); err != nil {
				fail(l.StatefulID, fmt.Errorf("apply %s: %w", pass.column, err))
				continue
			}
			if pass.machine == domain.MachineOrder {
				orderStates[l.StatefulID] = l.State
			}
			res.written++
		}
	}

	payments, err := repo.PaymentStates(ctx, orderIDs)
	if err != nil {
		return res, fmt.Errorf("read payment states: %w", err)
	}

	var shipmentIDs []int64
	for _, id := range orderIDs {
		for _, sh := range shipments[id] {
			shipmentIDs = append(shipmentIDs, sh.ID)
		}
	}
	if len(shipmentIDs) == 0 {
		return res, nil
	}
	latest, err := repo.LatestStates(ctx, domain.MachineShipment, shipmentIDs)
	if err != nil {
		return res, fmt.Errorf("latest shipment states: %w", err)
	}
	byShipment := make(map[int64]domain.LatestState, len(latest))
	for _, l := range latest {
		byShipment[l.StatefulID] = l
	}

	for _, orderID := range orderIDs {
		if failed[orderID] {
			continue
		}
		n, err := s.backfillShipments(ctx, orderID, orderStates[orderID], payments[orderID], shipments[orderID], byShipment)
		res.written += n
		if err != nil {
			fail(orderID, err)
		}
	}
	return res, nil
}

// backfill counts the columns written and the orders whose backfill failed.
type backfill struct {
	written int64
	failed  int64
}

// backfillShipments corrects one order's shipments and writes its
// shipment_state. It returns the number of order columns written.
func (s *OrderSeeder) backfillShipments(ctx context.Context, orderID int64, orderState, paymentState string, shipments []domain.ShipmentState, byShipment map[int64]domain.LatestState) (int64, error) {
	repo := s.repos.StateChanges
	states := make([]domain.LatestState, 0, len(shipments))
	for _, sh := range shipments {
		if l, ok := byShipment[sh.ID]; ok {
			states = append(states, l)
		}
	}
	if len(states) == 0 {
		return 0, nil
	}
	sort.Slice(states, func(i, j int) bool {
		if !states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].CreatedAt.Before(states[j].CreatedAt)
		}
		return states[i].StatefulID < states[j].StatefulID
	})

	for i := range states {
		l := &states[i]
		if l.State != domain.ShipmentStateShipped || !statemachine.ShipmentMustCancel(orderState, paymentState) {
			continue
		}
		if err := repo.SetShipmentState(ctx, l.StatefulID, domain.ShipmentStateCanceled, l.CreatedAt); err != nil {
			return 0, fmt.Errorf("cancel shipment %d: %w", l.StatefulID, err)
		}
		s.logger.Warn("shipped shipment under blocking state corrected to canceled",
			slog.Int64("order_id", orderID), slog.Int64("shipment_id", l.StatefulID), slog.String("payment_state", paymentState))
		l.State = domain.ShipmentStateCanceled
	}

	last := states[len(states)-1]
	if err := repo.ApplyOrderState(ctx, orderID, repository.ShipmentStateColumn, last.State, last.CreatedAt); err != nil {
		return 0, fmt.Errorf("apply %s: %w", repository.ShipmentStateColumn, err)
	}
	return 1, nil
}
