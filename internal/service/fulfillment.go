package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// seedLineItems writes line items whose order exists. A variant id that is
// not a stored variant is read as the ordinal of the variant in id order.
func (s *OrderSeeder) seedLineItems(ctx context.Context) (domain.Counts, error) {
	items, err := s.source.LineItems()
	if err != nil {
		return domain.Counts{}, err
	}
	orderIDs, err := s.repos.Fulfillment.OrderIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list orders", err)
	}
	variantIDs, err := s.repos.Fulfillment.VariantIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list variants", err)
	}
	orders, variants := setOf(orderIDs), setOf(variantIDs)

	var tally domain.Tally
	for i := range items {
		li := items[i]
		outcome, err := s.seedLineItem(ctx, &li, orders, variants, variantIDs)
		record(&tally, s.opts.Observer, StageOrders, EntityLineItem, outcome)
		logOutcome(s.logger, "line item", outcome, err,
			slog.Int64("line_item_id", li.ID), slog.Int64("order_id", li.OrderID))
	}

	counts := tally.Snapshot()
	if counts.Inserted > 0 {
		if err := resync(ctx, s.repos.Sequences, s.logger, repository.TableLineItems); err != nil {
			return domain.Counts{}, err
		}
	}
	s.logger.Info("line items seeded", slog.Int64("inserted", counts.Inserted), slog.Int64("skipped", counts.Skipped), slog.Int64("failed", counts.Failed))
	return counts, nil
}

func (s *OrderSeeder) seedLineItem(ctx context.Context, li *domain.LineItem, orders, variants map[int64]bool, variantIDs []int64) (domain.Outcome, error) {
	if !orders[li.OrderID] {
		return domain.OutcomeSkipped, apperrors.Skipped(fmt.Sprintf("order %d not found", li.OrderID))
	}
	switch {
	case variants[li.VariantID]:
	case li.VariantID >= 1 && li.VariantID <= int64(len(variantIDs)):
		li.VariantID = variantIDs[li.VariantID-1]
	default:
		return domain.OutcomeSkipped, apperrors.Skipped(fmt.Sprintf("variant %d not found", li.VariantID))
	}

	attrs := []any{slog.Int64("line_item_id", li.ID)}
	at := s.rowTimes(li.CreatedAt, li.UpdatedAt, attrs...)
	return insertOutcome(s.repos.Fulfillment.InsertLineItem(ctx, li, at))
}

// seedShipments writes shipments whose order exists. Unknown stock locations
// fall back to the first one; unknown addresses are cleared.
func (s *OrderSeeder) seedShipments(ctx context.Context) (domain.Counts, error) {
	shipments, err := s.source.Shipments()
	if err != nil {
		return domain.Counts{}, err
	}
	orderIDs, err := s.repos.Fulfillment.OrderIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list orders", err)
	}
	addressIDs, err := s.repos.Fulfillment.AddressIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list addresses", err)
	}
	locationIDs, err := s.repos.Fulfillment.StockLocationIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list stock locations", err)
	}
	if len(shipments) > 0 && len(locationIDs) == 0 {
		return domain.Counts{}, apperrors.Setup("no stock locations defined", nil)
	}
	orders, addresses, locations := setOf(orderIDs), setOf(addressIDs), setOf(locationIDs)

	var tally domain.Tally
	for i := range shipments {
		sh := shipments[i]
		attrs := []any{slog.Int64("shipment_id", sh.ID), slog.String("number", sh.Number)}

		var (
			outcome domain.Outcome
			err     error
		)
		if !orders[sh.OrderID] {
			outcome, err = domain.OutcomeSkipped, apperrors.Skipped(fmt.Sprintf("order %d not found", sh.OrderID))
		} else {
			if !locations[sh.StockLocationID] {
				s.logger.Warn("stock location not found, using default",
					append(attrs, slog.Int64("stock_location_id", sh.StockLocationID), slog.Int64("default_id", locationIDs[0]))...)
				sh.StockLocationID = locationIDs[0]
			}
			if sh.AddressID != nil && !addresses[*sh.AddressID] {
				s.logger.Warn("address not found, clearing reference", append(attrs, slog.Int64("address_id", *sh.AddressID))...)
				sh.AddressID = nil
			}
			at := s.rowTimes(sh.CreatedAt, sh.UpdatedAt, attrs...)
			outcome, err = insertOutcome(s.repos.Fulfillment.InsertShipment(ctx, &sh, at, sh.ShippedAt.Ptr()))
		}
		record(&tally, s.opts.Observer, StageOrders, EntityShipment, outcome)
		logOutcome(s.logger, "shipment", outcome, err, attrs...)
	}

	counts := tally.Snapshot()
	if counts.Inserted > 0 {
		if err := resync(ctx, s.repos.Sequences, s.logger, repository.TableShipments); err != nil {
			return domain.Counts{}, err
		}
	}
	s.logger.Info("shipments seeded", slog.Int64("inserted", counts.Inserted), slog.Int64("skipped", counts.Skipped), slog.Int64("failed", counts.Failed))
	return counts, nil
}

// seedShippingRates writes the optional shipping rates. Existing ids are left
// untouched.
func (s *OrderSeeder) seedShippingRates(ctx context.Context) (domain.Counts, error) {
	rates, err := s.source.ShippingRates()
	if err != nil {
		return domain.Counts{}, err
	}
	if len(rates) == 0 {
		return domain.Counts{}, nil
	}
	shipmentIDs, err := s.repos.Fulfillment.ShipmentIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list shipments", err)
	}
	methodIDs, err := s.repos.Fulfillment.ShippingMethodIDs(ctx)
	if err != nil {
		return domain.Counts{}, apperrors.Setup("list shipping methods", err)
	}
	shipments, methods := setOf(shipmentIDs), setOf(methodIDs)

	var tally domain.Tally
	for i := range rates {
		r := &rates[i]
		attrs := []any{slog.Int64("shipping_rate_id", r.ID), slog.Int64("shipment_id", r.ShipmentID)}

		var (
			outcome domain.Outcome
			err     error
		)
		switch {
		case !shipments[r.ShipmentID]:
			outcome, err = domain.OutcomeSkipped, apperrors.Skipped(fmt.Sprintf("shipment %d not found", r.ShipmentID))
		case !methods[r.ShippingMethodID]:
			outcome, err = domain.OutcomeSkipped, apperrors.Skipped(fmt.Sprintf("shipping method %d not found", r.ShippingMethodID))
		default:
			var inserted bool
			inserted, err = s.repos.Fulfillment.InsertShippingRate(ctx, r, s.rowTimes(r.CreatedAt, r.UpdatedAt, attrs...))
			outcome = domain.OutcomeInserted
			if err != nil {
				outcome = outcomeOf(domain.OutcomeFailed, err)
			} else if !inserted {
				outcome = domain.OutcomeExisting
			}
		}
		record(&tally, s.opts.Observer, StageOrders, EntityShippingRate, outcome)
		logOutcome(s.logger, "shipping rate", outcome, err, attrs...)
	}

	counts := tally.Snapshot()
	if counts.Inserted > 0 {
		if err := resync(ctx, s.repos.Sequences, s.logger, repository.TableShippingRates); err != nil {
			return domain.Counts{}, err
		}
	}
	s.logger.Info("shipping rates seeded", slog.Int64("inserted", counts.Inserted), slog.Int64("skipped", counts.Skipped), slog.Int64("failed", counts.Failed))
	return counts, nil
}

// rowTimes resolves a dependent row's timestamps, defaulting to now.
func (s *OrderSeeder) rowTimes(created, updated domain.Timestamp, attrs ...any) repository.RowTimes {
	var at repository.RowTimes
	at.CreatedAt = s.timeOr(created, s.opts.Now(), "created_at", attrs...)
	at.UpdatedAt = s.timeOr(updated, at.CreatedAt, "updated_at", attrs...)
	if at.UpdatedAt.Before(at.CreatedAt) {
		at.UpdatedAt = at.CreatedAt
	}
	return at
}
