package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

func (s *Store) OrderIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keysOf(s.orders), nil
}

func (s *Store) VariantIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keysOf(s.variants), nil
}

func (s *Store) StockLocationIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCopy(s.stockLocations), nil
}

func (s *Store) ShipmentIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keysOf(s.shipments), nil
}

func (s *Store) ShippingMethodIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCopy(s.shippingMethods), nil
}

func (s *Store) InsertLineItem(_ context.Context, li *domain.LineItem, _ repository.RowTimes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TableLineItems, li.ID, func(id int64) bool {
		_, ok := s.lineItems[id]
		return ok
	}); err != nil {
		return fmt.Errorf("insert line item %d: %w", li.ID, err)
	}
	s.lineItems[li.ID] = *li
	return nil
}

func (s *Store) InsertShipment(_ context.Context, sh *domain.Shipment, at repository.RowTimes, shippedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TableShipments, sh.ID, func(id int64) bool {
		_, ok := s.shipments[id]
		return ok
	}); err != nil {
		return fmt.Errorf("insert shipment %s: %w", sh.Number, err)
	}
	row := &shipmentRow{Shipment: *sh, CreatedAt: at.CreatedAt, UpdatedAt: at.UpdatedAt}
	if shippedAt != nil {
		row.ShippedAt = domain.NewTimestamp(*shippedAt)
	}
	s.shipments[sh.ID] = row
	return nil
}

func (s *Store) InsertShippingRate(_ context.Context, r *domain.ShippingRate, _ repository.RowTimes) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shippingRates[r.ID]; ok {
		return false, nil
	}
	if _, err := s.assign(repository.TableShippingRates, r.ID, nil); err != nil {
		return false, fmt.Errorf("insert shipping rate %d: %w", r.ID, err)
	}
	s.shippingRates[r.ID] = *r
	return true, nil
}

// LineItem returns a stored line item.
func (s *Store) LineItem(id int64) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, ok := s.lineItems[id]
	return li, ok
}

// Shipment returns a stored shipment with its current state.
func (s *Store) Shipment(id int64) (domain.Shipment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		return domain.Shipment{}, false
	}
	return sh.Shipment, true
}
