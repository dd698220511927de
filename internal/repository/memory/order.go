package memory

import (
	"context"
	"fmt"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

type orderView struct{ *Store }

func (v orderView) WithinTx(_ context.Context, fn func(repository.OrderRepository) error) error {
	return fn(v)
}

func (s *Store) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, domain.User{ID: u.ID, Email: u.Email})
	}
	return out, nil
}

func (s *Store) AddressIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keysOf(s.addresses), nil
}

func (s *Store) InsertAddress(_ context.Context, a *domain.Address) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.assign(repository.TableAddresses, 0, s.hasAddress)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}
	row := *a
	row.ID = id
	s.addresses[id] = row
	return id, nil
}

func (s *Store) OrderExists(_ context.Context, id int64, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; ok {
		return true, nil
	}
	_, ok := s.orderNumbers[number]
	return ok, nil
}

func (s *Store) InsertOrder(_ context.Context, o *domain.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orderNumbers[o.Number]; ok {
		return fmt.Errorf("insert order %s: duplicate key value violates unique constraint", o.Number)
	}
	if _, err := s.assign(repository.TableOrders, o.ID, func(id int64) bool {
		_, ok := s.orders[id]
		return ok
	}); err != nil {
		return fmt.Errorf("insert order %s: %w", o.Number, err)
	}
	order := *o.Order
	rec := *o
	rec.Order = &order
	s.orders[o.ID] = &rec
	s.orderNumbers[o.Number] = o.ID
	return nil
}

func (s *Store) GuestOrdersMissingAddress(context.Context) ([]domain.GuestOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GuestOrder
	for _, id := range keysOf(s.orders) {
		o := s.orders[id]
		if o.UserID != nil || (o.BillAddressID != nil && o.ShipAddressID != nil) {
			continue
		}
		out = append(out, domain.GuestOrder{
			ID: o.ID, Number: o.Number, Email: o.Email, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Store) SetOrderAddresses(_ context.Context, orderID, billAddressID, shipAddressID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	o.BillAddressID = &billAddressID
	o.ShipAddressID = &shipAddressID
	return nil
}

// Order returns a stored order row.
func (s *Store) Order(id int64) (domain.OrderRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.OrderRecord{}, false
	}
	order := *o.Order
	rec := *o
	rec.Order = &order
	return rec, true
}

// Address returns a stored address.
func (s *Store) Address(id int64) (domain.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[id]
	return a, ok
}
