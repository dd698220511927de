package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

type stateView struct{ *Store }

func (v stateView) WithinTx(_ context.Context, fn func(repository.StateChangeRepository) error) error {
	return fn(v)
}

func (s *Store) NextStateChangeID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID int64
	for id := range s.stateChanges {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1, nil
}

func (s *Store) ShipmentsForOrders(_ context.Context, orderIDs []int64) ([]domain.ShipmentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}
	var out []domain.ShipmentState
	for _, id := range keysOf(s.shipments) {
		sh := s.shipments[id]
		if wanted[sh.OrderID] {
			out = append(out, domain.ShipmentState{ID: sh.ID, OrderID: sh.OrderID, State: sh.State, CreatedAt: sh.CreatedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *Store) InsertStateChange(_ context.Context, c *domain.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TableStateChanges, c.ID, func(id int64) bool {
		_, ok := s.stateChanges[id]
		return ok
	}); err != nil {
		return fmt.Errorf("insert state change %d: %w", c.ID, err)
	}
	s.stateChanges[c.ID] = *c
	return nil
}

func (s *Store) SetShipmentState(_ context.Context, shipmentID int64, state string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return nil
	}
	sh.State = state
	if at.After(sh.UpdatedAt) {
		sh.UpdatedAt = at
	}
	return nil
}

func (s *Store) LatestStates(_ context.Context, name string, statefulIDs []int64) ([]domain.LatestState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[int64]bool, len(statefulIDs))
	for _, id := range statefulIDs {
		wanted[id] = true
	}
	latest := make(map[int64]domain.StateChange)
	for _, c := range s.stateChanges {
		if c.Name != name || !wanted[c.StatefulID] {
			continue
		}
		cur, ok := latest[c.StatefulID]
		if !ok || c.CreatedAt.After(cur.CreatedAt) || (c.CreatedAt.Equal(cur.CreatedAt) && c.ID > cur.ID) {
			latest[c.StatefulID] = c
		}
	}
	out := make([]domain.LatestState, 0, len(latest))
	for _, id := range keysOf(latest) {
		c := latest[id]
		out = append(out, domain.LatestState{StatefulID: id, Name: name, State: c.NextState, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

func (s *Store) PaymentStates(_ context.Context, orderIDs []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[int64]string, len(orderIDs))
	for _, id := range orderIDs {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		if o.PaymentState != nil {
			states[id] = *o.PaymentState
		} else {
			states[id] = ""
		}
	}
	return states, nil
}

func (s *Store) ApplyOrderState(_ context.Context, orderID int64, column, state string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	switch column {
	case repository.OrderStateColumn:
		o.State = state
	case repository.PaymentStateColumn:
		v := state
		o.PaymentState = &v
	case repository.ShipmentStateColumn:
		v := state
		o.ShipmentState = &v
	default:
		return fmt.Errorf("unknown order state column %q", column)
	}
	if at.After(o.UpdatedAt) {
		o.UpdatedAt = at
	}
	return nil
}

// StateChangesFor returns the changes of one machine and entity, oldest first.
func (s *Store) StateChangesFor(name string, statefulID int64) []domain.StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StateChange
	for _, c := range s.stateChanges {
		if c.Name == name && c.StatefulID == statefulID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
