package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

func product(id int64, slug string) *domain.ProductRecord {
	return &domain.ProductRecord{ID: id, Name: slug, Slug: slug, CreatedAt: time.Now()}
}

func TestStore_ExplicitIDsDoNotAdvanceSequence(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i := int64(1); i <= 3; i++ {
		_, err := s.InsertProduct(ctx, product(i, string(rune('a'+i))))
		require.NoError(t, err)
	}

	// Without a resync the sequence hands out 1 again and collides.
	_, err := s.InsertProduct(ctx, product(0, "late"))
	require.Error(t, err)
	assert.True(t, apperrors.IsUniqueViolation(err))
}

func TestStore_ResyncSequence(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i := int64(1); i <= 5; i++ {
		_, err := s.InsertProduct(ctx, product(i, string(rune('a'+i))))
		require.NoError(t, err)
	}
	next, err := s.ResyncSequence(ctx, repository.TableProducts)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next)

	id, err := s.InsertProduct(ctx, product(0, "late"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), id)
}

func TestStore_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.InsertProduct(ctx, product(1, "tee"))
	require.NoError(t, err)
	_, err = s.InsertProduct(ctx, product(2, "tee"))
	assert.True(t, apperrors.IsUniqueViolation(err))

	ok, err := s.ProductExists(ctx, 99, "tee")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_OptionTypeIDs(t *testing.T) {
	s := NewStore()
	s.AddOptionValue(1, 10)
	s.AddOptionValue(2, 10)
	s.AddOptionValue(3, 5)

	ids, err := s.OptionTypeIDs(context.Background(), []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 10}, ids)
}

func TestStore_InjectFault(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("disk full")
	s.InjectFault(func(table string) error {
		if table == TableAssets {
			return boom
		}
		return nil
	})

	_, err := s.InsertBlob(ctx, &domain.Blob{Key: "k"})
	require.NoError(t, err)
	_, err = s.InsertAsset(ctx, &domain.Asset{})
	assert.ErrorIs(t, err, boom)

	s.InjectFault(nil)
	_, err = s.InsertAsset(ctx, &domain.Asset{})
	assert.NoError(t, err)
}

func TestStore_LatestStates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	changes := []domain.StateChange{
		{ID: 1, Name: domain.MachineOrder, StatefulID: 7, NextState: domain.OrderStateAddress, CreatedAt: base},
		{ID: 2, Name: domain.MachineOrder, StatefulID: 7, NextState: domain.OrderStateComplete, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Name: domain.MachinePayment, StatefulID: 7, NextState: domain.PaymentStatePaid, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 4, Name: domain.MachineOrder, StatefulID: 8, NextState: domain.OrderStateCanceled, CreatedAt: base},
	}
	for i := range changes {
		require.NoError(t, s.InsertStateChange(ctx, &changes[i]))
	}

	latest, err := s.LatestStates(ctx, domain.MachineOrder, []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, domain.OrderStateComplete, latest[0].State)
	assert.Equal(t, domain.OrderStateCanceled, latest[1].State)

	err = s.InsertStateChange(ctx, &domain.StateChange{ID: 2})
	assert.True(t, apperrors.IsUniqueViolation(err))

	next, err := s.NextStateChangeID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), next)
}

func TestStore_ApplyOrderState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Orders().InsertOrder(ctx, &domain.OrderRecord{
		Order:     &domain.Order{ID: 1, Number: "R1", State: domain.OrderStateCart},
		CreatedAt: created, UpdatedAt: created,
	}))

	later := created.Add(time.Hour)
	require.NoError(t, s.ApplyOrderState(ctx, 1, repository.PaymentStateColumn, domain.PaymentStatePaid, later))
	require.NoError(t, s.ApplyOrderState(ctx, 1, repository.OrderStateColumn, domain.OrderStateComplete, created))
	assert.Error(t, s.ApplyOrderState(ctx, 1, "email", "x", later))

	o, ok := s.Order(1)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStateComplete, o.State)
	require.NotNil(t, o.PaymentState)
	assert.Equal(t, domain.PaymentStatePaid, *o.PaymentState)
	assert.Equal(t, later, o.UpdatedAt)
}

func TestStore_ShippingRateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	ok, err := s.InsertShippingRate(ctx, &domain.ShippingRate{ID: 1}, repository.RowTimes{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertShippingRate(ctx, &domain.ShippingRate{ID: 1}, repository.RowTimes{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GuestOrdersMissingAddress(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	uid, addr := int64(3), int64(9)

	orders := []*domain.OrderRecord{
		{Order: &domain.Order{ID: 1, Number: "R1"}},
		{Order: &domain.Order{ID: 2, Number: "R2"}, UserID: &uid},
		{Order: &domain.Order{ID: 3, Number: "R3"}, BillAddressID: &addr, ShipAddressID: &addr},
	}
	for _, o := range orders {
		require.NoError(t, s.InsertOrder(ctx, o))
	}

	guests, err := s.GuestOrdersMissingAddress(ctx)
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.Equal(t, "R1", guests[0].Number)
}
