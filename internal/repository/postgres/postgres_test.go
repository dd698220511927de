package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupWriter(t *testing.T) (*database.Writer, pgxmock.PgxPoolIface) {
	t.Helper()
	w, mock, err := database.NewMockWriter()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return w, mock
}

// ---------------------------------------------------------------------------
// CatalogRepository
// ---------------------------------------------------------------------------

func TestCatalog_DefaultShippingCategory(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("SELECT id FROM spree_shipping_categories").
		WithArgs("Default").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, found, err := repo.DefaultShippingCategoryID(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_DefaultTaxCategory_Missing(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("SELECT id FROM spree_tax_categories").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, found, err := repo.DefaultTaxCategoryID(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_ProductExists(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("SELECT 1 FROM spree_products WHERE id = \\$1 OR slug = \\$2").
		WithArgs(int64(5), "tee-001").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.ProductExists(context.Background(), 5, "tee-001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_InsertProduct_ExplicitID(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)
	rec := &domain.ProductRecord{
		ID: 42, Name: "Tee", Slug: "tee", Status: domain.ProductStatusActive, Promotionable: true,
		ShippingCategoryID: 1, TaxCategoryID: 2, CreatedAt: testTime, AvailableOn: testTime,
	}

	mock.ExpectQuery("INSERT INTO spree_products").
		WithArgs("Tee", "", "tee", testTime, testTime, "", "", "", int64(1), int64(2),
			domain.ProductStatusActive, true, testTime, int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.InsertProduct(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_InsertProduct_SequenceAssigned(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("INSERT INTO spree_products").
		WithArgs("Mug", "", "mug", testTime, testTime, "", "", "", int64(1), int64(1),
			"", false, testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := repo.InsertProduct(context.Background(), &domain.ProductRecord{
		Name: "Mug", Slug: "mug", ShippingCategoryID: 1, TaxCategoryID: 1, CreatedAt: testTime, AvailableOn: testTime,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestCatalog_OptionTypeIDs(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	ids, err := repo.OptionTypeIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ids)

	mock.ExpectQuery("SELECT DISTINCT option_type_id FROM spree_option_values").
		WithArgs([]int64{1, 2, 7}).
		WillReturnRows(pgxmock.NewRows([]string{"option_type_id"}).AddRow(int64(1)).AddRow(int64(3)))

	ids, err = repo.OptionTypeIDs(context.Background(), []int64{1, 2, 7})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_InsertVariantAndPrice(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("INSERT INTO spree_variants").
		WithArgs(int64(9), "TEE-S", testTime, testTime, false, true, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("INSERT INTO spree_prices").
		WithArgs(int64(100), pgxmock.AnyArg(), "USD", testTime, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.InsertVariant(context.Background(), &domain.VariantRecord{ProductID: 9, SKU: "TEE-S", Position: 2}, testTime)
	require.NoError(t, err)
	require.NoError(t, repo.InsertPrice(context.Background(), id, decimal.RequireFromString("19.99"), "USD", testTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_LinkOptionValue_ExistingLinkIsNotAnError(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO spree_option_value_variants .* ON CONFLICT DO NOTHING").
		WithArgs(int64(100), int64(7), testTime, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO spree_option_value_variants .* ON CONFLICT DO NOTHING").
		WithArgs(int64(100), int64(7), testTime, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	var first, second bool
	err := repo.WithinTx(context.Background(), func(tx repository.CatalogRepository) error {
		var err error
		if first, err = tx.LinkOptionValue(context.Background(), 100, 7, testTime); err != nil {
			return err
		}
		second, err = tx.LinkOptionValue(context.Background(), 100, 7, testTime)
		return err
	})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_WithinTx_CommitsOnSuccess(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO spree_products_stores").
		WithArgs(int64(1), int64(2), testTime, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx repository.CatalogRepository) error {
		return tx.LinkStore(context.Background(), 1, 2, testTime)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_WithinTx_RollsBackOnError(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO spree_products_taxons").
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx repository.CatalogRepository) error {
		return tx.LinkTaxon(context.Background(), 1, 99, 1, testTime)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link product taxon 99")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_Counts(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewCatalogRepository(w)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM spree_products").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM spree_variants").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(40)))

	p, err := repo.CountProducts(context.Background())
	require.NoError(t, err)
	v, err := repo.CountVariants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), p)
	assert.Equal(t, int64(40), v)
}

// ---------------------------------------------------------------------------
// ImageRepository
// ---------------------------------------------------------------------------

func TestImage_ListVariants(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewImageRepository(w)

	mock.ExpectQuery("SELECT id, sku, is_master, position").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sku", "is_master", "position"}).
			AddRow(int64(1), "TEE", true, 1).
			AddRow(int64(2), "TEE-S", false, 2))

	vs, err := repo.ListVariants(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []domain.VariantRef{
		{ID: 1, SKU: "TEE", IsMaster: true, Position: 1},
		{ID: 2, SKU: "TEE-S", Position: 2},
	}, vs)
}

func TestImage_InsertBlobAssetAttachment(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewImageRepository(w)

	mock.ExpectQuery("INSERT INTO active_storage_blobs").
		WithArgs("key1", "a.jpg", "image/jpeg", domain.DefaultBlobMetadata, "local", int64(10), "c2Vu", testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("INSERT INTO spree_assets").
		WithArgs(domain.ViewableTypeVariant, int64(2), domain.AssetTypeImage, "Tee - Main product image", 1, testTime, testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(6)))
	mock.ExpectQuery("INSERT INTO active_storage_attachments").
		WithArgs(domain.AttachmentName, domain.RecordTypeAsset, int64(6), int64(5), testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	ctx := context.Background()
	blobID, err := repo.InsertBlob(ctx, &domain.Blob{
		Key: "key1", Filename: "a.jpg", ContentType: "image/jpeg", Metadata: domain.DefaultBlobMetadata,
		ServiceName: "local", ByteSize: 10, Checksum: "c2Vu", CreatedAt: testTime,
	})
	require.NoError(t, err)
	assetID, err := repo.InsertAsset(ctx, &domain.Asset{
		ViewableType: domain.ViewableTypeVariant, ViewableID: 2, Type: domain.AssetTypeImage,
		Alt: "Tee - Main product image", Position: 1, CreatedAt: testTime,
	})
	require.NoError(t, err)
	attID, err := repo.InsertAttachment(ctx, &domain.Attachment{
		Name: domain.AttachmentName, RecordType: domain.RecordTypeAsset, RecordID: assetID, BlobID: blobID, CreatedAt: testTime,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), attID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// OrderRepository
// ---------------------------------------------------------------------------

func TestOrder_InsertOrder(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewOrderRepository(w)

	mock.ExpectExec("INSERT INTO spree_orders").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertOrder(context.Background(), &domain.OrderRecord{
		Order:     &domain.Order{ID: 1, Number: "R1", State: domain.OrderStateComplete},
		CreatedAt: testTime, UpdatedAt: testTime,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrder_InsertOrder_Error(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewOrderRepository(w)

	mock.ExpectExec("INSERT INTO spree_orders").
		WillReturnError(errors.New(`duplicate key value violates unique constraint "spree_orders_pkey"`))

	err := repo.InsertOrder(context.Background(), &domain.OrderRecord{Order: &domain.Order{ID: 1, Number: "R1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order R1")
}

func TestOrder_InsertAddress(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewOrderRepository(w)

	mock.ExpectQuery("INSERT INTO spree_addresses").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(501)))

	id, err := repo.InsertAddress(context.Background(), &domain.Address{FirstName: "Ann", CountryID: domain.USCountryID})
	require.NoError(t, err)
	assert.Equal(t, int64(501), id)
}

func TestOrder_GuestOrdersMissingAddress(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewOrderRepository(w)

	mock.ExpectQuery("FROM spree_orders\\s+WHERE user_id IS NULL").
		WillReturnRows(pgxmock.NewRows([]string{"id", "number", "email", "created_at", "updated_at"}).
			AddRow(int64(3), "R3", "g@example.com", testTime, testTime))
	mock.ExpectExec("UPDATE spree_orders SET bill_address_id").
		WithArgs(int64(9), int64(9), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	orders, err := repo.GuestOrdersMissingAddress(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NoError(t, repo.SetOrderAddresses(context.Background(), orders[0].ID, 9, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// FulfillmentRepository
// ---------------------------------------------------------------------------

func TestFulfillment_InsertShippingRate_Conflict(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewFulfillmentRepository(w)

	mock.ExpectExec("ON CONFLICT \\(id\\) DO NOTHING").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := repo.InsertShippingRate(context.Background(),
		&domain.ShippingRate{ID: 1, ShipmentID: 2, ShippingMethodID: 3},
		repository.RowTimes{CreatedAt: testTime, UpdatedAt: testTime})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestFulfillment_VariantIDs(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewFulfillmentRepository(w)

	mock.ExpectQuery("SELECT id FROM spree_variants ORDER BY id").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(8)))

	ids, err := repo.VariantIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 8}, ids)
}

func TestFulfillment_InsertShipment(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewFulfillmentRepository(w)

	mock.ExpectExec("INSERT INTO spree_shipments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertShipment(context.Background(),
		&domain.Shipment{ID: 1, Number: "H1", OrderID: 1, State: domain.ShipmentStateShipped, StockLocationID: 1},
		repository.RowTimes{CreatedAt: testTime, UpdatedAt: testTime}, &testTime)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// StateChangeRepository
// ---------------------------------------------------------------------------

func TestStateChange_NextID(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewStateChangeRepository(w)

	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(id\\), 0\\) \\+ 1 FROM spree_state_changes").
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(301)))

	id, err := repo.NextStateChangeID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(301), id)
}

func TestStateChange_LatestStates(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewStateChangeRepository(w)

	mock.ExpectQuery("SELECT DISTINCT ON \\(stateful_id\\)").
		WithArgs(domain.MachineOrder, []int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"stateful_id", "next_state", "created_at"}).
			AddRow(int64(1), domain.OrderStateComplete, testTime).
			AddRow(int64(2), domain.OrderStateCanceled, testTime))

	latest, err := repo.LatestStates(context.Background(), domain.MachineOrder, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, domain.MachineOrder, latest[0].Name)
	assert.Equal(t, domain.OrderStateCanceled, latest[1].State)

	none, err := repo.LatestStates(context.Background(), domain.MachineOrder, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateChange_ApplyOrderState(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewStateChangeRepository(w)

	mock.ExpectExec("UPDATE spree_orders SET payment_state = \\$1").
		WithArgs(domain.PaymentStatePaid, testTime, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ApplyOrderState(context.Background(), 4, repository.PaymentStateColumn, domain.PaymentStatePaid, testTime))

	err := repo.ApplyOrderState(context.Background(), 4, "email", "x", testTime)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateChange_InsertAndCorrectShipment(t *testing.T) {
	w, mock := setupWriter(t)
	repo := NewStateChangeRepository(w)

	mock.ExpectExec("INSERT INTO spree_state_changes").
		WithArgs(int64(1), domain.MachineShipment, domain.ShipmentStatePending, int64(8), pgxmock.AnyArg(),
			domain.StatefulTypeShipment, domain.ShipmentStateCanceled, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE spree_shipments SET state").
		WithArgs(domain.ShipmentStateCanceled, testTime, int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	require.NoError(t, repo.InsertStateChange(ctx, &domain.StateChange{
		ID: 1, Name: domain.MachineShipment, StatefulType: domain.StatefulTypeShipment, StatefulID: 8,
		PreviousState: domain.ShipmentStatePending, NextState: domain.ShipmentStateCanceled, CreatedAt: testTime,
	}))
	require.NoError(t, repo.SetShipmentState(ctx, 8, domain.ShipmentStateCanceled, testTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}
