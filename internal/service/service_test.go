package service

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository/memory"
)

// --- Test Helpers ---

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		EntityTransactions: true,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})),
		Now:                func() time.Time { return testNow },
	}
}

func newTestStore() *memory.Store {
	store := memory.NewStore()
	store.SeedDefaults()
	store.AddPrototypes(1)
	return store
}

type stubProducts struct {
	products   []domain.Product
	taxons     []domain.Taxon
	prototypes []int64
}

func (s *stubProducts) Products() ([]domain.Product, error) { return s.products, nil }
func (s *stubProducts) Taxons() ([]domain.Taxon, error)     { return s.taxons, nil }
func (s *stubProducts) PrototypeIDs() ([]int64, bool, error) {
	return s.prototypes, len(s.prototypes) > 0, nil
}

type stubOrders struct {
	users     []domain.User
	orders    []domain.Order
	lineItems []domain.LineItem
	shipments []domain.Shipment
	rates     []domain.ShippingRate
}

func (s *stubOrders) Users() ([]domain.User, error)                 { return s.users, nil }
func (s *stubOrders) Orders() ([]domain.Order, error)               { return s.orders, nil }
func (s *stubOrders) LineItems() ([]domain.LineItem, error)         { return s.lineItems, nil }
func (s *stubOrders) Shipments() ([]domain.Shipment, error)         { return s.shipments, nil }
func (s *stubOrders) ShippingRates() ([]domain.ShippingRate, error) { return s.rates, nil }

// recordingObserver counts outcomes per stage/entity/outcome.
type recordingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{counts: make(map[string]int)}
}

func (o *recordingObserver) Observe(stage, entity string, outcome domain.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[stage+"/"+entity+"/"+outcome.String()]++
}

func (o *recordingObserver) count(stage, entity string, outcome domain.Outcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[stage+"/"+entity+"/"+outcome.String()]
}

func testProduct(id int64, sku string, variants ...domain.Variant) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        "Product " + sku,
		Description: "A product",
		SKU:         sku,
		MasterPrice: decimal.RequireFromString("19.99"),
		PrototypeID: 1,
		Variants:    variants,
	}
}

func testVariant(suffix string, price string, stock int, optionValues ...int64) domain.Variant {
	return domain.Variant{
		SKUSuffix:     suffix,
		Price:         decimal.RequireFromString(price),
		OptionValues:  optionValues,
		StockQuantity: stock,
	}
}

func ts(t time.Time) domain.Timestamp {
	return domain.NewTimestamp(t)
}

func ptr[T any](v T) *T {
	return &v
}
