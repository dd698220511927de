// Package memory is an in-memory sink used for dry runs and tests. It keeps
// enough of the relational semantics (sequences, unique ids, latest-state
// queries) for the seeders to behave as they do against PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

// Tables without a repository-level constant.
const (
	TableBlobs        = "active_storage_blobs"
	TableAssets       = "spree_assets"
	TableAttachments  = "active_storage_attachments"
	TableProductLinks = "spree_products_stores"
	TableTaxonLinks   = "spree_products_taxons"
	TableOptionTypes  = "spree_product_option_types"
	TableOptionValues = "spree_option_value_variants"
)

// Fault is consulted before every write; a non-nil error fails the write.
type Fault func(table string) error

type variantRow struct {
	domain.VariantRef
	ProductID int64
}

type priceRow struct {
	VariantID int64
	Amount    decimal.Decimal
	Currency  string
}

type stockRow struct {
	VariantID       int64
	StockLocationID int64
	Count           int
}

type shipmentRow struct {
	domain.Shipment
	UpdatedAt time.Time
	CreatedAt time.Time
}

// Store is a thread-safe in-memory sink. Use the Catalog, Images, Orders and
// StateChanges views for the repositories that carry a WithinTx method; Store
// itself satisfies repository.FulfillmentRepository and repository.Sequencer.
type Store struct {
	mu sync.Mutex

	next  map[string]int64
	maxID map[string]int64
	rows  map[string]int
	fault Fault

	shippingCategoryID int64
	taxCategoryID      int64
	storeID            int64
	stockLocations     []int64
	prototypes         []int64
	optionValueTypes   map[int64]int64
	users              []domain.User
	shippingMethods    []int64

	products      map[int64]*domain.ProductRecord
	slugs         map[string]int64
	variants      map[int64]*variantRow
	prices        []priceRow
	stock         []stockRow
	productTaxons map[int64][]int64
	productTypes  map[int64][]int64
	variantValues map[[2]int64]bool

	blobs       map[int64]domain.Blob
	assets      map[int64]domain.Asset
	attachments map[int64]domain.Attachment

	addresses     map[int64]domain.Address
	orders        map[int64]*domain.OrderRecord
	orderNumbers  map[string]int64
	lineItems     map[int64]domain.LineItem
	shipments     map[int64]*shipmentRow
	shippingRates map[int64]domain.ShippingRate
	stateChanges  map[int64]domain.StateChange
}

// NewStore creates an empty store with no reference data.
func NewStore() *Store {
	return &Store{
		next:             make(map[string]int64),
		maxID:            make(map[string]int64),
		rows:             make(map[string]int),
		optionValueTypes: make(map[int64]int64),
		products:         make(map[int64]*domain.ProductRecord),
		slugs:            make(map[string]int64),
		variants:         make(map[int64]*variantRow),
		productTaxons:    make(map[int64][]int64),
		productTypes:     make(map[int64][]int64),
		variantValues:    make(map[[2]int64]bool),
		blobs:            make(map[int64]domain.Blob),
		assets:           make(map[int64]domain.Asset),
		attachments:      make(map[int64]domain.Attachment),
		addresses:        make(map[int64]domain.Address),
		orders:           make(map[int64]*domain.OrderRecord),
		orderNumbers:     make(map[string]int64),
		lineItems:        make(map[int64]domain.LineItem),
		shipments:        make(map[int64]*shipmentRow),
		shippingRates:    make(map[int64]domain.ShippingRate),
		stateChanges:     make(map[int64]domain.StateChange),
	}
}

// Views over the store for repositories whose WithinTx signatures differ.
func (s *Store) Catalog() repository.CatalogRepository          { return catalogView{s} }
func (s *Store) Images() repository.ImageRepository             { return imageView{s} }
func (s *Store) Orders() repository.OrderRepository             { return orderView{s} }
func (s *Store) StateChanges() repository.StateChangeRepository { return stateView{s} }

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

// SeedDefaults provisions one shipping category, tax category, store, stock
// location and shipping method, as a freshly installed shop has.
func (s *Store) SeedDefaults() {
	s.SetShippingCategory(1)
	s.SetTaxCategory(1)
	s.SetStore(1)
	s.AddStockLocations(1)
	s.AddShippingMethods(1)
}

func (s *Store) SetShippingCategory(id int64) { s.mu.Lock(); s.shippingCategoryID = id; s.mu.Unlock() }
func (s *Store) SetTaxCategory(id int64)      { s.mu.Lock(); s.taxCategoryID = id; s.mu.Unlock() }
func (s *Store) SetStore(id int64)            { s.mu.Lock(); s.storeID = id; s.mu.Unlock() }

func (s *Store) AddStockLocations(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockLocations = append(s.stockLocations, ids...)
}

func (s *Store) AddPrototypes(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prototypes = append(s.prototypes, ids...)
}

func (s *Store) AddShippingMethods(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shippingMethods = append(s.shippingMethods, ids...)
}

// AddOptionValue registers an option value and the option type owning it.
func (s *Store) AddOptionValue(valueID, optionTypeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optionValueTypes[valueID] = optionTypeID
}

func (s *Store) AddUsers(users ...domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, users...)
}

// PutAddress stores an address under its own id.
func (s *Store) PutAddress(a domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TableAddresses, a.ID, s.hasAddress); err != nil {
		return err
	}
	s.addresses[a.ID] = a
	return nil
}

// InjectFault installs fn as the write fault hook; nil removes it.
func (s *Store) InjectFault(fn Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// ---------------------------------------------------------------------------
// Sequences
// ---------------------------------------------------------------------------

// assign returns the id for a new row of table. An explicit id is used as
// given and leaves the sequence alone; otherwise the sequence supplies the
// id and, like PostgreSQL, collides if that id was loaded explicitly.
// Callers hold s.mu.
func (s *Store) assign(table string, explicit int64, taken func(int64) bool) (int64, error) {
	if s.fault != nil {
		if err := s.fault(table); err != nil {
			return 0, err
		}
	}
	id := explicit
	if id == 0 {
		id = s.next[table]
		if id == 0 {
			id = 1
		}
		s.next[table] = id + 1
	}
	if taken != nil && taken(id) {
		return 0, fmt.Errorf("duplicate key value violates unique constraint %q", table+"_pkey")
	}
	if id > s.maxID[table] {
		s.maxID[table] = id
	}
	s.rows[table]++
	return id, nil
}

// write runs the fault hook for a row without an id of its own.
func (s *Store) write(table string) error {
	if s.fault != nil {
		if err := s.fault(table); err != nil {
			return err
		}
	}
	s.rows[table]++
	return nil
}

// ResyncSequence makes the next auto-assigned id of table MAX(id)+1.
func (s *Store) ResyncSequence(_ context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.maxID[table] + 1
	s.next[table] = next
	return next, nil
}

// Rows returns the number of rows written to table.
func (s *Store) Rows(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[table]
}

func (s *Store) hasAddress(id int64) bool { _, ok := s.addresses[id]; return ok }

func firstOf(ids []int64) (int64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

func sortedCopy(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func keysOf[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ repository.FulfillmentRepository = (*Store)(nil)
	_ repository.Sequencer             = (*Store)(nil)
	_ repository.CatalogRepository     = catalogView{}
	_ repository.ImageRepository       = imageView{}
	_ repository.OrderRepository       = orderView{}
	_ repository.StateChangeRepository = stateView{}
)
