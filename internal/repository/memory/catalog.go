package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

type catalogView struct{ *Store }

func (v catalogView) WithinTx(_ context.Context, fn func(repository.CatalogRepository) error) error {
	return fn(v)
}

func (s *Store) DefaultShippingCategoryID(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shippingCategoryID, s.shippingCategoryID != 0, nil
}

func (s *Store) DefaultTaxCategoryID(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxCategoryID, s.taxCategoryID != 0, nil
}

func (s *Store) DefaultStoreID(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeID, s.storeID != 0, nil
}

func (s *Store) DefaultStockLocationID(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := firstOf(sortedCopy(s.stockLocations))
	return id, ok, nil
}

func (s *Store) PrototypeIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCopy(s.prototypes), nil
}

func (s *Store) ProductExists(_ context.Context, id int64, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; ok {
		return true, nil
	}
	_, ok := s.slugs[slug]
	return ok, nil
}

func (s *Store) OptionTypeIDs(_ context.Context, optionValueIDs []int64) ([]int64, error) {
	if len(optionValueIDs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, v := range optionValueIDs {
		t, ok := s.optionValueTypes[v]
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) InsertProduct(_ context.Context, p *domain.ProductRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slugs[p.Slug]; ok {
		return 0, fmt.Errorf("duplicate key value violates unique constraint %q", "index_spree_products_on_slug")
	}
	id, err := s.assign(repository.TableProducts, p.ID, func(id int64) bool {
		_, ok := s.products[id]
		return ok
	})
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	rec := *p
	rec.ID = id
	s.products[id] = &rec
	s.slugs[rec.Slug] = id
	return id, nil
}

func (s *Store) LinkStore(_ context.Context, productID, _ int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return fmt.Errorf("link product store: product %d does not exist", productID)
	}
	return s.write(TableProductLinks)
}

func (s *Store) LinkTaxon(_ context.Context, productID, taxonID int64, _ int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(TableTaxonLinks); err != nil {
		return fmt.Errorf("link product taxon %d: %w", taxonID, err)
	}
	s.productTaxons[productID] = append(s.productTaxons[productID], taxonID)
	return nil
}

func (s *Store) LinkOptionType(_ context.Context, productID, optionTypeID int64, _ int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(TableOptionTypes); err != nil {
		return fmt.Errorf("link product option type %d: %w", optionTypeID, err)
	}
	s.productTypes[productID] = append(s.productTypes[productID], optionTypeID)
	return nil
}

func (s *Store) InsertVariant(_ context.Context, v *domain.VariantRecord, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[v.ProductID]; !ok {
		return 0, fmt.Errorf("insert variant %s: product %d does not exist", v.SKU, v.ProductID)
	}
	id, err := s.assign(repository.TableVariants, 0, func(id int64) bool {
		_, ok := s.variants[id]
		return ok
	})
	if err != nil {
		return 0, fmt.Errorf("insert variant %s: %w", v.SKU, err)
	}
	s.variants[id] = &variantRow{
		VariantRef: domain.VariantRef{ID: id, SKU: v.SKU, IsMaster: v.IsMaster, Position: v.Position},
		ProductID:  v.ProductID,
	}
	return id, nil
}

func (s *Store) InsertPrice(_ context.Context, variantID int64, amount decimal.Decimal, currency string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TablePrices, 0, nil); err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	s.prices = append(s.prices, priceRow{VariantID: variantID, Amount: amount, Currency: currency})
	return nil
}

func (s *Store) LinkOptionValue(_ context.Context, variantID, optionValueID int64, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{variantID, optionValueID}
	if s.variantValues[key] {
		return false, nil
	}
	if err := s.write(TableOptionValues); err != nil {
		return false, fmt.Errorf("link option value %d: %w", optionValueID, err)
	}
	s.variantValues[key] = true
	return true, nil
}

func (s *Store) InsertStockItem(_ context.Context, variantID, stockLocationID int64, count int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.assign(repository.TableStockItems, 0, nil); err != nil {
		return fmt.Errorf("insert stock item: %w", err)
	}
	s.stock = append(s.stock, stockRow{VariantID: variantID, StockLocationID: stockLocationID, Count: count})
	return nil
}

func (s *Store) CountProducts(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.products)), nil
}

func (s *Store) CountVariants(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.variants {
		if !v.IsMaster {
			n++
		}
	}
	return n, nil
}

// Product returns a stored product row.
func (s *Store) Product(id int64) (domain.ProductRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ProductRecord{}, false
	}
	return *p, true
}

// ProductTaxons returns the taxons linked to a product, in link order.
func (s *Store) ProductTaxons(productID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.productTaxons[productID]...)
}

// ProductOptionTypes returns the option types linked to a product.
func (s *Store) ProductOptionTypes(productID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.productTypes[productID]...)
}

// VariantPrice returns the first price stored for a variant.
func (s *Store) VariantPrice(variantID int64) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prices {
		if p.VariantID == variantID {
			return p.Amount, true
		}
	}
	return decimal.Zero, false
}

// StockCount returns the stock on hand recorded for a variant.
func (s *Store) StockCount(variantID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stock {
		if st.VariantID == variantID {
			return st.Count, true
		}
	}
	return 0, false
}
