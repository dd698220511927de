package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	w *database.Writer
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(w *database.Writer) *CatalogRepository {
	return &CatalogRepository{w: w}
}

// DefaultShippingCategoryID returns the id of the "Default" shipping category.
func (r *CatalogRepository) DefaultShippingCategoryID(ctx context.Context) (int64, bool, error) {
	return fetchID(ctx, r.w, "default shipping category",
		`SELECT id FROM spree_shipping_categories WHERE name = $1 ORDER BY id LIMIT 1`, "Default")
}

// DefaultTaxCategoryID returns the id of the default tax category.
func (r *CatalogRepository) DefaultTaxCategoryID(ctx context.Context) (int64, bool, error) {
	return fetchID(ctx, r.w, "default tax category",
		`SELECT id FROM spree_tax_categories WHERE is_default = true ORDER BY id LIMIT 1`)
}

// DefaultStoreID returns the oldest store.
func (r *CatalogRepository) DefaultStoreID(ctx context.Context) (int64, bool, error) {
	return fetchID(ctx, r.w, "default store",
		`SELECT id FROM spree_stores ORDER BY created_at ASC LIMIT 1`)
}

// DefaultStockLocationID returns the first stock location.
func (r *CatalogRepository) DefaultStockLocationID(ctx context.Context) (int64, bool, error) {
	return fetchID(ctx, r.w, "default stock location",
		`SELECT id FROM spree_stock_locations ORDER BY id LIMIT 1`)
}

// PrototypeIDs lists spree_prototypes ids.
func (r *CatalogRepository) PrototypeIDs(ctx context.Context) ([]int64, error) {
	ids, err := collectIDs(ctx, r.w, `SELECT id FROM spree_prototypes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list prototypes: %w", err)
	}
	return ids, nil
}

// ProductExists checks for a product by id or slug.
func (r *CatalogRepository) ProductExists(ctx context.Context, id int64, slug string) (bool, error) {
	ok, err := r.w.Exists(ctx, `SELECT 1 FROM spree_products WHERE id = $1 OR slug = $2 LIMIT 1`, id, slug)
	if err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return ok, nil
}

// OptionTypeIDs resolves option types from option values.
func (r *CatalogRepository) OptionTypeIDs(ctx context.Context, optionValueIDs []int64) ([]int64, error) {
	if len(optionValueIDs) == 0 {
		return nil, nil
	}
	ids, err := collectIDs(ctx, r.w,
		`SELECT DISTINCT option_type_id FROM spree_option_values WHERE id = ANY($1) ORDER BY option_type_id`,
		optionValueIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve option types: %w", err)
	}
	return ids, nil
}

// InsertProduct inserts a product row.
func (r *CatalogRepository) InsertProduct(ctx context.Context, p *domain.ProductRecord) (int64, error) {
	args := []any{
		p.Name, p.Description, p.Slug, p.CreatedAt, p.CreatedAt,
		p.MetaTitle, p.MetaDescription, p.MetaKeywords,
		p.ShippingCategoryID, p.TaxCategoryID,
		p.Status, p.Promotionable, p.AvailableOn,
	}
	query := `
		INSERT INTO spree_products (name, description, slug, created_at, updated_at,
			meta_title, meta_description, meta_keywords, shipping_category_id, tax_category_id,
			status, promotionable, available_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if p.ID != 0 {
		query = `
		INSERT INTO spree_products (name, description, slug, created_at, updated_at,
			meta_title, meta_description, meta_keywords, shipping_category_id, tax_category_id,
			status, promotionable, available_on, id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
		args = append(args, p.ID)
	}

	id, err := insertReturningID(ctx, r.w, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}

// LinkStore associates a product with a store.
func (r *CatalogRepository) LinkStore(ctx context.Context, productID, storeID int64, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_products_stores (product_id, store_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		productID, storeID, at, at)
	if err != nil {
		return fmt.Errorf("link product store: %w", err)
	}
	return nil
}

// LinkTaxon classifies a product under a taxon.
func (r *CatalogRepository) LinkTaxon(ctx context.Context, productID, taxonID int64, position int, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_products_taxons (product_id, taxon_id, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		productID, taxonID, position, at, at)
	if err != nil {
		return fmt.Errorf("link product taxon %d: %w", taxonID, err)
	}
	return nil
}

// LinkOptionType associates a product with an option type.
func (r *CatalogRepository) LinkOptionType(ctx context.Context, productID, optionTypeID int64, position int, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_product_option_types (product_id, option_type_id, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		productID, optionTypeID, position, at, at)
	if err != nil {
		return fmt.Errorf("link product option type %d: %w", optionTypeID, err)
	}
	return nil
}

// InsertVariant inserts a variant row.
func (r *CatalogRepository) InsertVariant(ctx context.Context, v *domain.VariantRecord, at time.Time) (int64, error) {
	id, err := insertReturningID(ctx, r.w, `
		INSERT INTO spree_variants (product_id, sku, created_at, updated_at, is_master, track_inventory, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		v.ProductID, v.SKU, at, at, v.IsMaster, true, v.Position)
	if err != nil {
		return 0, fmt.Errorf("insert variant %s: %w", v.SKU, err)
	}
	return id, nil
}

// InsertPrice inserts a variant price.
func (r *CatalogRepository) InsertPrice(ctx context.Context, variantID int64, amount decimal.Decimal, currency string, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_prices (variant_id, amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		variantID, amount, currency, at, at)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	return nil
}

// LinkOptionValue associates an option value with a variant. An existing
// link is left alone, which keeps an enclosing transaction usable.
func (r *CatalogRepository) LinkOptionValue(ctx context.Context, variantID, optionValueID int64, at time.Time) (bool, error) {
	n, err := r.w.Execute(ctx, `
		INSERT INTO spree_option_value_variants (variant_id, option_value_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		variantID, optionValueID, at, at)
	if err != nil {
		return false, fmt.Errorf("link option value %d: %w", optionValueID, err)
	}
	return n > 0, nil
}

// InsertStockItem stocks a variant at a location.
func (r *CatalogRepository) InsertStockItem(ctx context.Context, variantID, stockLocationID int64, count int, at time.Time) error {
	_, err := r.w.Execute(ctx, `
		INSERT INTO spree_stock_items (variant_id, stock_location_id, count_on_hand, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		variantID, stockLocationID, count, at, at)
	if err != nil {
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

// CountProducts returns the number of product rows.
func (r *CatalogRepository) CountProducts(ctx context.Context) (int64, error) {
	n, _, err := database.FetchVal[int64](ctx, r.w, `SELECT COUNT(*) FROM spree_products`)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CountVariants returns the number of non-master variant rows.
func (r *CatalogRepository) CountVariants(ctx context.Context) (int64, error) {
	n, _, err := database.FetchVal[int64](ctx, r.w, `SELECT COUNT(*) FROM spree_variants WHERE is_master = false`)
	if err != nil {
		return 0, fmt.Errorf("count variants: %w", err)
	}
	return n, nil
}

// WithinTx runs fn in a transaction.
func (r *CatalogRepository) WithinTx(ctx context.Context, fn func(repository.CatalogRepository) error) error {
	return r.w.InTx(ctx, func(tx *database.Writer) error {
		return fn(&CatalogRepository{w: tx})
	})
}
