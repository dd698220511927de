package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
)

// ImageRepository implements repository.ImageRepository using PostgreSQL.
type ImageRepository struct {
	w *database.Writer
}

// NewImageRepository creates a new PostgreSQL-backed image repository.
func NewImageRepository(w *database.Writer) *ImageRepository {
	return &ImageRepository{w: w}
}

// FindProductID looks a product up by id, then by slug.
func (r *ImageRepository) FindProductID(ctx context.Context, id int64, slug string) (int64, bool, error) {
	return fetchID(ctx, r.w, "product", `
		SELECT id FROM spree_products
		WHERE id = $1 OR slug = $2
		ORDER BY (id = $1) DESC
		LIMIT 1`, id, slug)
}

// ListVariants returns the live variants of a product by position.
func (r *ImageRepository) ListVariants(ctx context.Context, productID int64) ([]domain.VariantRef, error) {
	var variants []domain.VariantRef
	err := r.w.Fetch(ctx, func(rows pgx.Rows) error {
		var v domain.VariantRef
		if err := rows.Scan(&v.ID, &v.SKU, &v.IsMaster, &v.Position); err != nil {
			return err
		}
		variants = append(variants, v)
		return nil
	}, `
		SELECT id, sku, is_master, position
		FROM spree_variants
		WHERE product_id = $1 AND deleted_at IS NULL
		ORDER BY position ASC, id ASC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants of product %d: %w", productID, err)
	}
	return variants, nil
}

// InsertBlob inserts an active_storage_blobs row.
func (r *ImageRepository) InsertBlob(ctx context.Context, b *domain.Blob) (int64, error) {
	id, err := insertReturningID(ctx, r.w, `
		INSERT INTO active_storage_blobs (key, filename, content_type, metadata, service_name, byte_size, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.Key, b.Filename, b.ContentType, b.Metadata, b.ServiceName, b.ByteSize, b.Checksum, b.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert blob %s: %w", b.Key, err)
	}
	return id, nil
}

// InsertAsset inserts a spree_assets image row.
func (r *ImageRepository) InsertAsset(ctx context.Context, a *domain.Asset) (int64, error) {
	id, err := insertReturningID(ctx, r.w, `
		INSERT INTO spree_assets (viewable_type, viewable_id, type, alt, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		a.ViewableType, a.ViewableID, a.Type, a.Alt, a.Position, a.CreatedAt, a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert asset: %w", err)
	}
	return id, nil
}

// InsertAttachment inserts an active_storage_attachments row.
func (r *ImageRepository) InsertAttachment(ctx context.Context, a *domain.Attachment) (int64, error) {
	id, err := insertReturningID(ctx, r.w, `
		INSERT INTO active_storage_attachments (name, record_type, record_id, blob_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		a.Name, a.RecordType, a.RecordID, a.BlobID, a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	return id, nil
}

// WithinTx runs fn in a transaction.
func (r *ImageRepository) WithinTx(ctx context.Context, fn func(repository.ImageRepository) error) error {
	return r.w.InTx(ctx, func(tx *database.Writer) error {
		return fn(&ImageRepository{w: tx})
	})
}
