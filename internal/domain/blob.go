package domain

import "time"

// Active Storage and Spree polymorphic type names.
const (
	ViewableTypeVariant = "Spree::Variant"
	AssetTypeImage      = "Spree::Image"
	RecordTypeAsset     = "Spree::Asset"
	AttachmentName      = "attachment"
	BlobServiceName     = "local"
	DefaultContentType  = "image/jpeg"
	DefaultBlobMetadata = `{"identified":true,"analyzed":true}`
)

// Blob is an active_storage_blobs row.
type Blob struct {
	ID          int64
	Key         string
	Filename    string
	ContentType string
	Metadata    string
	ServiceName string
	ByteSize    int64
	Checksum    string
	CreatedAt   time.Time
}

// Asset is a spree_assets row tying an image to a variant.
type Asset struct {
	ID           int64
	ViewableType string
	ViewableID   int64
	Type         string
	Alt          string
	Position     int
	CreatedAt    time.Time
}

// Attachment is an active_storage_attachments row tying a blob to an asset.
type Attachment struct {
	ID         int64
	Name       string
	RecordType string
	RecordID   int64
	BlobID     int64
	CreatedAt  time.Time
}

// VariantRef is the image pipeline's view of a persisted variant.
type VariantRef struct {
	ID       int64
	SKU      string
	IsMaster bool
	Position int
}
