package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/george-bobby/app-opencats-sub001/pkg/slug"
)

// Product status and catalog constants.
const (
	ProductStatusActive   = "active"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"

	DefaultCurrency = "USD"

	// MasterPosition is the variant position reserved for the master variant.
	MasterPosition = 1
	// FirstVariantPosition is where declared variants start.
	FirstVariantPosition = 2

	metaDescriptionLimit = 160
)

// Product is a product document from the content source.
type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name" validate:"required"`
	Description     string          `json:"description"`
	SKU             string          `json:"sku" validate:"required"`
	MasterPrice     decimal.Decimal `json:"master_price"`
	PrototypeID     int64           `json:"prototype_id"`
	Variants        []Variant       `json:"variants" validate:"dive"`
	TaxonIDs        []int64         `json:"taxon_ids"`
	MetaTitle       string          `json:"meta_title,omitempty"`
	MetaDescription string          `json:"meta_description,omitempty"`
	MetaKeywords    string          `json:"meta_keywords,omitempty"`
	Status          string          `json:"status,omitempty"`
	Promotionable   *bool           `json:"promotionable,omitempty"`
	AvailableOn     Timestamp       `json:"available_on"`
	Images          *ProductImages  `json:"images,omitempty"`
}

// Variant is a user-visible variant declared on a product document.
type Variant struct {
	SKUSuffix     string          `json:"sku_suffix" validate:"required"`
	Price         decimal.Decimal `json:"price"`
	OptionValues  []int64         `json:"option_values"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	Position      int             `json:"position"`
}

// Slug returns the product slug, which is the lower-cased SKU.
func (p *Product) Slug() string {
	return slug.FromSKU(p.SKU)
}

// VariantSKU returns the SKU of a declared variant.
func (p *Product) VariantSKU(v Variant) string {
	return p.SKU + "-" + v.SKUSuffix
}

// OptionValueIDs returns the distinct option value IDs referenced by all
// variants, in first-seen order.
func (p *Product) OptionValueIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, v := range p.Variants {
		for _, id := range v.OptionValues {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// ProductRecord is the resolved row set written for one product.
type ProductRecord struct {
	ID                 int64
	Name               string
	Description        string
	Slug               string
	MetaTitle          string
	MetaDescription    string
	MetaKeywords       string
	Status             string
	Promotionable      bool
	AvailableOn        time.Time
	ShippingCategoryID int64
	TaxCategoryID      int64
	CreatedAt          time.Time
}

// VariantRecord is one spree_variants row plus its price and stock.
type VariantRecord struct {
	ProductID     int64
	SKU           string
	IsMaster      bool
	Position      int
	Price         decimal.Decimal
	Currency      string
	OptionValues  []int64
	StockQuantity int
}

// NewProductRecord fills the product row from the document, applying the
// catalog defaults for any metadata the document leaves empty. The bool is
// false when available_on could not be parsed and now was used instead.
func NewProductRecord(p *Product, now time.Time) (*ProductRecord, bool) {
	rec := &ProductRecord{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Slug:            p.Slug(),
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		MetaKeywords:    p.MetaKeywords,
		Status:          p.Status,
		Promotionable:   true,
		AvailableOn:     now,
		CreatedAt:       now,
	}
	if rec.MetaTitle == "" {
		rec.MetaTitle = p.Name
	}
	if rec.MetaDescription == "" {
		rec.MetaDescription = truncateRunes(p.Description, metaDescriptionLimit)
	}
	if rec.MetaKeywords == "" {
		rec.MetaKeywords = strings.ReplaceAll(strings.ToLower(p.Name), " ", ", ")
	}
	if rec.Status == "" {
		rec.Status = ProductStatusActive
	}
	if p.Promotionable != nil {
		rec.Promotionable = *p.Promotionable
	}

	ok := true
	switch {
	case p.AvailableOn.Valid:
		rec.AvailableOn = p.AvailableOn.Time
	case p.AvailableOn.Present():
		ok = false
	}
	return rec, ok
}

// MasterVariant returns the synthetic master variant row.
func (p *Product) MasterVariant() VariantRecord {
	return VariantRecord{
		ProductID: p.ID,
		SKU:       p.SKU,
		IsMaster:  true,
		Position:  MasterPosition,
		Price:     p.MasterPrice,
		Currency:  DefaultCurrency,
	}
}

// DeclaredVariants returns the rows for the document's variants, positioned
// after the master in declaration order.
func (p *Product) DeclaredVariants() []VariantRecord {
	out := make([]VariantRecord, 0, len(p.Variants))
	for i, v := range p.Variants {
		out = append(out, VariantRecord{
			ProductID:     p.ID,
			SKU:           p.VariantSKU(v),
			Position:      FirstVariantPosition + i,
			Price:         v.Price,
			Currency:      DefaultCurrency,
			OptionValues:  v.OptionValues,
			StockQuantity: v.StockQuantity,
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ProductImages is the image payload embedded in a product document.
type ProductImages struct {
	ProductName   string               `json:"product_name,omitempty"`
	MainImages    []ImageRef           `json:"main_images"`
	VariantImages map[string]ImageList `json:"variant_images"`
}

// ImageRef is one image URL.
type ImageRef struct {
	URL       string `json:"url"`
	SKUSuffix string `json:"sku_suffix,omitempty"`
}

// ImageList decodes either a JSON array of images or a single image object.
type ImageList []ImageRef

// UnmarshalJSON implements json.Unmarshaler.
func (l *ImageList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var refs []ImageRef
		if err := json.Unmarshal(b, &refs); err != nil {
			return fmt.Errorf("decode image list: %w", err)
		}
		*l = refs
		return nil
	}
	var ref ImageRef
	if err := json.Unmarshal(b, &ref); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	*l = ImageList{ref}
	return nil
}

// HasImages reports whether the payload carries any URL.
func (pi *ProductImages) HasImages() bool {
	if pi == nil {
		return false
	}
	if len(pi.MainImages) > 0 {
		return true
	}
	for _, l := range pi.VariantImages {
		if len(l) > 0 {
			return true
		}
	}
	return false
}
