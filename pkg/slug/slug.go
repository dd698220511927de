package slug

import (
	"strings"
)

// FromSKU derives a product slug from its SKU.
//
// Examples:
//   - "TEE-001" → "tee-001"
//   - "Mug-Blue" → "mug-blue"
func FromSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

var nameKeyReplacer = strings.NewReplacer(" ", "", "-", "", "&", "and")

// NameKey returns the comparison key for a taxon name: lower-cased, with
// spaces and hyphens removed and "&" spelled "and".
//
// Examples:
//   - "Home & Garden" → "homeandgarden"
//   - "T-Shirts" → "tshirts"
func NameKey(name string) string {
	return nameKeyReplacer.Replace(strings.ToLower(name))
}
