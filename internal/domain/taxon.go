package domain

import (
	"sort"

	"github.com/george-bobby/app-opencats-sub001/pkg/slug"
)

// BrandsTaxonomy is the parent name whose taxons never share identity with
// taxons in other taxonomies.
const BrandsTaxonomy = "Brands"

// Taxon is a node of a taxonomy tree.
type Taxon struct {
	ID         int64  `json:"id" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required"`
	TaxonomyID int64  `json:"taxonomy_id"`
	ParentName string `json:"parent_name"`
}

// IsBrand reports whether the taxon lives under the Brands taxonomy.
func (t Taxon) IsBrand() bool {
	return t.ParentName == BrandsTaxonomy
}

// TaxonIndex answers cross-taxonomy name lookups.
type TaxonIndex struct {
	byID   map[int64]Taxon
	byName map[string][]Taxon
}

// NewTaxonIndex builds an index over the given taxons.
func NewTaxonIndex(taxons []Taxon) *TaxonIndex {
	idx := &TaxonIndex{
		byID:   make(map[int64]Taxon, len(taxons)),
		byName: make(map[string][]Taxon),
	}
	for _, t := range taxons {
		idx.byID[t.ID] = t
		key := slug.NameKey(t.Name)
		idx.byName[key] = append(idx.byName[key], t)
	}
	return idx
}

// Len returns the number of indexed taxons.
func (idx *TaxonIndex) Len() int {
	return len(idx.byID)
}

// Expand returns ids plus every taxon in a different taxonomy whose
// normalized name matches one of them. Brand taxons neither receive nor
// contribute cross-taxonomy matches. The original ids keep their order;
// added ids follow in ascending order.
func (idx *TaxonIndex) Expand(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	var extra []int64
	for _, id := range ids {
		src, ok := idx.byID[id]
		if !ok || src.IsBrand() {
			continue
		}
		for _, cand := range idx.byName[slug.NameKey(src.Name)] {
			if cand.TaxonomyID == src.TaxonomyID || cand.IsBrand() {
				continue
			}
			if _, ok := seen[cand.ID]; ok {
				continue
			}
			seen[cand.ID] = struct{}{}
			extra = append(extra, cand.ID)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
