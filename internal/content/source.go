// Package content loads the generated JSON documents the seeder writes into
// the store.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
	"github.com/george-bobby/app-opencats-sub001/pkg/validator"
)

// Content file names, relative to the data directory.
const (
	ProductsFile      = "products.json"
	TaxonsFile        = "taxons.json"
	PrototypesFile    = "prototypes.json"
	UsersFile         = "users.json"
	OrdersFile        = "orders.json"
	LineItemsFile     = "line_items.json"
	ShipmentsFile     = "shipments.json"
	ShippingRatesFile = "shipping_rates.json"
)

// Source reads validated records from a data directory.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates a Source rooted at dir.
func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Dir returns the data directory.
func (s *Source) Dir() string {
	return s.dir
}

// Prototype is an entry of prototypes.json.
type Prototype struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Products loads products.json. A missing file is a setup error.
func (s *Source) Products() ([]domain.Product, error) {
	var doc struct {
		Products []domain.Product `json:"products"`
	}
	if err := s.read(ProductsFile, true, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, ProductsFile, doc.Products, func(p domain.Product) string {
		return fmt.Sprintf("product %q", p.Name)
	}), nil
}

// Taxons loads taxons.json. A missing file yields no taxons, which disables
// cross-taxonomy matching.
func (s *Source) Taxons() ([]domain.Taxon, error) {
	var doc struct {
		Taxons []domain.Taxon `json:"taxons"`
	}
	if err := s.read(TaxonsFile, false, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, TaxonsFile, doc.Taxons, func(t domain.Taxon) string {
		return fmt.Sprintf("taxon %q", t.Name)
	}), nil
}

// PrototypeIDs loads the prototype catalog from prototypes.json. Entries
// without an id are numbered by position. The bool is false when the file
// does not exist.
func (s *Source) PrototypeIDs() ([]int64, bool, error) {
	if !s.exists(PrototypesFile) {
		return nil, false, nil
	}
	var doc struct {
		Prototypes []Prototype `json:"prototypes"`
	}
	if err := s.read(PrototypesFile, true, &doc); err != nil {
		return nil, true, err
	}
	ids := make([]int64, 0, len(doc.Prototypes))
	for i, p := range doc.Prototypes {
		id := p.ID
		if id == 0 {
			id = int64(i + 1)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// Users loads users.json. A missing file is a setup error.
func (s *Source) Users() ([]domain.User, error) {
	var doc struct {
		Users []domain.User `json:"users"`
	}
	if err := s.read(UsersFile, true, &doc); err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// Orders loads orders.json. A missing file is a setup error.
func (s *Source) Orders() ([]domain.Order, error) {
	var doc struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := s.read(OrdersFile, true, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, OrdersFile, doc.Orders, func(o domain.Order) string {
		return fmt.Sprintf("order %s", o.Number)
	}), nil
}

// LineItems loads line_items.json. A missing file is a setup error.
func (s *Source) LineItems() ([]domain.LineItem, error) {
	var doc struct {
		LineItems []domain.LineItem `json:"line_items"`
	}
	if err := s.read(LineItemsFile, true, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, LineItemsFile, doc.LineItems, func(li domain.LineItem) string {
		return fmt.Sprintf("line item %d", li.ID)
	}), nil
}

// Shipments loads shipments.json. A missing file is a setup error.
func (s *Source) Shipments() ([]domain.Shipment, error) {
	var doc struct {
		Shipments []domain.Shipment `json:"shipments"`
	}
	if err := s.read(ShipmentsFile, true, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, ShipmentsFile, doc.Shipments, func(sh domain.Shipment) string {
		return fmt.Sprintf("shipment %s", sh.Number)
	}), nil
}

// ShippingRates loads shipping_rates.json. The file is optional.
func (s *Source) ShippingRates() ([]domain.ShippingRate, error) {
	var doc struct {
		ShippingRates []domain.ShippingRate `json:"shipping_rates"`
	}
	if err := s.read(ShippingRatesFile, false, &doc); err != nil {
		return nil, err
	}
	return keepValid(s, ShippingRatesFile, doc.ShippingRates, func(r domain.ShippingRate) string {
		return fmt.Sprintf("shipping rate %d", r.ID)
	}), nil
}

func (s *Source) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Source) exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// read decodes one content file into dst. When the file is missing, a
// required file is a setup error and an optional one leaves dst untouched.
func (s *Source) read(name string, required bool, dst any) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if required {
				return apperrors.Setup(fmt.Sprintf("content file %s not found in %s", name, s.dir), err)
			}
			s.logger.Warn("optional content file not found", slog.String("file", name))
			return nil
		}
		return apperrors.Setup(fmt.Sprintf("open content file %s", name), err)
	}
	defer f.Close()

	if err := validator.Decode(f, dst); err != nil {
		return apperrors.Setup(fmt.Sprintf("read content file %s", name), err)
	}
	return nil
}

// keepValid drops records that fail validation, logging each one.
func keepValid[T any](s *Source, file string, records []T, describe func(T) string) []T {
	out := records[:0]
	for _, r := range records {
		if err := validator.Validate(&r); err != nil {
			s.logger.Warn("dropping invalid record",
				slog.String("file", file),
				slog.String("record", describe(r)),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, r)
	}
	s.logger.Info("loaded content file",
		slog.String("file", file),
		slog.Int("records", len(out)),
		slog.Int("dropped", len(records)-len(out)),
	)
	return out
}
