package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/internal/repository/memory"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

func newProductSeeder(store *memory.Store, src *stubProducts, opts Options) *ProductSeeder {
	return NewProductSeeder(store.Catalog(), store, src, opts)
}

func TestProductSeeder_WritesMasterAndDeclaredVariants(t *testing.T) {
	store := newTestStore()
	store.AddOptionValue(7, 70)
	store.AddOptionValue(8, 80)
	src := &stubProducts{products: []domain.Product{
		testProduct(10, "TEE-001",
			testVariant("S", "21.00", 5, 7),
			testVariant("M", "22.00", 0, 7, 8),
		),
	}}

	report, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, int64(2), report.VariantsCreated)
	assert.Equal(t, int64(1), report.TotalProducts)
	assert.Equal(t, int64(2), report.TotalVariants)

	rec, ok := store.Product(10)
	require.True(t, ok)
	assert.Equal(t, "tee-001", rec.Slug)
	assert.Equal(t, "Product TEE-001", rec.MetaTitle)
	assert.Equal(t, domain.ProductStatusActive, rec.Status)
	assert.Equal(t, testNow, rec.AvailableOn)
	assert.Equal(t, []int64{70, 80}, store.ProductOptionTypes(10))

	variants, err := store.Images().ListVariants(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, variants, 3)

	master := variants[0]
	assert.True(t, master.IsMaster)
	assert.Equal(t, domain.MasterPosition, master.Position)
	assert.Equal(t, "TEE-001", master.SKU)
	price, ok := store.VariantPrice(master.ID)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("19.99").Equal(price))

	assert.Equal(t, "TEE-001-S", variants[1].SKU)
	assert.Equal(t, 2, variants[1].Position)
	assert.Equal(t, "TEE-001-M", variants[2].SKU)
	assert.Equal(t, 3, variants[2].Position)

	stock, ok := store.StockCount(variants[1].ID)
	require.True(t, ok)
	assert.Equal(t, 5, stock)
	_, ok = store.StockCount(master.ID)
	assert.False(t, ok, "master variant carries no stock item")
}

func TestProductSeeder_SecondRunIsIdempotent(t *testing.T) {
	store := newTestStore()
	src := &stubProducts{products: []domain.Product{
		testProduct(1, "A", testVariant("X", "1.00", 1)),
		testProduct(2, "B"),
	}}
	ctx := context.Background()

	first, err := newProductSeeder(store, src, testOptions()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Inserted)
	variantRows := store.Rows(repository.TableVariants)

	obs := newRecordingObserver()
	opts := testOptions()
	opts.Observer = obs
	second, err := newProductSeeder(store, src, opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(2), second.Existing)
	assert.Equal(t, first.TotalProducts, second.TotalProducts)
	assert.Equal(t, first.TotalVariants, second.TotalVariants)
	assert.Equal(t, variantRows, store.Rows(repository.TableVariants))
	assert.Equal(t, 2, obs.count(StageProducts, EntityProduct, domain.OutcomeExisting))
}

func TestProductSeeder_ResyncsSequencesAfterExplicitIDs(t *testing.T) {
	store := newTestStore()
	src := &stubProducts{products: []domain.Product{testProduct(10, "A"), testProduct(20, "B")}}
	ctx := context.Background()

	_, err := newProductSeeder(store, src, testOptions()).Run(ctx)
	require.NoError(t, err)

	id, err := store.Catalog().InsertProduct(ctx, &domain.ProductRecord{Name: "late", Slug: "late"})
	require.NoError(t, err)
	assert.Equal(t, int64(21), id)
}

func TestProductSeeder_FailureIsIsolatedToOneProduct(t *testing.T) {
	store := newTestStore()
	src := &stubProducts{products: []domain.Product{
		testProduct(1, "A"),
		testProduct(2, "B", testVariant("X", "2.00", 1)),
		testProduct(3, "C"),
	}}

	// The third variant written is product B's declared variant.
	variantWrites := 0
	store.InjectFault(func(table string) error {
		if table != repository.TableVariants {
			return nil
		}
		variantWrites++
		if variantWrites == 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	report, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Inserted)
	assert.Equal(t, int64(1), report.Failed)
	_, ok := store.Product(3)
	assert.True(t, ok, "products after a failure are still seeded")
}

func TestProductSeeder_SkipsUnknownPrototypeAndMissingID(t *testing.T) {
	store := newTestStore()
	orphan := testProduct(5, "ORPHAN")
	orphan.PrototypeID = 99
	noID := testProduct(0, "NOID")
	src := &stubProducts{products: []domain.Product{orphan, noID, testProduct(6, "OK")}}

	report, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, int64(2), report.Skipped)
	_, ok := store.Product(5)
	assert.False(t, ok)
}

func TestProductSeeder_PrototypesFromSourceTakePrecedence(t *testing.T) {
	store := newTestStore()
	p := testProduct(1, "A")
	p.PrototypeID = 4
	src := &stubProducts{products: []domain.Product{p}, prototypes: []int64{4}}

	report, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Inserted)
}

func TestProductSeeder_MissingReferenceDataIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		store func() *memory.Store
	}{
		{
			name: "no prototypes",
			store: func() *memory.Store {
				s := memory.NewStore()
				s.SeedDefaults()
				return s
			},
		},
		{
			name: "no stock location",
			store: func() *memory.Store {
				s := memory.NewStore()
				s.SetShippingCategory(1)
				s.SetTaxCategory(1)
				s.SetStore(1)
				s.AddPrototypes(1)
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubProducts{products: []domain.Product{testProduct(1, "A")}}
			_, err := newProductSeeder(tt.store(), src, testOptions()).Run(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsFatal(err))
		})
	}
}

func TestProductSeeder_DuplicateOptionValueIsNotFatal(t *testing.T) {
	store := newTestStore()
	store.AddOptionValue(7, 70)
	src := &stubProducts{products: []domain.Product{
		testProduct(1, "A", testVariant("X", "1.00", 1, 7, 7)),
	}}

	report, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, 1, store.Rows(memory.TableOptionValues))
}

func TestProductSeeder_LinksCrossTaxonomyMatches(t *testing.T) {
	store := newTestStore()
	p := testProduct(1, "A")
	p.TaxonIDs = []int64{2}
	src := &stubProducts{
		products: []domain.Product{p},
		taxons: []domain.Taxon{
			{ID: 2, Name: "T-Shirts", TaxonomyID: 1, ParentName: "Categories"},
			{ID: 5, Name: "tshirts", TaxonomyID: 3, ParentName: "Collections"},
			{ID: 9, Name: "T Shirts", TaxonomyID: 2, ParentName: domain.BrandsTaxonomy},
		},
	}

	_, err := newProductSeeder(store, src, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, store.ProductTaxons(1))
}
