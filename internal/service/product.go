package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// ProductSource yields the catalog documents.
type ProductSource interface {
	Products() ([]domain.Product, error)
	Taxons() ([]domain.Taxon, error)
	PrototypeIDs() ([]int64, bool, error)
}

// ProductReport summarizes a products stage.
type ProductReport struct {
	domain.Counts
	VariantsCreated int64 `json:"variants_created"`
	TotalProducts   int64 `json:"total_products"`
	TotalVariants   int64 `json:"total_variants"`
}

// catalogRefs are the reference rows shared by every product.
type catalogRefs struct {
	shippingCategoryID int64
	taxCategoryID      int64
	storeID            int64
	stockLocationID    int64
	prototypes         map[int64]bool
	taxons             *domain.TaxonIndex
}

// ProductSeeder writes products, variants, prices and stock items.
type ProductSeeder struct {
	repo   repository.CatalogRepository
	seq    repository.Sequencer
	source ProductSource
	opts   Options
	logger *slog.Logger
}

// NewProductSeeder creates a new product seeder.
func NewProductSeeder(repo repository.CatalogRepository, seq repository.Sequencer, source ProductSource, opts Options) *ProductSeeder {
	opts = opts.withDefaults()
	return &ProductSeeder{
		repo:   repo,
		seq:    seq,
		source: source,
		opts:   opts,
		logger: opts.Logger.With(slog.String("stage", StageProducts)),
	}
}

// Run seeds every product of the content source. It returns an error only
// for setup problems; per-product failures are logged and counted.
func (s *ProductSeeder) Run(ctx context.Context) (*ProductReport, error) {
	products, err := s.source.Products()
	if err != nil {
		return nil, err
	}
	refs, err := s.loadRefs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		tally    domain.Tally
		variants int64
	)
	for i := range products {
		p := &products[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, n, err := s.seedProduct(ctx, p, refs)
		outcome = outcomeOf(outcome, err)
		record(&tally, s.opts.Observer, StageProducts, EntityProduct, outcome)
		variants += int64(n)

		attrs := []any{slog.Int64("product_id", p.ID), slog.String("name", p.Name), slog.String("sku", p.SKU)}
		switch outcome {
		case domain.OutcomeInserted:
			s.logger.Debug("product inserted", append(attrs, slog.Int("variants", n))...)
		case domain.OutcomeExisting:
			s.logger.Info("found existing product", attrs...)
		case domain.OutcomeSkipped:
			s.logger.Warn("product skipped", append(attrs, slog.String("reason", err.Error()))...)
		default:
			s.logger.Error("failed to seed product", append(attrs, slog.String("error", err.Error()))...)
		}
	}

	counts := tally.Snapshot()
	if counts.Inserted > 0 {
		if err := resync(ctx, s.seq, s.logger,
			repository.TableProducts, repository.TableVariants, repository.TablePrices, repository.TableStockItems); err != nil {
			return nil, err
		}
	}

	report := &ProductReport{Counts: counts, VariantsCreated: variants}
	if report.TotalProducts, err = s.repo.CountProducts(ctx); err != nil {
		return nil, err
	}
	if report.TotalVariants, err = s.repo.CountVariants(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("products stage complete",
		slog.Int64("inserted", counts.Inserted),
		slog.Int64("existing", counts.Existing),
		slog.Int64("skipped", counts.Skipped),
		slog.Int64("failed", counts.Failed),
		slog.Int64("variants_created", variants),
		slog.Int64("total_products", report.TotalProducts),
		slog.Int64("total_variants", report.TotalVariants),
	)
	return report, nil
}

// loadRefs resolves the prototype catalog, taxon index and default rows.
func (s *ProductSeeder) loadRefs(ctx context.Context) (*catalogRefs, error) {
	refs := &catalogRefs{prototypes: make(map[int64]bool)}

	ids, found, err := s.source.PrototypeIDs()
	if err != nil {
		return nil, err
	}
	if !found || len(ids) == 0 {
		if ids, err = s.repo.PrototypeIDs(ctx); err != nil {
			return nil, apperrors.Setup("load prototypes", err)
		}
		s.logger.Info("loaded prototypes from database", slog.Int("count", len(ids)))
	}
	if len(ids) == 0 {
		return nil, apperrors.Setup("no prototypes defined", nil)
	}
	for _, id := range ids {
		refs.prototypes[id] = true
	}

	taxons, err := s.source.Taxons()
	if err != nil {
		return nil, err
	}
	refs.taxons = domain.NewTaxonIndex(taxons)

	lookups := []struct {
		what string
		dst  *int64
		get  func(context.Context) (int64, bool, error)
	}{
		{"default shipping category", &refs.shippingCategoryID, s.repo.DefaultShippingCategoryID},
		{"default tax category", &refs.taxCategoryID, s.repo.DefaultTaxCategoryID},
		{"default store", &refs.storeID, s.repo.DefaultStoreID},
		{"stock location", &refs.stockLocationID, s.repo.DefaultStockLocationID},
	}
	for _, l := range lookups {
		id, ok, err := l.get(ctx)
		if err != nil {
			return nil, apperrors.Setup("look up "+l.what, err)
		}
		if !ok {
			return nil, apperrors.Setup(l.what+" not found", nil)
		}
		*l.dst = id
	}
	return refs, nil
}

// seedProduct writes one product and its variants. It reports the number of
// declared variants created.
func (s *ProductSeeder) seedProduct(ctx context.Context, p *domain.Product, refs *catalogRefs) (domain.Outcome, int, error) {
	if p.ID <= 0 {
		return domain.OutcomeSkipped, 0, apperrors.Skipped("product has no id")
	}

	exists, err := s.repo.ProductExists(ctx, p.ID, p.Slug())
	if err != nil {
		return domain.OutcomeFailed, 0, err
	}
	if exists {
		return domain.OutcomeExisting, 0, nil
	}

	if p.PrototypeID == 0 || !refs.prototypes[p.PrototypeID] {
		return domain.OutcomeSkipped, 0, apperrors.Skipped(fmt.Sprintf("prototype %d not found", p.PrototypeID))
	}

	now := s.opts.Now()
	rec, ok := domain.NewProductRecord(p, now)
	if !ok {
		s.logger.Warn("invalid available_on, using current time",
			slog.Int64("product_id", p.ID), slog.String("available_on", p.AvailableOn.Raw))
	}
	rec.ShippingCategoryID = refs.shippingCategoryID
	rec.TaxCategoryID = refs.taxCategoryID

	taxonIDs := refs.taxons.Expand(p.TaxonIDs)
	if extra := len(taxonIDs) - len(p.TaxonIDs); extra > 0 {
		s.logger.Info("added cross-taxonomy matches", slog.String("name", p.Name), slog.Int("count", extra))
	}

	optionTypes, err := s.repo.OptionTypeIDs(ctx, p.OptionValueIDs())
	if err != nil {
		return domain.OutcomeFailed, 0, err
	}

	var created int
	write := func(repo repository.CatalogRepository) error {
		created = 0
		return s.writeProduct(ctx, repo, p, rec, taxonIDs, optionTypes, refs, now, &created)
	}
	if s.opts.EntityTransactions {
		err = s.repo.WithinTx(ctx, write)
	} else {
		err = write(s.repo)
	}
	if err != nil {
		return domain.OutcomeFailed, 0, err
	}
	return domain.OutcomeInserted, created, nil
}

func (s *ProductSeeder) writeProduct(
	ctx context.Context,
	repo repository.CatalogRepository,
	p *domain.Product,
	rec *domain.ProductRecord,
	taxonIDs, optionTypes []int64,
	refs *catalogRefs,
	now time.Time,
	created *int,
) error {
	productID, err := repo.InsertProduct(ctx, rec)
	if err != nil {
		return err
	}
	if err := repo.LinkStore(ctx, productID, refs.storeID, now); err != nil {
		return err
	}
	for i, id := range taxonIDs {
		if err := repo.LinkTaxon(ctx, productID, id, i+1, now); err != nil {
			return err
		}
	}
	for i, id := range optionTypes {
		if err := repo.LinkOptionType(ctx, productID, id, i+1, now); err != nil {
			return err
		}
	}

	master := p.MasterVariant()
	master.ProductID = productID
	masterID, err := repo.InsertVariant(ctx, &master, now)
	if err != nil {
		return fmt.Errorf("insert master variant: %w", err)
	}
	if err := repo.InsertPrice(ctx, masterID, master.Price, master.Currency, now); err != nil {
		return err
	}

	for _, v := range p.DeclaredVariants() {
		v.ProductID = productID
		variantID, err := repo.InsertVariant(ctx, &v, now)
		if err != nil {
			return err
		}
		*created++
		if err := repo.InsertPrice(ctx, variantID, v.Price, v.Currency, now); err != nil {
			return err
		}
		for _, ov := range v.OptionValues {
			if err := s.linkOptionValue(ctx, repo, variantID, ov, now); err != nil {
				return err
			}
		}
		if err := repo.InsertStockItem(ctx, variantID, refs.stockLocationID, v.StockQuantity, now); err != nil {
			return err
		}
	}
	return nil
}

// linkOptionValue associates an option value unless it already is.
func (s *ProductSeeder) linkOptionValue(ctx context.Context, repo repository.CatalogRepository, variantID, optionValueID int64, now time.Time) error {
	inserted, err := repo.LinkOptionValue(ctx, variantID, optionValueID, now)
	if err != nil || inserted {
		return err
	}
	s.logger.Warn("option value already associated with variant, skipping",
		slog.Int64("variant_id", variantID), slog.Int64("option_value_id", optionValueID))
	return nil
}

// outcomeOf maps a per-entity error to the outcome it is counted as.
func outcomeOf(o domain.Outcome, err error) domain.Outcome {
	if err == nil {
		return o
	}
	if apperrors.KindOf(err) == apperrors.KindSkip {
		return domain.OutcomeSkipped
	}
	return domain.OutcomeFailed
}

// resync moves the sequences of tables past their highest id.
func resync(ctx context.Context, seq repository.Sequencer, logger *slog.Logger, tables ...string) error {
	for _, table := range tables {
		next, err := seq.ResyncSequence(ctx, table)
		if err != nil {
			return err
		}
		logger.Debug("sequence resynced", slog.String("table", table), slog.Int64("next_id", next))
	}
	return nil
}
