package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/internal/storage"
)

const defaultProgressEvery = 10

// ImageSource yields the product documents carrying image payloads.
type ImageSource interface {
	Products() ([]domain.Product, error)
}

// ImageOptions bounds the image pipeline.
type ImageOptions struct {
	// Concurrency is the number of products processed at once.
	Concurrency int
	// IOConcurrency bounds the downloads and DB writes in flight across all
	// products.
	IOConcurrency int
	// ProgressEvery logs progress each time this many images completed.
	ProgressEvery int
}

// ImageReport summarizes an images stage.
type ImageReport struct {
	Products       int   `json:"products"`
	FailedProducts int64 `json:"failed_products"`
	Planned        int64 `json:"planned"`
	// Processed counts the planned images accounted for, whether seeded,
	// failed or skipped. It equals Planned once the stage returns.
	Processed int64         `json:"processed"`
	Images    domain.Counts `json:"images"`
}

// imageJob is one image to attach to a variant.
type imageJob struct {
	url       string
	variantID int64
	alt       string
	position  int
}

// ImagePipeline downloads product images into blob storage and links them to
// variants through blob, asset and attachment rows.
type ImagePipeline struct {
	repo     repository.ImageRepository
	ingestor *storage.Ingestor
	source   ImageSource
	cfg      ImageOptions
	opts     Options
	logger   *slog.Logger
}

// NewImagePipeline creates a new image pipeline.
func NewImagePipeline(repo repository.ImageRepository, ingestor *storage.Ingestor, source ImageSource, cfg ImageOptions, opts Options) *ImagePipeline {
	opts = opts.withDefaults()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.IOConcurrency < 1 {
		cfg.IOConcurrency = cfg.Concurrency
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	return &ImagePipeline{
		repo:     repo,
		ingestor: ingestor,
		source:   source,
		cfg:      cfg,
		opts:     opts,
		logger:   opts.Logger.With(slog.String("stage", StageImages)),
	}
}

// Run seeds the images of every product. A failing image or product never
// stops the others.
func (p *ImagePipeline) Run(ctx context.Context) (*ImageReport, error) {
	products, err := p.source.Products()
	if err != nil {
		return nil, err
	}

	var withImages []*domain.Product
	var planned int64
	for i := range products {
		if products[i].Images.HasImages() {
			withImages = append(withImages, &products[i])
			planned += int64(countImages(products[i].Images))
		}
	}
	report := &ImageReport{Products: len(withImages), Planned: planned}
	if len(withImages) == 0 {
		p.logger.Warn("no products with image data found")
		return report, nil
	}
	p.logger.Info("seeding product images",
		slog.Int("products", len(withImages)), slog.Int64("images", planned))

	var (
		tally          domain.Tally
		failedProducts atomic.Int64
	)
	prog := newProgress(planned, int64(p.cfg.ProgressEvery), p.opts.Now(), p.opts.Now, p.logger)
	sem := semaphore.NewWeighted(int64(p.cfg.IOConcurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, prod := range withImages {
		g.Go(func() error {
			if err := p.seedProduct(gctx, prod, sem, &tally, prog); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failedProducts.Add(1)
				p.logger.Error("product image processing failed",
					slog.Int64("product_id", prod.ID),
					slog.String("name", prod.Name),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FailedProducts = failedProducts.Load()
	report.Processed = prog.completed.Load()
	report.Images = tally.Snapshot()
	p.logger.Info("images stage complete",
		slog.Int64("succeeded", report.Images.Inserted),
		slog.Int64("failed", report.Images.Failed),
		slog.Int64("skipped", report.Images.Skipped),
		slog.Int64("failed_products", report.FailedProducts),
	)
	return report, nil
}

// seedProduct resolves the product's variants and seeds its images in
// order.
func (p *ImagePipeline) seedProduct(ctx context.Context, prod *domain.Product, sem *semaphore.Weighted, tally *domain.Tally, prog *progress) error {
	// Images never reached still count towards progress.
	remaining := int64(countImages(prod.Images))
	defer func() {
		if remaining > 0 {
			prog.skip(remaining)
		}
	}()

	productID, found, err := p.repo.FindProductID(ctx, prod.ID, prod.Slug())
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("product %d not found", prod.ID)
	}
	variants, err := p.repo.ListVariants(ctx, productID)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return fmt.Errorf("no variants found for product %d", productID)
	}

	jobs, skipped := planImages(prod, productID, variants)
	for _, sk := range skipped {
		p.logger.Warn("no variant for image position, skipping",
			slog.Int64("product_id", productID), slog.String("position", sk.key), slog.Int("images", sk.images))
		for range sk.images {
			record(tally, p.opts.Observer, StageImages, EntityImage, domain.OutcomeSkipped)
		}
		prog.skip(int64(sk.images))
		remaining -= int64(sk.images)
	}

	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		err := p.seedImage(ctx, job)
		sem.Release(1)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("failed to seed image",
				slog.Int64("variant_id", job.variantID),
				slog.String("url", job.url),
				slog.String("error", err.Error()),
			)
		}
		outcome := domain.OutcomeInserted
		if err != nil {
			outcome = domain.OutcomeFailed
		}
		record(tally, p.opts.Observer, StageImages, EntityImage, outcome)
		prog.done(err == nil)
		remaining--
	}
	return nil
}

// seedImage downloads one image and writes its blob, asset and attachment.
// The stored file is removed when the rows cannot be written.
func (p *ImagePipeline) seedImage(ctx context.Context, job imageJob) error {
	key, err := storage.GenerateKey()
	if err != nil {
		return err
	}
	file, err := p.ingestor.DownloadAndStore(ctx, job.url, key)
	if err != nil {
		return err
	}

	now := p.opts.Now()
	write := func(repo repository.ImageRepository) error {
		blobID, err := repo.InsertBlob(ctx, &domain.Blob{
			Key:         file.Key,
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Metadata:    domain.DefaultBlobMetadata,
			ServiceName: domain.BlobServiceName,
			ByteSize:    file.ByteSize,
			Checksum:    file.Checksum,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		assetID, err := repo.InsertAsset(ctx, &domain.Asset{
			ViewableType: domain.ViewableTypeVariant,
			ViewableID:   job.variantID,
			Type:         domain.AssetTypeImage,
			Alt:          job.alt,
			Position:     job.position,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		_, err = repo.InsertAttachment(ctx, &domain.Attachment{
			Name:       domain.AttachmentName,
			RecordType: domain.RecordTypeAsset,
			RecordID:   assetID,
			BlobID:     blobID,
			CreatedAt:  now,
		})
		return err
	}

	if p.opts.EntityTransactions {
		err = p.repo.WithinTx(ctx, write)
	} else {
		err = write(p.repo)
	}
	if err != nil {
		if derr := p.ingestor.Store().Delete(context.WithoutCancel(ctx), key); derr != nil {
			p.logger.Warn("failed to remove orphaned blob file",
				slog.String("key", key), slog.String("error", derr.Error()))
		}
		return err
	}
	return nil
}

// planImages maps the image payload onto the product's variants. Position N
// of variant_images belongs to the non-master variant at position N+1; main
// images go to the variant of image position 1, or the master, and are
// numbered after the longest variant image list. It also returns the
// variant_images keys that match no variant.
func planImages(prod *domain.Product, productID int64, variants []domain.VariantRef) ([]imageJob, []skippedImages) {
	images := prod.Images
	name := images.ProductName
	if name == "" {
		name = prod.Name
	}
	if name == "" {
		name = fmt.Sprintf("Product %d", productID)
	}

	var masterID int64
	byPosition := make(map[int]int64)
	for _, v := range variants {
		if v.IsMaster {
			masterID = v.ID
			continue
		}
		byPosition[v.Position-1] = v.ID
	}

	type positioned struct {
		key string
		pos int
	}
	var keys []positioned
	var skipped []skippedImages
	skip := func(k string) {
		skipped = append(skipped, skippedImages{key: k, images: countURLs(images.VariantImages[k])})
	}
	for k := range images.VariantImages {
		pos, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			skip(k)
			continue
		}
		keys = append(keys, positioned{key: k, pos: pos})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].pos < keys[j].pos })

	var jobs []imageJob
	maxVariantImages := 1
	for _, k := range keys {
		variantID, ok := byPosition[k.pos]
		if !ok {
			skip(k.key)
			continue
		}
		list := images.VariantImages[k.key]
		if len(list) > maxVariantImages {
			maxVariantImages = len(list)
		}
		for idx, img := range list {
			if img.URL == "" {
				continue
			}
			jobs = append(jobs, imageJob{
				url:       img.URL,
				variantID: variantID,
				alt:       variantAlt(name, img.SKUSuffix, k.pos, idx),
				position:  idx + 1,
			})
		}
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].key < skipped[j].key })

	target, ok := byPosition[1]
	if !ok {
		target = masterID
	}
	for idx, img := range images.MainImages {
		if img.URL == "" {
			continue
		}
		jobs = append(jobs, imageJob{
			url:       img.URL,
			variantID: target,
			alt:       mainAlt(name, idx),
			position:  maxVariantImages + idx + 1,
		})
	}
	return jobs, skipped
}

// variantAlt is the alt text of the idx-th (0-based) image of a variant.
func variantAlt(productName, skuSuffix string, position, idx int) string {
	label := skuSuffix
	if label == "" {
		label = fmt.Sprintf("Variant %d", position)
	}
	alt := fmt.Sprintf("%s - %s variant", productName, titleWords(strings.ReplaceAll(label, "-", " ")))
	if idx > 0 {
		alt += fmt.Sprintf(" image %d", idx+1)
	}
	return alt
}

// mainAlt is the alt text of the idx-th (0-based) main product image.
func mainAlt(productName string, idx int) string {
	if idx == 0 {
		return productName + " - Main product image"
	}
	return fmt.Sprintf("%s - Product image %d", productName, idx+1)
}

// titleWords upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleWords(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}

// skippedImages are the images of a variant_images key with no variant.
type skippedImages struct {
	key    string
	images int
}

// countImages counts the images with a URL; empty entries are never planned.
func countImages(images *domain.ProductImages) int {
	n := countURLs(images.MainImages)
	for _, list := range images.VariantImages {
		n += countURLs(list)
	}
	return n
}

func countURLs(list []domain.ImageRef) int {
	n := 0
	for _, img := range list {
		if img.URL != "" {
			n++
		}
	}
	return n
}

// progress reports image completion every few images.
type progress struct {
	total     int64
	every     int64
	start     time.Time
	now       func() time.Time
	logger    *slog.Logger
	completed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

func newProgress(total, every int64, start time.Time, now func() time.Time, logger *slog.Logger) *progress {
	return &progress{total: total, every: every, start: start, now: now, logger: logger}
}

func (p *progress) done(ok bool) {
	if ok {
		p.succeeded.Add(1)
	} else {
		p.failed.Add(1)
	}
	p.advance(1)
}

// skip accounts for n images that were never attempted.
func (p *progress) skip(n int64) {
	p.advance(n)
}

func (p *progress) advance(n int64) {
	completed := p.completed.Add(n)
	if p.total == 0 || (completed-n)/p.every == completed/p.every {
		return
	}

	succeeded := p.succeeded.Load()
	attrs := []any{
		slog.String("progress", fmt.Sprintf("%d/%d", completed, p.total)),
		slog.Float64("percent", float64(completed)/float64(p.total)*100),
		slog.Int64("succeeded", succeeded),
		slog.Int64("failed", p.failed.Load()),
	}
	if elapsed := p.now().Sub(p.start).Seconds(); elapsed > 0 {
		rate := float64(succeeded) / elapsed
		eta := 0.0
		if rate > 0 {
			eta = float64(p.total-completed) / rate / 60
		}
		attrs = append(attrs, slog.Float64("rate_per_sec", rate), slog.Float64("eta_minutes", eta))
	}
	p.logger.Info("image progress", attrs...)
}
