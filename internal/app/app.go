// Package app wires the seeder's dependencies and runs its stages.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/george-bobby/app-opencats-sub001/internal/config"
	"github.com/george-bobby/app-opencats-sub001/internal/content"
	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/event"
	"github.com/george-bobby/app-opencats-sub001/internal/metrics"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
	"github.com/george-bobby/app-opencats-sub001/internal/repository/memory"
	"github.com/george-bobby/app-opencats-sub001/internal/repository/postgres"
	"github.com/george-bobby/app-opencats-sub001/internal/runlock"
	"github.com/george-bobby/app-opencats-sub001/internal/service"
	"github.com/george-bobby/app-opencats-sub001/internal/statemachine"
	"github.com/george-bobby/app-opencats-sub001/internal/storage"
	"github.com/george-bobby/app-opencats-sub001/internal/storage/disk"
	memstorage "github.com/george-bobby/app-opencats-sub001/internal/storage/memory"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
	"github.com/george-bobby/app-opencats-sub001/pkg/health"
	"github.com/george-bobby/app-opencats-sub001/pkg/httpclient"
	pkgkafka "github.com/george-bobby/app-opencats-sub001/pkg/kafka"
	"github.com/george-bobby/app-opencats-sub001/pkg/logger"
	"github.com/george-bobby/app-opencats-sub001/pkg/tracing"
)

const (
	slowQueryThreshold = 500 * time.Millisecond
	lockTTL            = 2 * time.Minute
)

// StageAll runs products, images and orders in that order.
const StageAll = "all"

// Stages lists the stages StageAll expands to.
var Stages = []string{service.StageProducts, service.StageImages, service.StageOrders}

// sink is the set of repositories the stages write through.
type sink struct {
	catalog      repository.CatalogRepository
	images       repository.ImageRepository
	orders       repository.OrderRepository
	fulfillment  repository.FulfillmentRepository
	stateChanges repository.StateChangeRepository
	sequences    repository.Sequencer
}

// App wires together all dependencies and runs the seeding stages.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string

	pool     *pgxpool.Pool
	store    *memory.Store
	sink     sink
	source   *content.Source
	ingestor *storage.Ingestor

	registry *prometheus.Registry
	recorder *metrics.Recorder
	health   *health.Handler
	server   *http.Server

	kafka  *pkgkafka.Producer
	events *event.Producer
	redis  *redis.Client
	locker *runlock.Locker

	shutdownTracer func(context.Context) error
}

// Option customizes an App.
type Option func(*options)

type options struct {
	eventWriter pkgkafka.MessageWriter
	redisClient *redis.Client
	store       *memory.Store
}

// WithEventWriter publishes stage events through w instead of a broker
// connection built from the configuration.
func WithEventWriter(w pkgkafka.MessageWriter) Option {
	return func(o *options) { o.eventWriter = w }
}

// WithRedisClient uses client for the run lock.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) { o.redisClient = client }
}

// WithStore uses store as the sink of a dry run.
func WithStore(store *memory.Store) Option {
	return func(o *options) { o.store = store }
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()
	a := &App{
		cfg:      cfg,
		logger:   log.With(slog.String("run_id", runID)),
		runID:    runID,
		registry: prometheus.NewRegistry(),
		health:   health.NewHandler(),
		source:   content.NewSource(cfg.DataDir, log),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.NewRecorder(a.registry)

	shutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdown

	if err := a.initSink(ctx, o.store); err != nil {
		a.Close()
		return nil, err
	}
	a.initIngestor()
	if err := a.initRunLock(ctx, o.redisClient); err != nil {
		a.Close()
		return nil, err
	}
	a.initEvents(o.eventWriter)
	a.initOpsServer()

	return a, nil
}

// RunID returns the identifier attached to this run's logs and events.
func (a *App) RunID() string {
	return a.runID
}

// Store returns the in-memory sink of a dry run, or nil.
func (a *App) Store() *memory.Store {
	return a.store
}

// Registry returns the registry the seeder's metrics are exported from.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

func (a *App) initSink(ctx context.Context, store *memory.Store) error {
	if a.cfg.DryRun {
		if store == nil {
			store = memory.NewStore()
			store.SeedDefaults()
			if users, err := a.source.Users(); err == nil {
				store.AddUsers(users...)
			}
		}
		a.store = store
		a.sink = sink{
			catalog:      store.Catalog(),
			images:       store.Images(),
			orders:       store.Orders(),
			fulfillment:  store,
			stateChanges: store.StateChanges(),
			sequences:    store,
		}
		a.logger.Info("dry run: writing to the in-memory sink")
		return nil
	}

	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)
	a.registry.MustRegister(database.NewPoolStatsCollector(pool, a.cfg.ServiceName))
	a.health.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	w := database.NewWriter(pool,
		database.WithSlowQueryLog(slowQueryThreshold, a.logger),
		database.WithTransactions(a.cfg.EntityTransactions),
	)
	a.sink = sink{
		catalog:      postgres.NewCatalogRepository(w),
		images:       postgres.NewImageRepository(w),
		orders:       postgres.NewOrderRepository(w),
		fulfillment:  postgres.NewFulfillmentRepository(w),
		stateChanges: postgres.NewStateChangeRepository(w),
		sequences:    w,
	}
	return nil
}

func (a *App) initIngestor() {
	client := httpclient.New(a.cfg.HTTPClient())
	fetcher := httpclient.NewCircuitBreakerClient(client,
		httpclient.DefaultCircuitBreakerConfig("image-download"), a.logger, a.registry)

	var blobs storage.Storage
	if a.cfg.DryRun {
		blobs = memstorage.New()
	} else {
		blobs = disk.New(a.cfg.StorageDir)
	}
	a.ingestor = storage.NewIngestor(blobs, fetcher)
}

func (a *App) initRunLock(ctx context.Context, client *redis.Client) error {
	if client == nil {
		if !a.cfg.Redis().Enabled() {
			return nil
		}
		c, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		client = c
		a.redis = c
		a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisAddr))
	}
	a.locker = runlock.New(client, lockTTL)
	a.health.Register("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return nil
}

func (a *App) initEvents(w pkgkafka.MessageWriter) {
	switch {
	case w != nil:
		a.kafka = pkgkafka.NewProducerWithWriter(w, a.logger)
	case len(a.cfg.KafkaBrokers) > 0:
		a.kafka = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
		a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	default:
		return
	}
	a.events = event.NewProducer(a.kafka, a.cfg.KafkaTopic, a.logger)
}

func (a *App) initOpsServer() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	r := chi.NewRouter()
	a.health.Mount(r)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:         a.cfg.MetricsAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// lockKey names the run lock of the target database.
func (a *App) lockKey() string {
	return fmt.Sprintf("%s:lock:%s:%d/%s", a.cfg.ServiceName, a.cfg.PostgresHost, a.cfg.PostgresPort, a.cfg.PostgresDB)
}

// Run executes the named stages in order. StageAll expands to every stage.
// The first failing stage stops the run.
func (a *App) Run(ctx context.Context, stages ...string) error {
	stages = expandStages(stages)
	for _, s := range stages {
		if !validStage(s) {
			return fmt.Errorf("unknown stage %q", s)
		}
	}

	ctx = logger.WithRunID(ctx, a.runID)
	ctx = logger.NewContext(ctx, a.logger)

	if a.server != nil {
		go func() {
			a.logger.Info("starting ops server", slog.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server error", slog.String("error", err.Error()))
			}
		}()
	}

	if a.locker != nil {
		lock, err := a.locker.Acquire(ctx, a.lockKey(), a.runID)
		if err != nil {
			return err
		}
		keepCtx, stop := context.WithCancel(ctx)
		defer func() {
			stop()
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				a.logger.Error("run lock release error", slog.String("error", err.Error()))
			}
		}()
		go lock.KeepAlive(keepCtx, func(err error) {
			a.logger.Warn("run lock refresh failed", slog.String("error", err.Error()))
		})
	}

	a.logger.Info("seed run started", slog.Any("stages", stages), slog.Bool("dry_run", a.cfg.DryRun))
	started := time.Now()
	for _, s := range stages {
		if err := a.runStage(ctx, s); err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
	}
	a.logger.Info("seed run finished", slog.Duration("elapsed", time.Since(started)))
	return nil
}

func (a *App) runStage(ctx context.Context, stage string) (err error) {
	ctx = logger.WithStage(ctx, stage)
	ctx, span := tracing.StartSpan(ctx, "seed."+stage, attribute.String("seed.run_id", a.runID))
	a.health.SetStage(stage)
	started := time.Now()
	log := a.logger.With(slog.String("stage", stage))
	log.Info("stage started")

	var counts map[string]domain.Counts
	defer func() {
		tracing.EndSpan(span, err)
		a.recorder.StageDone(stage, started, err)
		a.health.SetStage("")
		if err != nil {
			log.Error("stage failed", slog.String("error", err.Error()))
		} else {
			log.Info("stage finished", slog.Duration("elapsed", time.Since(started)))
		}
		a.publish(ctx, event.NewStageCompleted(stage, started, err, a.cfg.DryRun, counts))
	}()

	opts := a.serviceOptions(log)
	switch stage {
	case service.StageProducts:
		report, err := service.NewProductSeeder(a.sink.catalog, a.sink.sequences, a.source, opts).Run(ctx)
		if report != nil {
			counts = map[string]domain.Counts{service.EntityProduct: report.Counts}
		}
		return err
	case service.StageImages:
		report, err := service.NewImagePipeline(a.sink.images, a.ingestor, a.source, service.ImageOptions{
			Concurrency:   a.cfg.ImageConcurrency,
			IOConcurrency: a.cfg.ImageIOConcurrency,
		}, opts).Run(ctx)
		if report != nil {
			counts = map[string]domain.Counts{service.EntityImage: report.Images}
		}
		return err
	default:
		report, err := service.NewOrderSeeder(service.OrderRepositories{
			Orders:       a.sink.orders,
			Fulfillment:  a.sink.fulfillment,
			StateChanges: a.sink.stateChanges,
			Sequences:    a.sink.sequences,
		}, a.source, a.orderOptions(), opts).Run(ctx)
		if report != nil {
			counts = map[string]domain.Counts{
				service.EntityOrder:        report.Orders,
				service.EntityLineItem:     report.LineItems,
				service.EntityShipment:     report.Shipments,
				service.EntityShippingRate: report.ShippingRates,
				service.EntityStateChange:  report.StateChanges.Orders,
				service.EntityGuestAddress: report.GuestAddresses,
			}
		}
		return err
	}
}

func (a *App) serviceOptions(log *slog.Logger) service.Options {
	return service.Options{
		EntityTransactions: a.cfg.EntityTransactions,
		Observer:           a.recorder,
		Logger:             log,
	}
}

func (a *App) orderOptions() service.OrderOptions {
	planner := statemachine.DefaultOptions()
	planner.SkipConfirmProbability = a.cfg.SkipConfirmProbability
	return service.OrderOptions{
		ShipReuseBillProbability: a.cfg.ShipReuseBillProbability,
		Planner:                  planner,
		Seed:                     a.cfg.RandomSeed,
	}
}

// publish sends a stage event when a broker is configured. Failures are
// logged and never fail the stage.
func (a *App) publish(ctx context.Context, data event.StageCompletedData) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishStageCompleted(context.WithoutCancel(ctx), a.runID, data); err != nil {
		a.logger.Warn("stage event not published", slog.String("stage", data.Stage), slog.String("error", err.Error()))
	}
}

// Close releases every resource the App opened.
func (a *App) Close() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("ops server shutdown error", slog.String("error", err.Error()))
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
}

func expandStages(stages []string) []string {
	var out []string
	for _, s := range stages {
		if s == StageAll {
			out = append(out, Stages...)
			continue
		}
		out = append(out, s)
	}
	return out
}

func validStage(s string) bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}
