package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/george-bobby/app-opencats-sub001/internal/app"
	"github.com/george-bobby/app-opencats-sub001/internal/config"
	"github.com/george-bobby/app-opencats-sub001/internal/service"
	"github.com/george-bobby/app-opencats-sub001/pkg/logger"
)

type flags struct {
	dataDir     string
	storageDir  string
	concurrency int
	dryRun      bool
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "seeder",
		Short:         "Seed a Spree database with generated products, images and orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.dataDir, "data-dir", "", "directory holding the generated JSON files (env SEED_DATA_DIR)")
	pf.StringVar(&f.storageDir, "storage-dir", "", "Active Storage root for downloaded images (env SEED_STORAGE_DIR)")
	pf.IntVar(&f.concurrency, "concurrency", 0, "products processed at once by the image stage (env SEED_IMAGE_CONCURRENCY)")
	pf.BoolVar(&f.dryRun, "dry-run", false, "write to an in-memory sink instead of the database (env SEED_DRY_RUN)")

	for _, c := range []struct {
		stage string
		short string
	}{
		{service.StageProducts, "Seed products, variants, prices and stock"},
		{service.StageImages, "Download product images and attach them to variants"},
		{service.StageOrders, "Seed orders with line items, shipments and state histories"},
		{app.StageAll, "Run every stage in order"},
	} {
		stage := c.stage
		root.AddCommand(&cobra.Command{
			Use:   stage,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if err := applyFlags(cmd, &f, cfg); err != nil {
					return err
				}
				return run(cmd, cfg, stage)
			},
		})
	}
	return root
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if fs.Changed("storage-dir") {
		cfg.StorageDir = f.storageDir
	}
	if fs.Changed("concurrency") {
		cfg.ImageConcurrency = f.concurrency
	}
	if fs.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, cfg *config.Config, stage string) error {
	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	log.Info("starting seeder",
		slog.String("stage", stage),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("dry_run", cfg.DryRun),
	)

	ctx := cmd.Context()
	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer application.Close()

	started := time.Now()
	if err := application.Run(ctx, stage); err != nil {
		return err
	}
	log.Info("seeder finished",
		slog.String("run_id", application.RunID()),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}
