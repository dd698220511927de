package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/george-bobby/app-opencats-sub001/pkg/config"
	"github.com/george-bobby/app-opencats-sub001/pkg/database"
	"github.com/george-bobby/app-opencats-sub001/pkg/httpclient"
	"github.com/george-bobby/app-opencats-sub001/pkg/tracing"
)

// Config holds all configuration for the seeder.
type Config struct {
	ServiceName string `env:"SEEDER_SERVICE_NAME" envDefault:"spree-seeder"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"spreecommerce"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"spree"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"20"`

	// Content and blob storage
	DataDir    string `env:"SEED_DATA_DIR" envDefault:"data"`
	StorageDir string `env:"SEED_STORAGE_DIR" envDefault:"storage"`

	// Image pipeline
	ImageConcurrency   int           `env:"SEED_IMAGE_CONCURRENCY" envDefault:"32"`
	ImageIOConcurrency int           `env:"SEED_IMAGE_IO_CONCURRENCY" envDefault:"8"`
	DownloadRPS        float64       `env:"SEED_IMAGE_DOWNLOAD_RPS" envDefault:"0"`
	HTTPTimeout        time.Duration `env:"SEED_HTTP_TIMEOUT" envDefault:"30s"`
	HTTPMaxRetries     int           `env:"SEED_HTTP_MAX_RETRIES" envDefault:"2"`

	// Content realism
	ShipReuseBillProbability float64 `env:"SEED_SHIP_REUSE_BILL_PROBABILITY" envDefault:"0.7"`
	SkipConfirmProbability   float64 `env:"SEED_SKIP_CONFIRM_PROBABILITY" envDefault:"0.3"`
	RandomSeed               uint64  `env:"SEED_RANDOM_SEED" envDefault:"0"`

	EntityTransactions bool `env:"SEED_ENTITY_TRANSACTIONS" envDefault:"true"`
	DryRun             bool `env:"SEED_DRY_RUN" envDefault:"false"`

	// Optional ops surface
	MetricsAddr  string   `env:"METRICS_ADDR"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"seeder.events"`
	RedisAddr    string   `env:"REDIS_ADDR"`
	OTelEnabled  bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string   `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load seeder config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("invalid postgres port: %d", c.PostgresPort)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return fmt.Errorf("storage dir must not be empty")
	}
	if c.ImageConcurrency < 1 {
		return fmt.Errorf("image concurrency must be positive: %d", c.ImageConcurrency)
	}
	if c.ImageIOConcurrency < 1 {
		return fmt.Errorf("image io concurrency must be positive: %d", c.ImageIOConcurrency)
	}
	if c.DownloadRPS < 0 {
		return fmt.Errorf("download rps must not be negative: %v", c.DownloadRPS)
	}
	for name, p := range map[string]float64{
		"ship reuse bill": c.ShipReuseBillProbability,
		"skip confirm":    c.SkipConfirmProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s probability out of range: %v", name, p)
		}
	}
	return nil
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	if c.PostgresMaxConns > 0 {
		pg.MaxConns = c.PostgresMaxConns
	}
	if pg.MinConns > pg.MaxConns {
		pg.MinConns = pg.MaxConns
	}
	return pg
}

// HTTPClient returns the image download client configuration.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.HTTPTimeout
	hc.MaxRetries = c.HTTPMaxRetries
	hc.RequestsPerSecond = c.DownloadRPS
	return hc
}

// Redis returns the run lock connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr}
}

// Tracing returns the tracer provider settings.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Enabled = c.OTelEnabled
	tc.OTLPEndpoint = c.OTelEndpoint
	return tc
}
