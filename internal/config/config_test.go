package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "spree-seeder", cfg.ServiceName)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "storage", cfg.StorageDir)
	assert.Equal(t, 32, cfg.ImageConcurrency)
	assert.Equal(t, 8, cfg.ImageIOConcurrency)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.InDelta(t, 0.7, cfg.ShipReuseBillProbability, 1e-9)
	assert.InDelta(t, 0.3, cfg.SkipConfirmProbability, 1e-9)
	assert.True(t, cfg.EntityTransactions)
	assert.False(t, cfg.DryRun)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "seeder.events", cfg.KafkaTopic)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_MAX_CONNS", "5")
	t.Setenv("SEED_IMAGE_CONCURRENCY", "4")
	t.Setenv("SEED_IMAGE_DOWNLOAD_RPS", "2.5")
	t.Setenv("SEED_RANDOM_SEED", "99")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, int32(5), pg.MaxConns)
	assert.Equal(t, 4, cfg.ImageConcurrency)
	assert.Equal(t, uint64(99), cfg.RandomSeed)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.InDelta(t, 2.5, cfg.HTTPClient().RequestsPerSecond, 1e-9)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "POSTGRES_PORT", "70000"},
		{"concurrency", "SEED_IMAGE_CONCURRENCY", "0"},
		{"io concurrency", "SEED_IMAGE_IO_CONCURRENCY", "-1"},
		{"probability", "SEED_SHIP_REUSE_BILL_PROBABILITY", "1.5"},
		{"rps", "SEED_IMAGE_DOWNLOAD_RPS", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPostgres_ClampsMinConns(t *testing.T) {
	cfg := &Config{PostgresPort: 5432, PostgresMaxConns: 1}
	pg := cfg.Postgres()
	assert.Equal(t, int32(1), pg.MaxConns)
	assert.Equal(t, int32(1), pg.MinConns)
}
