package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/george-bobby/app-opencats-sub001/internal/config"
	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/event"
	"github.com/george-bobby/app-opencats-sub001/internal/runlock"
	pkgkafka "github.com/george-bobby/app-opencats-sub001/pkg/kafka"
)

// --- Test Helpers ---

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func (w *captureWriter) stages(t *testing.T) map[string]event.StageCompletedData {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]event.StageCompletedData)
	for _, m := range w.msgs {
		var env pkgkafka.Event
		require.NoError(t, json.Unmarshal(m.Value, &env))
		var data event.StageCompletedData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		out[data.Stage] = data
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		ServiceName:              "spree-seeder",
		PostgresHost:             "localhost",
		PostgresPort:             5432,
		PostgresDB:               "spree",
		DataDir:                  dataDir,
		StorageDir:               filepath.Join(dataDir, "storage"),
		ImageConcurrency:         2,
		ImageIOConcurrency:       2,
		HTTPTimeout:              5 * time.Second,
		ShipReuseBillProbability: 0.7,
		SkipConfirmProbability:   0.3,
		RandomSeed:               1,
		EntityTransactions:       true,
		DryRun:                   true,
		KafkaTopic:               "seeder.events",
	}
}

func writeData(t *testing.T, dir, imageURL string) {
	t.Helper()
	files := map[string]string{
		"prototypes.json": `{"prototypes":[{"id":1,"name":"Shirt"}]}`,
		"products.json": `{"products":[{"id":1,"name":"Tee","sku":"TEE","master_price":"19.99","prototype_id":1,
			"variants":[{"sku_suffix":"S","price":19.99,"stock_quantity":3}],
			"available_on":"2024-01-01T00:00:00",
			"images":{"product_name":"Tee","main_images":[{"url":"` + imageURL + `"}],"variant_images":{}}}]}`,
		"users.json": `{"users":[{"id":1,"email":"ann@example.com","is_customer":true}]}`,
		"orders.json": `{"orders":[{"id":10,"number":"R100000010","state":"complete","payment_state":"paid",
			"shipment_state":"shipped","user_id":1,"bill_address_id":-1,"ship_address_id":-2,
			"email":"ann@example.com","item_total":"19.99","total":"19.99","currency":"USD","store_id":1,
			"created_at":"2024-02-01T10:00:00","updated_at":"2024-02-03T10:00:00",
			"completed_at":"2024-02-01T11:00:00"}]}`,
		"line_items.json": `{"line_items":[{"id":100,"variant_id":2,"order_id":10,"quantity":1,"price":"19.99",
			"created_at":"2024-02-01T10:00:00","updated_at":"2024-02-01T10:00:00","currency":"USD"}]}`,
		"shipments.json": `{"shipments":[{"id":200,"number":"H100000200","order_id":10,"state":"shipped",
			"stock_location_id":1,"cost":"5.00","shipped_at":"2024-02-02T10:00:00",
			"created_at":"2024-02-01T10:00:00","updated_at":"2024-02-02T10:00:00"}]}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// --- Tests ---

func TestApp_DryRunSeedsEveryStage(t *testing.T) {
	dir := t.TempDir()
	srv := newImageServer(t)
	writeData(t, dir, srv.URL+"/tee.png")
	events := &captureWriter{}

	a := newTestApp(t, testConfig(dir), WithEventWriter(events))
	require.NoError(t, a.Run(context.Background(), StageAll))

	store := a.Store()
	require.NotNil(t, store)
	_, ok := store.Product(1)
	assert.True(t, ok)
	assert.Len(t, store.Attachments(), 1)
	_, ok = store.Order(10)
	assert.True(t, ok)
	assert.NotEmpty(t, store.StateChangesFor(domain.MachineOrder, 10))

	published := events.stages(t)
	require.Len(t, published, 3)
	for _, stage := range Stages {
		assert.True(t, published[stage].Succeeded, stage)
		assert.True(t, published[stage].DryRun, stage)
	}
	assert.Equal(t, int64(1), published["products"].Counts["product"].Inserted)
	assert.Equal(t, int64(1), published["images"].Counts["image"].Inserted)
	assert.Equal(t, int64(1), published["orders"].Counts["order"].Inserted)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["seeder_entities_total"])
	assert.True(t, names["seeder_stage_duration_seconds"])
}

func TestApp_FailingStageStopsRun(t *testing.T) {
	events := &captureWriter{}
	a := newTestApp(t, testConfig(t.TempDir()), WithEventWriter(events))

	err := a.Run(context.Background(), StageAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage products")

	published := events.stages(t)
	require.Len(t, published, 1)
	assert.False(t, published["products"].Succeeded)
	assert.NotEmpty(t, published["products"].Error)
}

func TestApp_UnknownStage(t *testing.T) {
	a := newTestApp(t, testConfig(t.TempDir()))
	err := a.Run(context.Background(), "customers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown stage "customers"`)
}

func TestApp_RunLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dir := t.TempDir()
	writeData(t, dir, "http://127.0.0.1:1/unused.png")
	cfg := testConfig(dir)

	t.Run("released after the run", func(t *testing.T) {
		a := newTestApp(t, cfg, WithRedisClient(client))
		require.NoError(t, a.Run(context.Background(), "products"))
		assert.False(t, mr.Exists(a.lockKey()))
	})

	t.Run("held by another run", func(t *testing.T) {
		a := newTestApp(t, cfg, WithRedisClient(client))
		require.NoError(t, mr.Set(a.lockKey(), "other-run"))
		t.Cleanup(func() { mr.Del(a.lockKey()) })

		err := a.Run(context.Background(), "products")
		require.ErrorIs(t, err, runlock.ErrHeld)
		_, ok := a.Store().Product(1)
		assert.False(t, ok)
	})
}

func TestExpandStages(t *testing.T) {
	assert.Equal(t, []string{"products", "images", "orders"}, expandStages([]string{"all"}))
	assert.Equal(t, []string{"orders", "products"}, expandStages([]string{"orders", "products"}))
}
