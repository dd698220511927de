package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func TestWriter_RecordsSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	w, mock := newTestWriter(t)

	mock.ExpectExec("INSERT INTO spree_assets").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO spree_assets").WillReturnError(errors.New("boom"))

	_, err := w.Execute(context.Background(), "INSERT INTO spree_assets (alt) VALUES ($1)", "alt")
	require.NoError(t, err)
	_, err = w.Execute(context.Background(), "INSERT INTO spree_assets (alt) VALUES ($1)", "alt")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "db.insert", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestWriter_SlowQueryLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	w, mock := newTestWriter(t, WithSlowQueryLog(time.Nanosecond, logger))

	mock.ExpectExec("UPDATE spree_shipments").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)).
		WillDelayFor(2 * time.Millisecond)

	_, err := w.Execute(context.Background(), "UPDATE spree_shipments SET state = $1 WHERE id = $2", "canceled", int64(1))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "operation=update")
}

func TestWriter_NoSlowQueryLogWithoutThreshold(t *testing.T) {
	var buf bytes.Buffer
	w, mock := newTestWriter(t)
	w.logger = slog.New(slog.NewTextHandler(&buf, nil))

	mock.ExpectExec("UPDATE spree_orders").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := w.Execute(context.Background(), "UPDATE spree_orders SET state = $1", "cart")
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
