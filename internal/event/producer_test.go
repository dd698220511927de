package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	pkgkafka "github.com/george-bobby/app-opencats-sub001/pkg/kafka"
)

// --- Test Helpers ---

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestProducer(w *fakeWriter) *Producer {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewProducer(pkgkafka.NewProducerWithWriter(w, logger), "seeder.events", logger)
}

// --- Tests ---

func TestPublishStageCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	data := NewStageCompleted("orders", time.Now().Add(-time.Second), nil, true,
		map[string]domain.Counts{"order": {Inserted: 4, Existing: 1}})
	require.NoError(t, p.PublishStageCompleted(context.Background(), "run-7", data))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "seeder.events", msg.Topic)
	assert.Equal(t, "run-7", string(msg.Key))

	var env pkgkafka.Event
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventStageCompleted, env.EventType)
	assert.Equal(t, SourceSeeder, env.Source)
	assert.Equal(t, "run-7", env.RunID)
	assert.Equal(t, "orders", env.Stage)
	assert.True(t, env.DryRun)

	var got StageCompletedData
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Succeeded)
	assert.Empty(t, got.Error)
	assert.GreaterOrEqual(t, got.DurationMS, int64(1000))
	assert.Equal(t, int64(4), got.Counts["order"].Inserted)
}

func TestPublishStageCompleted_CarriesFailure(t *testing.T) {
	data := NewStageCompleted("products", time.Now(), errors.New("no stock location"), false, nil)
	assert.False(t, data.Succeeded)
	assert.Equal(t, "no stock location", data.Error)
}

func TestPublishStageCompleted_WriterError(t *testing.T) {
	p := newTestProducer(&fakeWriter{err: errors.New("broker down")})

	err := p.PublishStageCompleted(context.Background(), "run-1", StageCompletedData{Stage: "images"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish seed.stage.completed event")
}
