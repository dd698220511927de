// Package event publishes seeding stage summaries to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	pkgkafka "github.com/george-bobby/app-opencats-sub001/pkg/kafka"
)

// EventStageCompleted is the event type of a finished stage.
const EventStageCompleted = "seed.stage.completed"

// SourceSeeder identifies events published by the seeder.
const SourceSeeder = "spree-seeder"

// StageCompletedData is the payload for a seed.stage.completed event.
type StageCompletedData struct {
	Stage      string                   `json:"stage"`
	Succeeded  bool                     `json:"succeeded"`
	Error      string                   `json:"error,omitempty"`
	DurationMS int64                    `json:"duration_ms"`
	DryRun     bool                     `json:"dry_run"`
	Counts     map[string]domain.Counts `json:"counts,omitempty"`
}

// Producer publishes seeding events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	topic  string
	logger *slog.Logger
}

// NewProducer creates an event producer writing to topic.
func NewProducer(kafka *pkgkafka.Producer, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		topic:  topic,
		logger: logger,
	}
}

// PublishStageCompleted publishes a seed.stage.completed event for one stage
// of the run identified by runID.
func (p *Producer) PublishStageCompleted(ctx context.Context, runID string, data StageCompletedData) error {
	event, err := pkgkafka.NewEvent(EventStageCompleted, SourceSeeder, data)
	if err != nil {
		return fmt.Errorf("create seed.stage.completed event: %w", err)
	}
	event.WithRunID(runID).WithStage(data.Stage).WithDryRun(data.DryRun)

	if err := p.kafka.Publish(ctx, p.topic, event); err != nil {
		return fmt.Errorf("publish seed.stage.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published seed.stage.completed event",
		slog.String("stage", data.Stage),
		slog.Bool("succeeded", data.Succeeded),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.kafka.Close()
}

// NewStageCompleted builds the payload for a stage that started at started
// and ended with err.
func NewStageCompleted(stage string, started time.Time, err error, dryRun bool, counts map[string]domain.Counts) StageCompletedData {
	d := StageCompletedData{
		Stage:      stage,
		Succeeded:  err == nil,
		DurationMS: time.Since(started).Milliseconds(),
		DryRun:     dryRun,
		Counts:     counts,
	}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}
