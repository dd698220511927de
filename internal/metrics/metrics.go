// Package metrics exposes seeding progress as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
)

// Recorder counts seeded entities and times stages. It satisfies
// service.Observer.
type Recorder struct {
	entities *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seeder_entities_total",
				Help: "Seeded entities by stage, entity and outcome",
			},
			[]string{"stage", "entity", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seeder_stage_duration_seconds",
				Help:    "Wall time of a seeding stage",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"stage", "result"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seeder_stage_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run of a stage",
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(r.entities, r.duration, r.lastRun)
	return r
}

// Observe counts one entity outcome.
func (r *Recorder) Observe(stage, entity string, outcome domain.Outcome) {
	r.entities.WithLabelValues(stage, entity, outcome.String()).Inc()
}

// StageDone records how long a stage ran and whether it succeeded.
func (r *Recorder) StageDone(stage string, started time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.duration.WithLabelValues(stage, result).Observe(time.Since(started).Seconds())
	if err == nil {
		r.lastRun.WithLabelValues(stage).SetToCurrentTime()
	}
}
