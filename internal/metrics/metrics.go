// Package metrics exports dialogue activity as Prometheus collectors fed from
// lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Metrics holds the collectors of one process.
type Metrics struct {
	started     prometheus.Counter
	closed      prometheus.Counter
	failures    prometheus.Counter
	active      prometheus.Gauge
	nodeVisits  *prometheus.CounterVec
	uiChanges   *prometheus.CounterVec
	rowDuration prometheus.Histogram
	voices      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogues_started_total",
			Help:      "Total number of dialogue sessions started",
		}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogues_closed_total",
			Help:      "Total number of dialogue sessions closed",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_failures_total",
			Help:      "Total number of dialogue failure signals",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dialogues_active",
			Help:      "Number of dialogue sessions currently running",
		}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"node_id"}),
		uiChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ui_changes_total",
			Help:      "Total number of dialogue UI surface changes",
		}, []string{"change"}),
		rowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Computed playback duration of started rows",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		}),
		voices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_cues_total",
			Help:      "Total number of voice cues by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{
		m.started, m.closed, m.failures, m.active,
		m.nodeVisits, m.uiChanges, m.rowDuration, m.voices,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDialogueStarted: func(context.Context, *domain.Event) {
			m.started.Inc()
			m.active.Inc()
		},
		OnDialogueClosed: func(context.Context, *domain.Event) {
			m.closed.Inc()
			m.active.Dec()
		},
		OnDialogueFailed: func(context.Context, *domain.Event) {
			m.failures.Inc()
		},
		OnNodeStarted: func(_ context.Context, e *domain.Event) {
			m.nodeVisits.WithLabelValues(e.Node.String()).Inc()
		},
		OnRowStarted: func(_ context.Context, e *domain.Event) {
			m.rowDuration.Observe(e.Duration.Seconds())
		},
		OnVoiceStarted: func(context.Context, *domain.Event) {
			m.voices.WithLabelValues("played").Inc()
		},
		OnVoiceSkipped: func(context.Context, *domain.Event) {
			m.voices.WithLabelValues("skipped").Inc()
		},
		OnUserInterfaceChanged: func(_ context.Context, e *domain.Event) {
			change := e.Message
			if change == "" {
				change = "unknown"
			}
			m.uiChanges.WithLabelValues(change).Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
