// Package metrics turns reasoning events into prometheus metrics.
package metrics

import (
	"sync"

	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ponder"

// Collector is an events.EventSink that counts runs, steps and routing decisions.
type Collector struct {
	RunsStarted prometheus.Counter
	RunsTotal   *prometheus.CounterVec
	StepsTotal  *prometheus.CounterVec
	Decisions   *prometheus.CounterVec
	StepsPerRun prometheus.Histogram
	ActiveRuns  prometheus.Gauge

	mu    sync.Mutex
	steps map[string]int
}

var _ events.EventSink = (*Collector)(nil)

// NewCollector registers its metrics with reg. Pass prometheus.DefaultRegisterer to expose
// them on the default /metrics handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		RunsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total reasoning runs started",
		}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total reasoning runs finished, by outcome",
		}, []string{"outcome"}),
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_steps_total",
			Help:      "Total parsed reasoning steps, by schema variant",
		}, []string{"variant"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Routing decisions, by declared and effective action",
		}, []string{"declared", "decision"}),
		StepsPerRun: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "steps_per_run",
			Help:      "Reasoning steps taken by finished runs",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Reasoning runs in progress",
		}),
		steps: map[string]int{},
	}
}

func (c *Collector) PublishEvent(event events.Event) error {
	runID := event.Metadata().RunID

	switch e := event.(type) {
	case *events.EventRunStarted:
		c.RunsStarted.Inc()
		c.ActiveRuns.Inc()
		c.mu.Lock()
		c.steps[runID] = 0
		c.mu.Unlock()

	case *events.EventReasoningStep:
		c.StepsTotal.WithLabelValues(e.Metadata().Variant).Inc()
		declared := e.DeclaredAction
		if declared == "" {
			declared = "none"
		}
		c.Decisions.WithLabelValues(declared, e.Decision).Inc()
		c.mu.Lock()
		c.steps[runID]++
		c.mu.Unlock()

	case *events.EventFinal:
		c.finish(runID, "success")

	case *events.EventError:
		c.finish(runID, "error")
	}

	return nil
}

func (c *Collector) finish(runID string, outcome string) {
	c.mu.Lock()
	n, ok := c.steps[runID]
	delete(c.steps, runID)
	c.mu.Unlock()

	c.RunsTotal.WithLabelValues(outcome).Inc()
	if ok {
		c.ActiveRuns.Dec()
		c.StepsPerRun.Observe(float64(n))
	}
}
