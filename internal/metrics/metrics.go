// Package metrics exposes probe outcomes to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/tileprobe/internal/probe"
)

const namespace = "tileprobe"

type Metrics struct {
	Probes   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the probe collectors on reg. A nil reg gets a private
// registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Readiness probes run, by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of a readiness probe including evidence capture.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probes_in_flight",
			Help:      "Probes currently holding a browser.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Probes, m.Duration, m.InFlight)
	return m
}

// Observe records one finished probe.
func (m *Metrics) Observe(res probe.Result) {
	outcome := "success"
	stage := ""
	if !res.Success {
		outcome = "failure"
		if probe.IsTimeout(res.Err) {
			outcome = "timeout"
		}
		stage = string(probe.StageOf(res.Err))
	}
	m.Probes.WithLabelValues(outcome, stage).Inc()
	m.Duration.WithLabelValues(outcome).Observe(res.Elapsed.Seconds())
}

// Instrument wraps p so every probe is counted and timed.
func (m *Metrics) Instrument(p probe.Prober) probe.Prober {
	return probe.ProberFunc(func(ctx context.Context, t probe.Target) probe.Result {
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		res := p.Probe(ctx, t)
		m.Observe(res)
		return res
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
