// Package metrics holds the Prometheus instruments of the scanner.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BreakoutScanner/internal/model"
)

// Registry holds all scanner metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter

	Units         *prometheus.CounterVec
	ActiveScans   prometheus.Gauge
	TotalScans    prometheus.Counter
	BatchDuration prometheus.Histogram
}

// NewRegistry creates and registers the scanner metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "breakout_fetch_duration_seconds",
				Help:    "Duration of market data fetches by provider",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_fetch_errors_total",
				Help: "Total number of failed market data fetches by provider",
			},
			[]string{"provider"},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "breakout_cache_hits_total",
				Help: "Total number of batch cache hits",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "breakout_cache_misses_total",
				Help: "Total number of batch cache misses",
			},
		),

		Units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_units_total",
				Help: "Completed work units by terminal stage and error kind",
			},
			[]string{"stage", "kind"},
		),

		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "breakout_active_scans",
				Help: "Number of currently running scans",
			},
		),

		TotalScans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "breakout_scans_total",
				Help: "Total number of scans started",
			},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "breakout_batch_duration_seconds",
				Help:    "Wall time of complete scan batches",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
	}

	r.reg.MustRegister(
		r.FetchDuration, r.FetchErrors, r.CacheHits, r.CacheMisses,
		r.Units, r.ActiveScans, r.TotalScans, r.BatchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveFetch records one provider call.
func (r *Registry) ObserveFetch(provider string, elapsed time.Duration, err error) {
	r.FetchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		r.FetchErrors.WithLabelValues(provider).Inc()
	}
}

func (r *Registry) CacheHit()  { r.CacheHits.Inc() }
func (r *Registry) CacheMiss() { r.CacheMisses.Inc() }

func (r *Registry) ScanStarted() {
	r.TotalScans.Inc()
	r.ActiveScans.Inc()
}

// UnitCompleted counts a unit by the stage it ended in; kind is empty for successes.
func (r *Registry) UnitCompleted(stage model.UnitState, kind model.ErrorKind) {
	k := string(kind)
	if k == "" {
		k = "none"
	}
	r.Units.WithLabelValues(string(stage), k).Inc()
}

func (r *Registry) ScanFinished(elapsed time.Duration) {
	r.ActiveScans.Dec()
	r.BatchDuration.Observe(elapsed.Seconds())
}
