package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	queries      *prometheus.CounterVec
	queryLatency prometheus.Histogram
	rebuilds     *prometheus.CounterVec
	observations prometheus.Gauge
	contexts     prometheus.Gauge
	weightCodes  prometheus.Gauge
	cacheHits    *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		queries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxweights_queries_total",
				Help: "Total number of weight queries by outcome",
			},
			[]string{"outcome"},
		),
		queryLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ctxweights_query_duration_seconds",
				Help:    "Duration of weight query evaluation in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		rebuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxweights_snapshot_rebuilds_total",
				Help: "Total number of snapshot rebuilds by status",
			},
			[]string{"status"},
		),
		observations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ctxweights_snapshot_observations",
				Help: "Observations held by the published snapshot",
			},
		),
		contexts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ctxweights_snapshot_contexts",
				Help: "Distinct contexts held by the published snapshot",
			},
		),
		weightCodes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ctxweights_snapshot_weight_codes",
				Help: "Registered weight codes in the published snapshot",
			},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxweights_response_cache_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordQuery records one query by outcome (ok, invalid, error).
func (r *Recorder) RecordQuery(outcome string) {
	r.queries.WithLabelValues(outcome).Inc()
}

// RecordQueryLatency records query evaluation latency in seconds.
func (r *Recorder) RecordQueryLatency(seconds float64) {
	r.queryLatency.Observe(seconds)
}

// RecordRebuild records one snapshot rebuild by status (ok, failed).
func (r *Recorder) RecordRebuild(status string) {
	r.rebuilds.WithLabelValues(status).Inc()
}

// RecordSnapshotStats publishes the size gauges of the current snapshot.
func (r *Recorder) RecordSnapshotStats(observations, contexts, codes int) {
	r.observations.Set(float64(observations))
	r.contexts.Set(float64(contexts))
	r.weightCodes.Set(float64(codes))
}

// RecordCacheHit records one response cache lookup.
func (r *Recorder) RecordCacheHit(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheHits.WithLabelValues(result).Inc()
}
