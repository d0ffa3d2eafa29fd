// Package metrics defines the Prometheus collectors for generation calls,
// per-product outcomes and batches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	generations     *prometheus.CounterVec
	generationTime  *prometheus.HistogramVec
	promptTokens    prometheus.Histogram
	productOutcomes *prometheus.CounterVec
	batches         *prometheus.CounterVec
	batchItems      prometheus.Histogram
	gatherer        prometheus.Gatherer
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "copyforge_generation_requests_total",
			Help: "Provider generation attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		generationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "copyforge_generation_duration_seconds",
			Help:    "Latency of provider generation attempts.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		promptTokens: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "copyforge_prompt_tokens",
			Help:    "Estimated prompt size in tokens.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 9),
		}),
		productOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "copyforge_product_operations_total",
			Help: "Single-product optimize and deploy operations by outcome.",
		}, []string{"operation", "outcome"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "copyforge_batches_total",
			Help: "Completed batches by kind and composite status.",
		}, []string{"kind", "status"}),
		batchItems: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "copyforge_batch_items",
			Help:    "Number of products per batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		gatherer: reg,
	}
}

// ObserveGeneration records one provider attempt.
func (m *Metrics) ObserveGeneration(provider, outcome string, elapsed time.Duration, promptTokens int) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(provider, outcome).Inc()
	m.generationTime.WithLabelValues(provider).Observe(elapsed.Seconds())
	if promptTokens > 0 {
		m.promptTokens.Observe(float64(promptTokens))
	}
}

// ObserveProduct records a single-product optimize or deploy outcome.
func (m *Metrics) ObserveProduct(operation, outcome string) {
	if m == nil {
		return
	}
	m.productOutcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveBatch records a completed batch.
func (m *Metrics) ObserveBatch(kind, status string, total int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(kind, status).Inc()
	m.batchItems.Observe(float64(total))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
