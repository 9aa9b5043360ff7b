package metrics

import "github.com/prometheus/client_golang/prometheus"

// GenerationMetrics exposes counters/histograms for the query generation flow.
type GenerationMetrics struct {
	generationTotal   *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	extractedQueries  *prometheus.CounterVec
}

func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	m := &GenerationMetrics{
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querygen",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total generation calls by platform and outcome",
		}, []string{"platform", "status"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "querygen",
			Subsystem: "generation",
			Name:      "latency_seconds",
			Help:      "Latency of generation calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
		extractedQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querygen",
			Subsystem: "extraction",
			Name:      "queries_total",
			Help:      "Total queries extracted from assistant turns",
		}, []string{"platform"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.generationTotal, m.generationLatency, m.extractedQueries)
	return m
}

func (m *GenerationMetrics) ObserveGeneration(platform, status string, seconds float64) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(platform, status).Inc()
	m.generationLatency.WithLabelValues(platform).Observe(seconds)
}

func (m *GenerationMetrics) ObserveExtractedQueries(platform string, count int) {
	if m == nil {
		return
	}
	m.extractedQueries.WithLabelValues(platform).Add(float64(count))
}
