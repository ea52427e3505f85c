package metrics

import "github.com/prometheus/client_golang/prometheus"

// Experiment Prometheus metrics: scrape, ranking and weight tuning.
var (
	ScrapedDatasetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraped_datasets_total",
			Help:      "Registry datasets seen by the scraper",
		},
		[]string{"result"}, // "processed" / "skipped" / "failed"
	)

	RegistryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_request_duration_seconds",
			Help:      "Dataset registry request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)

	EmbeddedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedded_records_total",
			Help:      "Records with all six vectors computed",
		},
	)

	RankingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "Duration of a full query x document ranking pass",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	TuningEvaluationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuning_evaluations_total",
			Help:      "Accuracy evaluations performed by the weight optimizer",
		},
	)

	TuningAccuracy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tuning_accuracy",
			Help:      "Best top-k self-retrieval accuracy found so far",
		},
	)

	TuningWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tuning_weight",
			Help:      "Current best field weight",
		},
		[]string{"field"},
	)
)

var expMetricsRegistered bool

// RegisterExperimentMetrics registers scrape, ranking and tuning metrics. Must be called once from main.
func RegisterExperimentMetrics() {
	if expMetricsRegistered {
		return
	}
	prometheus.MustRegister(ScrapedDatasetsTotal)
	prometheus.MustRegister(RegistryRequestDuration)
	prometheus.MustRegister(EmbeddedRecordsTotal)
	prometheus.MustRegister(RankingDuration)
	prometheus.MustRegister(TuningEvaluationsTotal)
	prometheus.MustRegister(TuningAccuracy)
	prometheus.MustRegister(TuningWeight)
	expMetricsRegistered = true
}
