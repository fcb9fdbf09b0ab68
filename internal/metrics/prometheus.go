package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "s3ai_query_duration_seconds",
			Help:    "Query resolution duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3ai_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	TierResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3ai_tier_resolved_total",
			Help: "Queries resolved per pipeline tier",
		},
		[]string{"source"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3ai_cache_hits_total",
			Help: "Total answer cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3ai_cache_misses_total",
			Help: "Total answer cache misses",
		},
	)

	VectorResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s3ai_vector_results_count",
			Help:    "Number of vector results kept per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3ai_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s3ai_chunks_indexed_total",
			Help: "Total document chunks indexed",
		},
	)

	MetadataRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s3ai_metadata_records",
			Help: "Records in the current metadata index snapshot",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(TierResolved)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(VectorResultsCount)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(MetadataRecords)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
