package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fetch instrumentation.
type Metrics struct {
	blocks       prometheus.Counter
	records      prometheus.Counter
	storageReads *prometheus.CounterVec
	blockSeconds prometheus.Histogram
}

// NewMetrics registers the fetch metrics on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		blocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pool_price_fetcher_blocks_total",
			Help: "The total number of blocks priced",
		}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Name: "pool_price_fetcher_records_total",
			Help: "The total number of price records produced",
		}),
		storageReads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_price_fetcher_storage_reads_total",
			Help: "Historical storage reads by result",
		}, []string{"result"}),
		blockSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_price_fetcher_block_seconds",
			Help:    "Time spent pricing all sources of one block",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}
