package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 50, 100}

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_queries_total",
		Help: "Total number of queries by kind (nearest, postcode)",
	}, []string{"kind"})
	QueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payphone_query_duration_ms",
		Help:    "Query duration in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"kind"})
	EmptyResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_empty_results_total",
		Help: "Total number of queries answered with no record",
	}, []string{"kind"})
	ResultCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payphone_result_cache_hits_total",
		Help: "Nearest results served from the result cache",
	})
	ResultCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payphone_result_cache_misses_total",
		Help: "Nearest results computed by the engine",
	})
	DataCacheReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_data_cache_reads_total",
		Help: "Dataset cache reads by outcome (hit, miss)",
	}, []string{"outcome"})
	DataCacheWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_data_cache_writes_total",
		Help: "Dataset cache writes by outcome (ok, error)",
	}, []string{"outcome"})
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_loads_total",
		Help: "Engine loads by outcome (cache_hit, fetched, error)",
	}, []string{"outcome"})
	Records = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payphone_records",
		Help: "Records in the serving engine",
	})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payphone_upstream_requests_total",
		Help: "Upstream list API requests by outcome (ok, fail)",
	}, []string{"outcome"})
	UpstreamDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payphone_upstream_duration_ms",
		Help:    "Upstream list API call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	})
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryDurationMs,
		EmptyResultsTotal,
		ResultCacheHitsTotal,
		ResultCacheMissesTotal,
		DataCacheReadsTotal,
		DataCacheWritesTotal,
		LoadsTotal,
		Records,
		UpstreamRequestsTotal,
		UpstreamDurationMs,
	)
}

// Handler：Prometheus 抓取端点
func Handler() http.Handler { return promhttp.Handler() }
