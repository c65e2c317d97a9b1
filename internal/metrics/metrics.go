// 包 metrics：SafeRoute 引擎的 Prometheus 指标，覆盖摄取、聚合、评分与缓存四个维度
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_ingest_events_total",
		Help: "Total crime events accepted by upsert_events, by outcome",
	}, []string{"outcome"})
	IngestBatchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_ingest_batch_duration_ms",
		Help:    "Duration of a single crime-feed fetch+upsert batch in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	IngestRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saferoute_ingest_retries_total",
		Help: "Total capped exponential-backoff retries against the crime feed",
	})

	AggregationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_aggregation_runs_total",
		Help: "Total Rebuild/IngestMonth invocations, by outcome (ok, busy, error)",
	}, []string{"outcome"})
	AggregationDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_aggregation_duration_ms",
		Help:    "Duration of one successful Rebuild/IngestMonth run in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
	})
	GridVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "saferoute_grid_version",
		Help: "Current monotonic grid version, bumped by every successful aggregation",
	})

	SnapshotRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saferoute_snapshot_requests_total",
		Help: "Total GET /safety/snapshot requests served",
	})
	SnapshotDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_snapshot_duration_ms",
		Help:    "Snapshot query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})

	RouteScoreRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saferoute_route_score_requests_total",
		Help: "Total POST /routes/safe requests served",
	})
	RouteScoreCandidatesTotal = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_route_score_candidates",
		Help:    "Number of candidate routes scored per request",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})
	RouteScoreDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_route_score_duration_ms",
		Help:    "Route scoring duration in milliseconds, one batch per request",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	RouteScoreTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saferoute_route_score_timeouts_total",
		Help: "Total route-scoring batches aborted by the deadline",
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_cache_hits_total",
		Help: "Read-through cache hits, by operation",
	}, []string{"op"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_cache_misses_total",
		Help: "Read-through cache misses, by operation",
	}, []string{"op"})
	CacheStaleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_cache_stale_total",
		Help: "Cache entries discarded because their fingerprinted version was behind grid_versions",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(IngestEventsTotal)
	prometheus.MustRegister(IngestBatchDurationMs)
	prometheus.MustRegister(IngestRetriesTotal)
	prometheus.MustRegister(AggregationRunsTotal)
	prometheus.MustRegister(AggregationDurationMs)
	prometheus.MustRegister(GridVersion)
	prometheus.MustRegister(SnapshotRequestsTotal)
	prometheus.MustRegister(SnapshotDurationMs)
	prometheus.MustRegister(RouteScoreRequestsTotal)
	prometheus.MustRegister(RouteScoreCandidatesTotal)
	prometheus.MustRegister(RouteScoreDurationMs)
	prometheus.MustRegister(RouteScoreTimeoutsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheStaleTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
