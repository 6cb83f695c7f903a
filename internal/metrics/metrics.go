// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 取り込みワーカーとフィルタエンジンのハンドラから利用する。
type MetricsCollector interface {
	RecordIngestSuccess(feedID string)
	RecordIngestFailure(feedID string, reason string)
	RecordParseFailure(feedID string)
	RecordIngestHTTPStatus(statusCode int)
	RecordIngestLatency(duration time.Duration)
	RecordListingsUpserted(count int)
	RecordFilterRequest(tier string)
	RecordLockedListings(count int)
	RecordFilterLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestSuccess    prometheus.Counter
	ingestFail       prometheus.Counter
	parseFail        prometheus.Counter
	ingestHTTPStatus *prometheus.CounterVec
	ingestLatency    prometheus.Histogram
	listingsUpserted prometheus.Counter
	filterRequests   *prometheus.CounterVec
	lockedListings   prometheus.Counter
	filterLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyberhub_ingest_success_total",
			Help: "パートナーフィード取り込み成功の合計数",
		}),
		ingestFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyberhub_ingest_fail_total",
			Help: "パートナーフィード取り込み失敗の合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyberhub_parse_fail_total",
			Help: "パートナーフィードパース失敗の合計数",
		}),
		ingestHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberhub_ingest_http_status_total",
			Help: "取り込みフェッチのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyberhub_ingest_latency_seconds",
			Help:    "パートナーフィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		listingsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyberhub_listings_upserted_total",
			Help: "アップサートされた案件の合計数",
		}),
		filterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberhub_filter_requests_total",
			Help: "アクセス階層別のフィルタリクエスト数",
		}, []string{"tier"}),
		lockedListings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cyberhub_locked_listings_total",
			Help: "アクセス階層ゲートで非表示となった案件の延べ数",
		}),
		filterLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyberhub_filter_latency_seconds",
			Help:    "フィルタパイプラインのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.ingestSuccess,
		c.ingestFail,
		c.parseFail,
		c.ingestHTTPStatus,
		c.ingestLatency,
		c.listingsUpserted,
		c.filterRequests,
		c.lockedListings,
		c.filterLatency,
	)

	return c
}

// RecordIngestSuccess は取り込み成功を記録する。
func (c *Collector) RecordIngestSuccess(feedID string) {
	c.ingestSuccess.Inc()
}

// RecordIngestFailure は取り込み失敗を記録する。
func (c *Collector) RecordIngestFailure(feedID string, reason string) {
	c.ingestFail.Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(feedID string) {
	c.parseFail.Inc()
}

// RecordIngestHTTPStatus は取り込みフェッチのHTTPステータスコードを記録する。
func (c *Collector) RecordIngestHTTPStatus(statusCode int) {
	c.ingestHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordIngestLatency は取り込みのレイテンシを記録する。
func (c *Collector) RecordIngestLatency(duration time.Duration) {
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordListingsUpserted はアップサートされた案件数を記録する。
func (c *Collector) RecordListingsUpserted(count int) {
	c.listingsUpserted.Add(float64(count))
}

// RecordFilterRequest はアクセス階層別のフィルタリクエストを記録する。
func (c *Collector) RecordFilterRequest(tier string) {
	c.filterRequests.WithLabelValues(tier).Inc()
}

// RecordLockedListings はゲートで非表示となった案件数を記録する。
func (c *Collector) RecordLockedListings(count int) {
	c.lockedListings.Add(float64(count))
}

// RecordFilterLatency はフィルタパイプラインのレイテンシを記録する。
func (c *Collector) RecordFilterLatency(duration time.Duration) {
	c.filterLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
