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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordUpload(sizeBytes int64)
	RecordUploadRejected(reason string)
	RecordRating(score int)
	RecordPointMovement(kind string, delta int)
	RecordInsufficientPoints(operation string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCleanup(job string, removed int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploads            prometheus.Counter
	uploadBytes        prometheus.Histogram
	uploadRejected     *prometheus.CounterVec
	ratings            *prometheus.CounterVec
	pointsMoved        *prometheus.CounterVec
	insufficientPoints *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	cleanupRemoved     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photorate_uploads_total",
			Help: "受理された写真アップロードの合計数",
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photorate_upload_size_bytes",
			Help:    "受理された写真のサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 8),
		}),
		uploadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_upload_rejected_total",
			Help: "拒否された写真アップロードの理由別合計数",
		}, []string{"reason"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_ratings_total",
			Help: "受理された評価のスコア別合計数",
		}, []string{"score"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_points_moved_total",
			Help: "種別ごとに増減したポイントの絶対値の合計",
		}, []string{"kind"}),
		insufficientPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_insufficient_points_total",
			Help: "残高不足で拒否された操作の合計数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photorate_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photorate_cleanup_removed_total",
			Help: "クリーンアップジョブが削除した件数",
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.uploads,
		c.uploadBytes,
		c.uploadRejected,
		c.ratings,
		c.pointsMoved,
		c.insufficientPoints,
		c.httpStatus,
		c.requestLatency,
		c.cleanupRemoved,
	)

	return c
}

// RecordUpload は受理されたアップロードを記録する。
func (c *Collector) RecordUpload(sizeBytes int64) {
	c.uploads.Inc()
	c.uploadBytes.Observe(float64(sizeBytes))
}

// RecordUploadRejected はアップロードの拒否を理由（エラーコード）付きで記録する。
func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadRejected.WithLabelValues(reason).Inc()
}

// RecordRating は受理された評価を記録する。
func (c *Collector) RecordRating(score int) {
	c.ratings.WithLabelValues(strconv.Itoa(score)).Inc()
}

// RecordPointMovement はポイントの増減を記録する。
func (c *Collector) RecordPointMovement(kind string, delta int) {
	if delta < 0 {
		delta = -delta
	}
	c.pointsMoved.WithLabelValues(kind).Add(float64(delta))
}

// RecordInsufficientPoints は残高不足による拒否を記録する。
func (c *Collector) RecordInsufficientPoints(operation string) {
	c.insufficientPoints.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCleanup はクリーンアップジョブの削除件数を記録する。
func (c *Collector) RecordCleanup(job string, removed int64) {
	c.cleanupRemoved.WithLabelValues(job).Add(float64(removed))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordUpload(int64) {}
func (NopCollector) RecordUploadRejected(string) {}
func (NopCollector) RecordRating(int) {}
func (NopCollector) RecordPointMovement(string, int) {}
func (NopCollector) RecordInsufficientPoints(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordCleanup(string, int64) {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
