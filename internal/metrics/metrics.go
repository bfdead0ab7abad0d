// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイと認証ハンドラーから利用する。
type MetricsCollector interface {
	RecordUpstreamCall(operation string, statusCode int, duration time.Duration)
	RecordUpstreamRateLimited(operation string)
	RecordLogin(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests    *prometheus.CounterVec
	upstreamLatency     *prometheus.HistogramVec
	upstreamRateLimited *prometheus.CounterVec
	logins              *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetbox_upstream_requests_total",
			Help: "操作・ステータスコード別のプラットフォームAPI呼び出し数",
		}, []string{"operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tweetbox_upstream_latency_seconds",
			Help:    "プラットフォームAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		upstreamRateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetbox_upstream_rate_limited_total",
			Help: "プラットフォームからスロットリングされた回数",
		}, []string{"operation"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetbox_auth_logins_total",
			Help: "結果別のOAuthログイン数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.upstreamRateLimited,
		c.logins,
	)

	return c
}

// RecordUpstreamCall はプラットフォームAPI呼び出しの結果とレイテンシを記録する。
// 通信失敗はステータスコード0として記録する。
func (c *Collector) RecordUpstreamCall(operation string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpstreamRateLimited はスロットリングを記録する。
func (c *Collector) RecordUpstreamRateLimited(operation string) {
	c.upstreamRateLimited.WithLabelValues(operation).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
