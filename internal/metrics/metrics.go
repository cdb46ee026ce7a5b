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
// ミドルウェア、サービス層、ジョブから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordReminderSent()
	RecordReminderFailed()
	RecordJobRun(job string, err error, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cacheResults    *prometheus.CounterVec
	remindersSent   prometheus.Counter
	remindersFailed prometheus.Counter
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_http_requests_total",
			Help: "HTTPリクエスト数（メソッド、ルート、ステータス別）",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoapi_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_todo_cache_total",
			Help: "Todo一覧キャッシュのヒット・ミス数",
		}, []string{"result"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_reminders_sent_total",
			Help: "送信に成功したリマインダーメール数",
		}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_reminders_failed_total",
			Help: "送信に失敗したリマインダーメール数",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_job_runs_total",
			Help: "定期ジョブの実行数（ジョブ、結果別）",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoapi_job_duration_seconds",
			Help:    "定期ジョブの実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.cacheResults,
		c.remindersSent,
		c.remindersFailed,
		c.jobRuns,
		c.jobDuration,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果を記録する。routeはchiのルートパターン。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit() {
	c.cacheResults.WithLabelValues("hit").Inc()
}

func (c *Collector) RecordCacheMiss() {
	c.cacheResults.WithLabelValues("miss").Inc()
}

func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

func (c *Collector) RecordReminderFailed() {
	c.remindersFailed.Inc()
}

// RecordJobRun はジョブ1回分の結果と所要時間を記録する。
func (c *Collector) RecordJobRun(job string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
	c.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
