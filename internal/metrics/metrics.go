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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordFeedRebuild(duration time.Duration)
	RecordLikeToggleRetry()
	RecordAssetUpload(success bool)
	RecordAssetDelete(success bool)
	RecordHTTPStatus(statusCode int)
	RecordReconciledCounters(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedRebuilds       prometheus.Counter
	feedRebuildLatency prometheus.Histogram
	likeToggleRetries  prometheus.Counter
	assetUploads       *prometheus.CounterVec
	assetDeletes       *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	reconciledCounters prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reels_feed_rebuild_total",
			Help: "フィード再計算の合計数",
		}),
		feedRebuildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reels_feed_rebuild_latency_seconds",
			Help:    "フィード再計算のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		likeToggleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reels_like_toggle_retry_total",
			Help: "いいねトランザクションの競合リトライ回数",
		}),
		assetUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_asset_upload_total",
			Help: "アセットストアへのファイルアップロード数",
		}, []string{"result"}),
		assetDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_asset_delete_total",
			Help: "アセットストアからのファイル削除数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		reconciledCounters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reels_reconciled_counters_total",
			Help: "整合ワーカーが修正した集計カウンタの行数",
		}),
	}

	reg.MustRegister(
		c.feedRebuilds,
		c.feedRebuildLatency,
		c.likeToggleRetries,
		c.assetUploads,
		c.assetDeletes,
		c.httpStatus,
		c.reconciledCounters,
	)

	return c
}

// RecordFeedRebuild はフィード再計算の実行とレイテンシを記録する。
func (c *Collector) RecordFeedRebuild(duration time.Duration) {
	c.feedRebuilds.Inc()
	c.feedRebuildLatency.Observe(duration.Seconds())
}

// RecordLikeToggleRetry はいいねトランザクションの競合リトライを記録する。
func (c *Collector) RecordLikeToggleRetry() {
	c.likeToggleRetries.Inc()
}

// RecordAssetUpload はアセットアップロードの結果を記録する。
func (c *Collector) RecordAssetUpload(success bool) {
	c.assetUploads.WithLabelValues(resultLabel(success)).Inc()
}

// RecordAssetDelete はアセット削除の結果を記録する。
func (c *Collector) RecordAssetDelete(success bool) {
	c.assetDeletes.WithLabelValues(resultLabel(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordReconciledCounters は整合ワーカーが修正した行数を記録する。
func (c *Collector) RecordReconciledCounters(count int64) {
	c.reconciledCounters.Add(float64(count))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
