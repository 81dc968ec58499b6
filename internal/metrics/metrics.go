// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/clanhub/internal/gate"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやハンドラーから利用する。
type MetricsCollector interface {
	RecordGateTransition(from, to gate.Phase)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordHeroRegistration()
	StreamOpened()
	StreamClosed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateTransitions   *prometheus.CounterVec
	gateRedirects     prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	heroRegistrations prometheus.Counter
	activeStreams     prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clanhub_gate_transitions_total",
			Help: "認証ゲートのフェーズ遷移数",
		}, []string{"from", "to"}),
		gateRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clanhub_gate_redirects_total",
			Help: "未認証によるログイン画面へのリダイレクト数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clanhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clanhub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		heroRegistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clanhub_hero_registrations_total",
			Help: "ヒーロープロフィールの登録数",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clanhub_session_streams_active",
			Help: "接続中のセッション状態ストリーム数",
		}),
	}

	reg.MustRegister(
		c.gateTransitions,
		c.gateRedirects,
		c.httpStatus,
		c.requestLatency,
		c.heroRegistrations,
		c.activeStreams,
	)

	return c
}

// RecordGateTransition はゲートのフェーズ遷移を記録する。
// Deniedへの遷移はリダイレクトとしても数える。
func (c *Collector) RecordGateTransition(from, to gate.Phase) {
	c.gateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	if to == gate.Denied {
		c.gateRedirects.Inc()
	}
}

// GateObserver はゲートに渡すObserverを返す。
func (c *Collector) GateObserver() gate.Observer {
	return c.RecordGateTransition
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordHeroRegistration はプロフィール登録を記録する。
func (c *Collector) RecordHeroRegistration() {
	c.heroRegistrations.Inc()
}

// StreamOpened はストリーム接続の開始を記録する。
func (c *Collector) StreamOpened() {
	c.activeStreams.Inc()
}

// StreamClosed はストリーム接続の終了を記録する。
func (c *Collector) StreamClosed() {
	c.activeStreams.Dec()
}

// NewHTTPMiddleware はレスポンスのステータスと処理時間を記録するミドルウェアを返す。
func NewHTTPMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPStatus(rec.status)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Flush はSSEのために下位のFlusherへ委譲する。
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap はhttp.ResponseControllerのために元のWriterを返す。
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
