package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds every Prometheus collector of the engine.
// A nil *Recorder is valid and records nothing.
// ⭐ SSOT: 메트릭 이름은 여기서만 정의
type Recorder struct {
	registry *prometheus.Registry

	scans          *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	layerFailures  *prometheus.CounterVec
	composite      prometheus.Histogram
	signalsCreated *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	openSignals    prometheus.Gauge
	feedTicks      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	externalErrors *prometheus.CounterVec
}

// New creates a recorder backed by its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_scans_total",
			Help: "Symbol scans by outcome (completed, skipped, failed)",
		}, []string{"symbol", "outcome"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_scan_duration_seconds",
			Help:    "Wall time of one full layer evaluation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		layerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_layer_failures_total",
			Help: "Evaluator errors, timeouts and panics replaced by a failed score",
		}, []string{"layer"}),
		composite: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_composite_score",
			Help:    "Distribution of composite confluence scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		signalsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_signals_created_total",
			Help: "Signals published",
		}, []string{"symbol", "quality"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_signal_transitions_total",
			Help: "Signal status transitions by target status",
		}, []string{"to"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_rejections_total",
			Help: "Generate requests that did not produce a signal",
		}, []string{"reason"}),
		openSignals: f.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_open_signals",
			Help: "Signals in a non-terminal status",
		}),
		feedTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_feed_ticks_total",
			Help: "Price ticks received by source",
		}, []string{"source"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_http_requests_total",
			Help: "HTTP requests by route template",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confluence_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		externalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_external_errors_total",
			Help: "Failures talking to external collaborators",
		}, []string{"service"}),
	}
}

// Registry exposes the underlying registry (tests, custom collectors)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ScanCompleted(symbol string, d time.Duration) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(symbol, "completed").Inc()
	r.scanDuration.Observe(d.Seconds())
}

func (r *Recorder) ScanSkipped(symbol string) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(symbol, "skipped").Inc()
}

func (r *Recorder) ScanFailed(symbol string) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(symbol, "failed").Inc()
}

func (r *Recorder) LayerFailed(layer string) {
	if r == nil {
		return
	}
	r.layerFailures.WithLabelValues(layer).Inc()
}

func (r *Recorder) CompositeScore(score int) {
	if r == nil {
		return
	}
	r.composite.Observe(float64(score))
}

func (r *Recorder) SignalCreated(symbol, quality string) {
	if r == nil {
		return
	}
	r.signalsCreated.WithLabelValues(symbol, quality).Inc()
	r.openSignals.Inc()
}

// SignalTransition counts a status change; terminal targets close an open signal
func (r *Recorder) SignalTransition(to string, terminal bool) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(to).Inc()
	if terminal {
		r.openSignals.Dec()
	}
}

// SetOpenSignals resets the open gauge (startup reconciliation)
func (r *Recorder) SetOpenSignals(n int) {
	if r == nil {
		return
	}
	r.openSignals.Set(float64(n))
}

func (r *Recorder) Rejection(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) FeedTick(source string) {
	if r == nil {
		return
	}
	r.feedTicks.WithLabelValues(source).Inc()
}

func (r *Recorder) ExternalError(service string) {
	if r == nil {
		return
	}
	r.externalErrors.WithLabelValues(service).Inc()
}

func (r *Recorder) HTTPRequest(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
