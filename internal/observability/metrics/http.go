package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal       *prometheus.CounterVec
	searchRequests     *prometheus.CounterVec
	searchHits         *prometheus.HistogramVec
	searchNoHitsTotal  *prometheus.CounterVec
	searchDuration     *prometheus.HistogramVec
	extractionRunTotal *prometheus.CounterVec
	deletedAssetsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total accepted uploads by asset kind.",
		},
		[]string{"service", "kind"},
	)
	searchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests with a non-empty query.",
		},
		[]string{"service"},
	)
	searchHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "hits",
			Help:      "Distribution of hits returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service"},
	)
	searchNoHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "no_hits_total",
			Help:      "Total searches that returned nothing.",
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	extractionRunTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "sync_runs_total",
			Help:      "Total synchronous extraction runs by outcome.",
		},
		[]string{"service", "status"},
	)
	deletedAssetsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "deleted_assets_total",
			Help:      "Total assets soft-deleted.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		searchRequests,
		searchHits,
		searchNoHitsTotal,
		searchDuration,
		extractionRunTotal,
		deletedAssetsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		uploadsTotal:       uploadsTotal,
		searchRequests:     searchRequests,
		searchHits:         searchHits,
		searchNoHitsTotal:  searchNoHitsTotal,
		searchDuration:     searchDuration,
		extractionRunTotal: extractionRunTotal,
		deletedAssetsTotal: deletedAssetsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds ids out of the path so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/files/"):
		return "/files/{key}"
	case path == "/assets/bulk-delete":
		return path
	case strings.HasPrefix(path, "/assets/"):
		rest := strings.TrimPrefix(path, "/assets/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/assets/{id}" + rest[i:]
		}
		return "/assets/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, kind).Inc()
}

func (m *HTTPServerMetrics) RecordSearch(service string, hits int, duration time.Duration) {
	m.searchRequests.WithLabelValues(service).Inc()
	m.searchHits.WithLabelValues(service).Observe(float64(hits))
	m.searchDuration.WithLabelValues(service).Observe(duration.Seconds())
	if hits == 0 {
		m.searchNoHitsTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordSyncExtraction(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.extractionRunTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordDeleted(service string, count int64) {
	if count <= 0 {
		return
	}
	m.deletedAssetsTotal.WithLabelValues(service).Add(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
