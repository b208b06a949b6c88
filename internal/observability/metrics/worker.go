package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/media-search/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobTotal    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobInFlight prometheus.Gauge
	exitCodes   *prometheus.CounterVec
	queueLag    *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "extraction_jobs_total",
			Help:      "Extraction jobs handled from the queue by outcome.",
		},
		[]string{"service", "outcome"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "extraction_job_duration_seconds",
			Help:      "Wall time of one extraction job, extractor process included.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"service", "outcome"},
	)
	jobInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "extraction_jobs_in_flight",
			Help:        "Extraction jobs currently running.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	exitCodes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "extractor_exits_total",
			Help:      "Non-zero extractor exit codes.",
		},
		[]string{"service", "code"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueueing an extraction request and picking it up.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, exitCodes, queueLag)

	return &WorkerMetrics{
		registry:    registry,
		jobTotal:    jobTotal,
		jobDuration: jobDuration,
		jobInFlight: jobInFlight,
		exitCodes:   exitCodes,
		queueLag:    queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobInFlight.Dec()

	outcome := jobOutcome(err)
	m.jobTotal.WithLabelValues(service, outcome).Inc()
	m.jobDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())

	var failure *domain.WorkerFailure
	if errors.As(err, &failure) && failure.ExitCode != 0 {
		m.exitCodes.WithLabelValues(service, strconv.Itoa(failure.ExitCode)).Inc()
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func jobOutcome(err error) string {
	var failure *domain.WorkerFailure
	switch {
	case err == nil:
		return "done"
	case errors.As(err, &failure):
		return "worker_failure"
	case domain.IsKind(err, domain.ErrAssetNotFound):
		return "asset_gone"
	case domain.IsKind(err, domain.ErrSchemaMismatch):
		return "schema_mismatch"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}
