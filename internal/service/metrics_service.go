package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/guard-forms/pkg/jobs"
)

// Submission outcomes as recorded in metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	listFetches     *prometheus.CounterVec
	sessionsOpened  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "form_submissions_total",
		Help: "Form submissions by form and outcome",
	}, []string{"form", "outcome"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attachment_uploads_total",
		Help: "Chained attachment uploads by outcome",
	}, []string{"outcome"})

	listFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "list_fetches_total",
		Help: "List fetches by kind and outcome",
	}, []string{"kind", "outcome"})

	sessionsOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "form_sessions_opened_total",
		Help: "Form modals opened by form",
	}, []string{"form"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, uploads, listFetches, sessionsOpened, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		uploads:         uploads,
		listFetches:     listFetches,
		sessionsOpened:  sessionsOpened,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the collector registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSubmission counts a finished submission.
func (m *MetricsService) ObserveSubmission(form, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(form, outcome).Inc()
}

// ObserveUpload counts one chained attachment upload.
func (m *MetricsService) ObserveUpload(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailed
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// ObserveListFetch counts a list fetch; outcome is ok, superseded or error.
func (m *MetricsService) ObserveListFetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.listFetches.WithLabelValues(kind, outcome).Inc()
}

// ObserveSessionOpened counts an opened modal.
func (m *MetricsService) ObserveSessionOpened(form string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(form).Inc()
}

// RegisterQueue exports the counters of a background queue.
func (m *MetricsService) RegisterQueue(name string, q *jobs.Queue) {
	if m == nil || q == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "job_processed_total", Help: "Jobs completed", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Processed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "job_dropped_total", Help: "Jobs given up after retries", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Dropped) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "job_pending", Help: "Jobs waiting in the buffer", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Pending) }),
	)
}
