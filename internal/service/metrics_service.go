package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the enrolment
// workflows. All methods are nil-safe so callers can run without metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	enrolments      *prometheus.CounterVec
	unenrolments    *prometheus.CounterVec
	denials         *prometheus.CounterVec
	welcomeMails    *prometheus.CounterVec
}

// NewMetricsService registers the service's Prometheus collectors.
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

	enrolments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrolments_total",
		Help: "Enrolments performed, by kind (self, child, cascade)",
	}, []string{"kind"})

	unenrolments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unenrolments_total",
		Help: "Unenrolments performed, by kind (direct, cascade, sync)",
	}, []string{"kind"})

	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_denials_total",
		Help: "Eligibility denials, by reason",
	}, []string{"reason"})

	welcomeMails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "welcome_emails_total",
		Help: "Welcome email attempts, by result",
	}, []string{"result"})

	registry.MustRegister(requestDuration, requestTotal, enrolments, unenrolments, denials, welcomeMails)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		enrolments:      enrolments,
		unenrolments:    unenrolments,
		denials:         denials,
		welcomeMails:    welcomeMails,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveHTTPRequest records one request sample.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// CountEnrolment records one performed enrolment.
func (s *MetricsService) CountEnrolment(kind string) {
	if s == nil {
		return
	}
	s.enrolments.WithLabelValues(kind).Inc()
}

// CountUnenrolment records one performed unenrolment.
func (s *MetricsService) CountUnenrolment(kind string) {
	if s == nil {
		return
	}
	s.unenrolments.WithLabelValues(kind).Inc()
}

// CountDenial records one eligibility denial.
func (s *MetricsService) CountDenial(reason models.DenialReason) {
	if s == nil || reason == models.DenialNone {
		return
	}
	s.denials.WithLabelValues(string(reason)).Inc()
}

// CountWelcomeMail records one welcome email attempt.
func (s *MetricsService) CountWelcomeMail(result string) {
	if s == nil {
		return
	}
	s.welcomeMails.WithLabelValues(result).Inc()
}
