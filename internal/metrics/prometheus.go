package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	submitted       prometheus.Counter
	reviewed        *prometheus.CounterVec
	attached        *prometheus.CounterVec
	statusConflicts prometheus.Counter
	statsCache      *prometheus.CounterVec
	readRetries     prometheus.Counter
	events          *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewPrometheus registers the application metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "permitdesk_applications_submitted_total",
			Help: "Total number of permit applications submitted",
		}),
		reviewed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permitdesk_applications_reviewed_total",
			Help: "Total number of review decisions by outcome",
		}, []string{"decision"}),
		attached: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permitdesk_attachments_recorded_total",
			Help: "Total number of attachment references recorded by slot",
		}, []string{"slot"}),
		statusConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "permitdesk_status_conflicts_total",
			Help: "Review decisions that lost a concurrent status change",
		}),
		statsCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permitdesk_stats_cache_requests_total",
			Help: "Dashboard count lookups by cache result",
		}, []string{"result"}),
		readRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "permitdesk_store_read_retries_total",
			Help: "Store reads retried after a transient failure",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "permitdesk_lifecycle_events_total",
			Help: "Lifecycle events by publish outcome",
		}, []string{"status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permitdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (p *PrometheusRecorder) IncApplicationSubmitted() { p.submitted.Inc() }

func (p *PrometheusRecorder) IncApplicationReviewed(decision string) {
	p.reviewed.WithLabelValues(decision).Inc()
}

func (p *PrometheusRecorder) IncAttachmentRecorded(slot string) {
	p.attached.WithLabelValues(slot).Inc()
}

func (p *PrometheusRecorder) IncStatusConflict() { p.statusConflicts.Inc() }
func (p *PrometheusRecorder) IncStatsCacheHit() { p.statsCache.WithLabelValues("hit").Inc() }
func (p *PrometheusRecorder) IncStatsCacheMiss() { p.statsCache.WithLabelValues("miss").Inc() }
func (p *PrometheusRecorder) IncReadRetry() { p.readRetries.Inc() }

func (p *PrometheusRecorder) IncEventPublished(status string) {
	p.events.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
