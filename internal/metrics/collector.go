package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector manages Prometheus metrics for the classification pipeline. A nil
// collector is valid and records nothing; tests pass nil.
type Collector struct {
	checksTotal        *prometheus.CounterVec
	checkDuration      prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	providerFailures   *prometheus.CounterVec
	listFeedbackTotal  *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// NewCollector creates and registers the pipeline metrics
func NewCollector() *Collector {
	return &Collector{
		checksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "url_sentinel_checks_total",
			Help: "Classification requests by verdict and deciding source",
		}, []string{"verdict", "source"}),
		checkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "url_sentinel_check_duration_seconds",
			Help:    "End-to-end classification duration",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "url_sentinel_stage_duration_seconds",
			Help:    "Per-stage pipeline duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		providerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "url_sentinel_provider_failures_total",
			Help: "External collaborator failures degraded to fallback behaviour",
		}, []string{"provider"}),
		listFeedbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "url_sentinel_list_feedback_total",
			Help: "Allow/deny list entries written by the verdict feedback loop",
		}, []string{"list"}),
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "url_sentinel_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpRequestSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "url_sentinel_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RecordCheck counts one finished classification
func (c *Collector) RecordCheck(verdict, source string, duration time.Duration) {
	if c == nil {
		return
	}
	c.checksTotal.WithLabelValues(verdict, source).Inc()
	c.checkDuration.Observe(duration.Seconds())
}

// RecordStage observes the duration of one pipeline stage
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordProviderFailure counts a degraded external call
func (c *Collector) RecordProviderFailure(provider string) {
	if c == nil {
		return
	}
	c.providerFailures.WithLabelValues(provider).Inc()
}

// RecordListFeedback counts a feedback write into a list
func (c *Collector) RecordListFeedback(list string) {
	if c == nil {
		return
	}
	c.listFeedbackTotal.WithLabelValues(list).Inc()
}

// RecordHTTPRequest counts one handled HTTP request
func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	c.httpRequestSeconds.WithLabelValues(route).Observe(duration.Seconds())
}
