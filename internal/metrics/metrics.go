package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reg = prometheus.NewRegistry()

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path", "status_code"},
	)
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rate_limiter_rejected_total", Help: "Requests rejected by rate limiter"},
	)
	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "detections_total", Help: "Completed detections by verdict"},
		[]string{"result"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Outbound page fetch duration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)
	FetchedHTMLBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetched_html_bytes",
			Help:    "Size of decoded HTML documents",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
	EmailFormsFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "widget_email_forms_found_total", Help: "Widget blocks with an email input reported"},
	)
)

var registered atomic.Bool

func Register() {
	if registered.Swap(true) {
		return
	}
	reg.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, RateLimitRejectedTotal, DetectionsTotal, FetchDuration, FetchedHTMLBytes, EmailFormsFoundTotal)
}

// Returns the /metrics HTTP handler
func Handler() http.Handler { Register(); return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}) }

// Records metrics for a request.
func ObserveRequest(method, path, status string, dur time.Duration, statusCode int) {
	Register()
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", statusCode)).Observe(dur.Seconds())
}

// Records one outbound fetch. outcome is "ok" or "error".
func ObserveFetch(outcome string, dur time.Duration, size int) {
	Register()
	FetchDuration.WithLabelValues(outcome).Observe(dur.Seconds())
	if outcome == "ok" {
		FetchedHTMLBytes.Observe(float64(size))
	}
}

// Records a finished detection.
func ObserveDetection(result string, emailForms int) {
	Register()
	DetectionsTotal.WithLabelValues(result).Inc()
	if emailForms > 0 {
		EmailFormsFoundTotal.Add(float64(emailForms))
	}
}
