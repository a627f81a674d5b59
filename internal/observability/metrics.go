package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	notificationJobsTotal    *prometheus.CounterVec
	notificationJobsPending  prometheus.Gauge
	notificationRunsTotal    *prometheus.CounterVec
	notificationsPublished   *prometheus.CounterVec
	notificationStreamActive prometheus.Gauge
	rearmRunsTotal           *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		notificationJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Delayed notification job events by kind (scheduled, replaced, cancelled, skipped).",
		}, []string{"event"})

		notificationJobsPending = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_jobs_pending",
			Help: "Number of notification jobs waiting for their fire time.",
		})

		notificationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_worker_runs_total",
			Help: "Delivery worker runs by outcome.",
		}, []string{"outcome"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "User-visible notifications published by channel.",
		}, []string{"channel"})

		notificationStreamActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_clients_active",
			Help: "Open notification stream subscriptions.",
		})

		rearmRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_rearm_runs_total",
			Help: "Re-arm sweeps by trigger.",
		}, []string{"trigger"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			notificationJobsTotal, notificationJobsPending, notificationRunsTotal,
			notificationsPublished, notificationStreamActive, rearmRunsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// NotificationJobs counts queue events.
func NotificationJobs() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationJobsTotal
}

// NotificationJobsPending tracks the queue size.
func NotificationJobsPending() prometheus.Gauge {
	RegisterMetrics()
	return notificationJobsPending
}

// NotificationWorkerRuns counts delivery worker outcomes.
func NotificationWorkerRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationRunsTotal
}

// NotificationsPublishedTotal counts published notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// NotificationStreamClients tracks open SSE subscriptions.
func NotificationStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return notificationStreamActive
}

// RearmRuns counts re-arm sweeps.
func RearmRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return rearmRunsTotal
}
