// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB repository operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Upload Pipeline Metrics
	PipelinePages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_pages_total",
			Help: "Pages processed by the upload pipeline",
		},
		[]string{"result"}, // "uploaded", "skipped", "failed"
	)

	PipelineRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_retries_total",
			Help: "Upload attempts retried after a transient failure",
		},
	)

	PipelinePageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_page_duration_seconds",
			Help:    "Time to convert and upload one page",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	PipelineJournalHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_journal_hits_total",
			Help: "Pages skipped because the journal already recorded them",
		},
	)

	// Storage Metrics
	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Object storage operations",
		},
		[]string{"backend", "op", "result"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Object storage operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published",
		},
		[]string{"topic"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Domain events handled by subscribers",
		},
		[]string{"topic", "result"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "In-app notifications written",
		},
		[]string{"kind"},
	)

	// Subscription Metrics
	SubscriptionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "Subscription expiry events emitted by the scheduler",
		},
		[]string{"type"}, // "expiring", "expired"
	)

	SubscriptionSchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_scheduler_runs_total",
			Help: "Expiry scheduler passes",
		},
		[]string{"result"},
	)

	PaymentsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reviewed_total",
			Help: "Manual payments approved or rejected",
		},
		[]string{"status"},
	)

	// Moderation Metrics
	ModerationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Moderation actions taken",
		},
		[]string{"action"},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Casbin authorization decisions by object and outcome",
		},
		[]string{"object", "decision"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of WebSocket clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Messages queued to WebSocket clients",
		},
		[]string{"type"},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStorageOp records the outcome and latency of an object storage call.
func RecordStorageOp(backend, op string, duration time.Duration, err error) {
	StorageOperations.WithLabelValues(backend, op, resultLabel(err)).Inc()
	StorageOperationDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordPipelinePage records one page outcome ("uploaded", "skipped" or "failed").
func RecordPipelinePage(result string, duration time.Duration) {
	PipelinePages.WithLabelValues(result).Inc()
	if result != "skipped" {
		PipelinePageDuration.Observe(duration.Seconds())
	}
}

// RecordEventProcessed records a subscriber's handling of one event.
func RecordEventProcessed(topic string, err error) {
	EventsProcessed.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordCircuitBreakerTransition updates state gauge and transition counter.
// States follow gobreaker's ordering: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
}

func stateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
