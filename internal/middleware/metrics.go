package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	messagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_messages_dispatched_total",
		Help: "Total number of messages entering the dispatch pipeline",
	}, []string{"account_id"})

	messagesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_messages_deduplicated_total",
		Help: "Total number of messages skipped by the dedup cache",
	})

	monitorMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_monitor_matches_total",
		Help: "Total number of monitor matches",
	}, []string{"monitor_type"})

	monitorsPaused = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_monitors_paused_total",
		Help: "Total number of monitors auto-paused on execution quota",
	}, []string{"monitor_type"})

	// Action metrics
	actionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_actions_executed_total",
		Help: "Total number of actions executed",
	}, []string{"action", "status"})

	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_ai_requests_total",
		Help: "Total number of AI requests",
	}, []string{"model", "status"})

	// Scheduler metrics
	scheduledFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_scheduled_fires_total",
		Help: "Total number of scheduled message fires",
	}, []string{"status"})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	// Active monitors gauge
	activeMonitors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_active_monitors",
		Help: "Number of active monitors across all accounts",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageDispatched records a message entering dispatch
func (m *Metrics) RecordMessageDispatched(accountID string) {
	messagesDispatched.WithLabelValues(accountID).Inc()
}

// RecordMessageDeduplicated records a dedup cache hit
func (m *Metrics) RecordMessageDeduplicated() {
	messagesDeduplicated.Inc()
}

// RecordMonitorMatch records a monitor match
func (m *Metrics) RecordMonitorMatch(monitorType string) {
	monitorMatches.WithLabelValues(monitorType).Inc()
}

// RecordMonitorPaused records a quota auto-pause
func (m *Metrics) RecordMonitorPaused(monitorType string) {
	monitorsPaused.WithLabelValues(monitorType).Inc()
}

// RecordActionExecuted records an executed action
func (m *Metrics) RecordActionExecuted(action, status string) {
	actionsExecuted.WithLabelValues(action, status).Inc()
}

// RecordAIRequest records an AI request
func (m *Metrics) RecordAIRequest(model, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordScheduledFire records a scheduled message fire
func (m *Metrics) RecordScheduledFire(status string) {
	scheduledFires.WithLabelValues(status).Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string) {
	storageOperations.WithLabelValues(operation, status).Inc()
}

// SetActiveMonitors sets the active monitor gauge
func (m *Metrics) SetActiveMonitors(count float64) {
	activeMonitors.Set(count)
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
