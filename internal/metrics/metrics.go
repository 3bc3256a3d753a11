package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "erigo"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	ReloginsTotal      *prometheus.CounterVec
	PendingTasksTotal  prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Telegram metrics
	TelegramCommandsTotal     *prometheus.CounterVec
	TelegramMessagesSentTotal prometheus.Counter
	TelegramErrorsTotal       prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by method and status code",
			},
			[]string{"method", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of API requests in seconds, including task waits and relogin retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ReloginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relogins_total",
				Help:      "Total number of re-logins after an expired API session",
			},
			[]string{"result"},
		),
		PendingTasksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_tasks_total",
				Help:      "Total number of API calls that returned a pending task",
			},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of cached API sessions",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of API sessions created",
			},
		),

		TelegramCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_commands_total",
				Help:      "Total number of Telegram commands by command and result",
			},
			[]string{"command", "result"},
		),
		TelegramMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_messages_sent_total",
				Help:      "Total number of Telegram messages sent",
			},
		),
		TelegramErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_errors_total",
				Help:      "Total number of Telegram errors",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.APIRequestsTotal)
	m.registry.MustRegister(m.APIRequestDuration)
	m.registry.MustRegister(m.ReloginsTotal)
	m.registry.MustRegister(m.PendingTasksTotal)

	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsTotal)

	m.registry.MustRegister(m.TelegramCommandsTotal)
	m.registry.MustRegister(m.TelegramMessagesSentTotal)
	m.registry.MustRegister(m.TelegramErrorsTotal)
}

// RecordRequest records one API call. status 0 means no HTTP response was received.
func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.APIRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordRelogin records a re-login attempt
func (m *Metrics) RecordRelogin(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ReloginsTotal.WithLabelValues(result).Inc()
}

// RecordPendingTask counts a call answered with a pending task
func (m *Metrics) RecordPendingTask() {
	if m == nil {
		return
	}
	m.PendingTasksTotal.Inc()
}

// RecordSessionCreated counts a new session and updates the active gauge
func (m *Metrics) RecordSessionCreated(active int) {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Set(float64(active))
}

// SetSessionsActive updates the active session gauge
func (m *Metrics) SetSessionsActive(active int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(active))
}

// RecordCommand counts a handled Telegram command
func (m *Metrics) RecordCommand(command string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.TelegramCommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordMessageSent counts a sent Telegram message
func (m *Metrics) RecordMessageSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TelegramErrorsTotal.Inc()
		return
	}
	m.TelegramMessagesSentTotal.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
