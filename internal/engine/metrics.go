package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
)

type Metrics struct {
	// Latency: длительность полного прогона резолвинга
	ResolutionDuration *prometheus.HistogramVec

	// Outcome: ready / failed / cancelled
	Resolutions *prometheus.CounterVec

	// Per-group: ok / degraded
	GroupFetches *prometheus.CounterVec

	// Потери нормализации (открытый вопрос: тихий дроп, но видимый в мониторинге)
	NormalizationLosses *prometheus.CounterVec

	// Upstream: вызовы admin-сервиса по эндпоинтам
	UpstreamRequests *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 0.5 - half-open, 1 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Сколько групп сейчас отрезано своим Circuit Breaker-ом
	OpenGroupBreakers prometheus.Gauge

	// Открытые SSE-сессии дашборда
	ActiveSessions prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ResolutionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_resolution_duration_seconds",
			Help:    "Histogram of entitlement resolution latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_resolutions_total",
			Help: "Total number of settled resolution runs by outcome.",
		}, []string{"outcome"}),

		GroupFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_group_fetch_total",
			Help: "Group roster lookups by result.",
		}, []string{"result"}),

		NormalizationLosses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_normalization_losses_total",
			Help: "Entries dropped while normalizing admin payloads.",
		}, []string{"kind"}),

		UpstreamRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_upstream_requests_total",
			Help: "Admin service calls by endpoint and result.",
		}, []string{"endpoint", "status"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_circuit_breaker_state",
			Help: "Current state of the circuit breaker per admin endpoint (0=closed, 0.5=half-open, 1=open).",
		}, []string{"endpoint"}),

		OpenGroupBreakers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "portal_group_breakers_open",
			Help: "Number of group roster circuit breakers currently open.",
		}),

		ActiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Number of live dashboard sessions.",
		}),
	}
}

// RecordLoss реализует normalize.LossRecorder
func (m *Metrics) RecordLoss(kind normalize.LossKind) {
	m.NormalizationLosses.WithLabelValues(string(kind)).Inc()
}
