package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus-реализация Sink.
type Metrics struct {
	// Traffic: общее кол-во сообщений
	MessagesTotal *prometheus.CounterVec

	// Latency: полное время пайплайна, включая обработчик
	Latency *prometheus.HistogramVec

	// Errors
	AuthFailuresTotal *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	ReplayHitsTotal   prometheus.Counter
	RateLimitedTotal  prometheus.Counter

	// Saturation: заполненность буфера аудита (backpressure)
	AuditBuffer prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		MessagesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "janus_messages_total",
			Help: "Total number of processed messages.",
		}, []string{"directive", "status"}),

		Latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "janus_latency_seconds",
			Help:    "Histogram of end-to-end message latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"directive", "status"}),

		AuthFailuresTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "janus_auth_failures_total",
			Help: "Total number of authentication failures by reason.",
		}, []string{"reason"}),

		RejectionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "janus_rejections_total",
			Help: "Total number of rejected messages by error code.",
		}, []string{"code"}),

		ReplayHitsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "janus_replay_hits_total",
			Help: "Total number of replayed message ids caught by the dedup window.",
		}),

		RateLimitedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "janus_rate_limited_total",
			Help: "Total number of messages rejected by per-agent buckets.",
		}),

		AuditBuffer: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "janus_audit_buffer_utilization",
			Help: "Current number of events in the audit buffer.",
		}),
	}
}

func (m *Metrics) ObserveMessage(directive, status string, errorCode string, duration time.Duration) {
	m.MessagesTotal.WithLabelValues(directive, status).Inc()
	m.Latency.WithLabelValues(directive, status).Observe(duration.Seconds())
	if errorCode != "" {
		m.RejectionsTotal.WithLabelValues(errorCode).Inc()
	}
}

func (m *Metrics) AuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReplayHit() { m.ReplayHitsTotal.Inc() }

func (m *Metrics) RateLimited() { m.RateLimitedTotal.Inc() }

func (m *Metrics) AuditBufferFill(n int) { m.AuditBuffer.Set(float64(n)) }
