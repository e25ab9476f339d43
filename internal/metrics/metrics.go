package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the trading engine.
type Metrics struct {
	AdmissionLatency  prometheus.Histogram
	RequestsAccepted  *prometheus.CounterVec
	RequestsRejected  *prometheus.CounterVec
	Trades            *prometheus.CounterVec
	Cancels           *prometheus.CounterVec
	ReconcileFailures *prometheus.CounterVec
	EngineStatus      prometheus.Gauge
	gatherer          prometheus.Gatherer
}

// NewDefault registers metrics with the default Prometheus registry.
func NewDefault() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// New registers metrics with the provided registry. If registry is nil, a new
// isolated registry is created.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		AdmissionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "admission_latency_seconds",
			Help:    "Order admission latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		RequestsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_accepted_total",
			Help: "Total accepted requests by kind.",
		}, []string{"kind"}),
		RequestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_rejected_total",
			Help: "Total rejected requests by reason.",
		}, []string{"reason"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_total",
			Help: "Total reconciled trade responses by trader.",
		}, []string{"trader"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cancels_total",
			Help: "Total reconciled cancel responses by trader.",
		}, []string{"trader"}),
		ReconcileFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_failures_total",
			Help: "Total reconciliation failures by kind.",
		}, []string{"kind"}),
		EngineStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_status",
			Help: "Current engine status code.",
		}),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.AdmissionLatency,
		m.RequestsAccepted,
		m.RequestsRejected,
		m.Trades,
		m.Cancels,
		m.ReconcileFailures,
		m.EngineStatus,
	)

	return m
}

// Handler returns an HTTP handler that exposes metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAdmissionLatency records order admission latency.
func (m *Metrics) ObserveAdmissionLatency(d time.Duration) {
	m.AdmissionLatency.Observe(d.Seconds())
}

// IncRequestAccepted increments the accepted counter for a request kind.
func (m *Metrics) IncRequestAccepted(kind string) {
	m.RequestsAccepted.WithLabelValues(kind).Inc()
}

// IncRequestRejected increments the rejected counter for a reject reason.
func (m *Metrics) IncRequestRejected(reason string) {
	m.RequestsRejected.WithLabelValues(reason).Inc()
}

// IncTrade increments the trade counter for a trader channel.
func (m *Metrics) IncTrade(traderID string) {
	m.Trades.WithLabelValues(traderID).Inc()
}

// IncCancel increments the cancel counter for a trader channel.
func (m *Metrics) IncCancel(traderID string) {
	m.Cancels.WithLabelValues(traderID).Inc()
}

// IncReconcileFailure increments the reconciliation failure counter.
func (m *Metrics) IncReconcileFailure(kind string) {
	m.ReconcileFailures.WithLabelValues(kind).Inc()
}

// SetEngineStatus records the current engine status code.
func (m *Metrics) SetEngineStatus(code int) {
	m.EngineStatus.Set(float64(code))
}
