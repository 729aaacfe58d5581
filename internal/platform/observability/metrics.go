package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the fulfillment pipeline collectors. All methods are
// nil-safe so tests can pass a zero dispatcher.
type Metrics struct {
	ordersCreated    *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	trackingPolls    *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hexdecor",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Order creation attempts by result.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hexdecor",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by internal outcome.",
		}, []string{"outcome"}),
		trackingPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hexdecor",
			Subsystem: "shipping",
			Name:      "tracking_polls_total",
			Help:      "Tracking resolution polls by result.",
		}, []string{"result"}),
		externalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hexdecor",
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "Duration of external provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target", "operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.ordersCreated, m.webhookEvents, m.trackingPolls, m.externalDuration)
	}
	return m
}

// OrderCreated records an order creation attempt outcome.
func (m *Metrics) OrderCreated(result string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(result).Inc()
}

// WebhookEvent records the internal outcome of a webhook delivery.
func (m *Metrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// TrackingPoll records a single tracking resolution poll result.
func (m *Metrics) TrackingPoll(result string) {
	if m == nil {
		return
	}
	m.trackingPolls.WithLabelValues(result).Inc()
}

// ObserveExternalCall records the duration of one provider call.
func (m *Metrics) ObserveExternalCall(target, operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.externalDuration.WithLabelValues(target, operation).Observe(elapsed.Seconds())
}
