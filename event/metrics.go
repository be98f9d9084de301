package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	promautoFactory := promauto.With(reg)
	return &busMetrics{
		eventsTotal: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "okinoko_event_published_total",
			Help: "events published by type",
		}, []string{"type"}),
		subscribers: promautoFactory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "okinoko_event_subscribers",
			Help: "current subscribers by type and kind",
		}, []string{"type", "kind"}),
		deliveryErrors: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "okinoko_event_delivery_errors_total",
			Help: "failed or dropped deliveries by type and kind",
		}, []string{"type", "kind"}),
	}
}

// The methods below are no-ops on a nil receiver so the bus works without a registry.

func (m *busMetrics) published(t EventType) {
	if m != nil {
		m.eventsTotal.WithLabelValues(string(t)).Inc()
	}
}

func (m *busMetrics) subscribed(t EventType, kind string) {
	if m != nil {
		m.subscribers.WithLabelValues(string(t), kind).Inc()
	}
}

func (m *busMetrics) unsubscribed(t EventType, kind string) {
	if m != nil {
		m.subscribers.WithLabelValues(string(t), kind).Dec()
	}
}

func (m *busMetrics) deliveryFailed(t EventType, kind string) {
	if m != nil {
		m.deliveryErrors.WithLabelValues(string(t), kind).Inc()
	}
}

func (m *busMetrics) reset() {
	if m != nil {
		m.subscribers.Reset()
	}
}
