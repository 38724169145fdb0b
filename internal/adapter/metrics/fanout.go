package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery failure reasons.
const (
	FailureClosed     = "closed"
	FailureBufferFull = "buffer_full"
	FailureEncode     = "encode"
	FailureLimit      = "channel_limit"
)

type FanoutMetrics struct {
	ConnectedChannels prometheus.Gauge
	Subscribers       prometheus.Gauge
	MessagesDelivered *prometheus.CounterVec
	DeliveryFailures  *prometheus.CounterVec
}

func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	m := &FanoutMetrics{
		ConnectedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "connected_channels",
			Help:      "Number of registered real-time channels.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "subscribers",
			Help:      "Number of users with at least one registered channel.",
		}),
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to channel send buffers, by message type.",
		}, []string{"type"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "delivery_failures_total",
			Help:      "Dropped deliveries and refused channels, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ConnectedChannels, m.Subscribers, m.MessagesDelivered, m.DeliveryFailures)
	return m
}
