package mesh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "btmesh"

// Metrics collects session metrics. A nil *Metrics records nothing.
type Metrics struct {
	routed           *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	deliveryTimeouts prometheus.Counter
	deliveryLatency  prometheus.Histogram
	sent             *prometheus.CounterVec
	applications     prometheus.Gauge
	provisioner      *prometheus.CounterVec
}

// NewMetrics creates the session metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		routed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_routed_total",
			Help:      "Inbound access messages delivered to element consumers.",
		}, []string{"element"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound access messages dropped without a consumer.",
		}, []string{"reason"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_rejected_total",
			Help:      "Inbound access messages answered with a request error.",
		}, []string{"reason"}),
		deliveryTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_timeouts_total",
			Help:      "Inbound access messages whose consumer did not drain in time.",
		}),
		deliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_seconds",
			Help:      "Time inbound access messages waited for their consumer.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		sent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Outbound access messages handed to the daemon.",
		}, []string{"method", "result"}),
		applications: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "applications_registered",
			Help:      "Applications currently exported on the bus.",
		}),
		provisioner: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provisioner_events_total",
			Help:      "Provisioner callbacks received from the daemon.",
		}, []string{"event"}),
	}
}

func (m *Metrics) messageRouted(element string, waited time.Duration) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(element).Inc()
	m.deliveryLatency.Observe(waited.Seconds())
}

func (m *Metrics) messageDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) messageRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) deliveryTimedOut() {
	if m == nil {
		return
	}
	m.deliveryTimeouts.Inc()
}

func (m *Metrics) messageSent(method string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sent.WithLabelValues(method, result).Inc()
}

func (m *Metrics) applicationRegistered() {
	if m == nil {
		return
	}
	m.applications.Inc()
}

func (m *Metrics) applicationUnregistered() {
	if m == nil {
		return
	}
	m.applications.Dec()
}

func (m *Metrics) provisionerEvent(event string) {
	if m == nil {
		return
	}
	m.provisioner.WithLabelValues(event).Inc()
}
