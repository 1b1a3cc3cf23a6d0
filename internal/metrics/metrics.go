// Package metrics exposes ebridge counters and gauges as Prometheus
// collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ebridge"

// Metrics holds every collector recorded by the transport.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsOpened prometheus.Counter
	ConnectionsClosed *prometheus.CounterVec
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	BlocksReceived    prometheus.Counter
	BlocksSent        prometheus.Counter
	DispatchDropped   prometheus.Counter
	Batches           prometheus.Counter
	BatchSize         prometheus.Histogram
	ProcessSeconds    prometheus.Histogram
	QueueSkips        *prometheus.CounterVec
	Reconnects        prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of live connections.",
		}),
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Connections accepted or established.",
		}),
		ConnectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Connections removed, by final state.",
		}, []string{"state"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Bytes read from transports.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Bytes handed to transports.",
		}),
		BlocksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_blocks_total",
			Help:      "Blocks leaving inbound pipelines.",
		}),
		BlocksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_blocks_total",
			Help:      "Blocks entering outbound pipelines.",
		}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_dropped_total",
			Help:      "Processed blocks whose connection was gone.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_batches_total",
			Help:      "Sub-batches handed to the processor.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_batch_size",
			Help:      "Blocks per processor sub-batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		ProcessSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_duration_seconds",
			Help:      "Time spent in one processor call.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_full_skips_total",
			Help:      "Passes skipped because a cross-boundary queue was full.",
		}, []string{"queue"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_reconnect_attempts_total",
			Help:      "Client reconnect attempts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ConnectionsActive, m.ConnectionsOpened, m.ConnectionsClosed,
			m.BytesReceived, m.BytesSent, m.BlocksReceived, m.BlocksSent,
			m.DispatchDropped, m.Batches, m.BatchSize, m.ProcessSeconds,
			m.QueueSkips, m.Reconnects,
		)
	}
	return m
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnClosed(state string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
	m.ConnectionsClosed.WithLabelValues(state).Inc()
}

func (m *Metrics) AddBytesIn(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceived.Add(float64(n))
}

func (m *Metrics) AddBytesOut(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) AddBlocksIn(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BlocksReceived.Add(float64(n))
}

func (m *Metrics) AddBlocksOut(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BlocksSent.Add(float64(n))
}

func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DispatchDropped.Add(float64(n))
}

// ObserveBatch records one processor call of size blocks taking seconds.
func (m *Metrics) ObserveBatch(size int, seconds float64) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.BatchSize.Observe(float64(size))
	m.ProcessSeconds.Observe(seconds)
}

// QueueFull records a skipped pass for the named queue.
func (m *Metrics) QueueFull(queue string) {
	if m == nil {
		return
	}
	m.QueueSkips.WithLabelValues(queue).Inc()
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}
