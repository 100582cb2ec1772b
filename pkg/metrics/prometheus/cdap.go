// Package prometheus provides the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/cdapd/pkg/metrics"
)

// cdapMetrics is the Prometheus implementation of metrics.CDAPMetrics.
type cdapMetrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	protocolErrors   *prometheus.CounterVec
	wireErrors       prometheus.Counter
	dispatchDuration *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
}

// NewCDAPMetrics creates a Prometheus-backed CDAPMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// callers pass straight through for zero overhead.
func NewCDAPMetrics() metrics.CDAPMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cdapMetrics{
		messagesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdapd_messages_sent_total",
				Help: "Total CDAP messages put on the wire by opcode",
			},
			[]string{"opcode"},
		),
		messagesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdapd_messages_received_total",
				Help: "Total CDAP messages accepted from the wire by opcode",
			},
			[]string{"opcode"},
		),
		protocolErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdapd_protocol_errors_total",
				Help: "Total CDAP protocol violations by kind",
			},
			[]string{"kind"},
		),
		wireErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cdapd_wire_errors_total",
				Help: "Total discarded malformed buffers",
			},
		),
		dispatchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "cdapd_dispatch_duration_milliseconds",
				Help: "Inbound dispatch latency from bytes-in to callback return",
				Buckets: []float64{
					0.05, // 50us - pure session-layer work
					0.1,
					0.5,
					1,
					5,
					10,
					50,
					100, // slow user callbacks
				},
			},
			[]string{"opcode"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cdapd_active_sessions",
				Help: "Number of live CDAP sessions",
			},
		),
	}
}

func (m *cdapMetrics) RecordMessageSent(opcode string) {
	m.messagesSent.WithLabelValues(opcode).Inc()
}

func (m *cdapMetrics) RecordMessageReceived(opcode string) {
	m.messagesReceived.WithLabelValues(opcode).Inc()
}

func (m *cdapMetrics) RecordProtocolError(kind string) {
	m.protocolErrors.WithLabelValues(kind).Inc()
}

func (m *cdapMetrics) RecordWireError() {
	m.wireErrors.Inc()
}

func (m *cdapMetrics) RecordDispatch(opcode string, duration time.Duration) {
	m.dispatchDuration.WithLabelValues(opcode).
		Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *cdapMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// ribMetrics is the Prometheus implementation of metrics.RIBMetrics.
type ribMetrics struct {
	objects    *prometheus.GaugeVec
	operations *prometheus.CounterVec
}

// NewRIBMetrics creates a Prometheus-backed RIBMetrics instance. Returns
// nil if metrics are not enabled.
func NewRIBMetrics() metrics.RIBMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &ribMetrics{
		objects: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cdapd_rib_objects",
				Help: "Number of objects per RIB",
			},
			[]string{"version", "ae_name"},
		),
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdapd_rib_operations_total",
				Help: "Object operations dispatched by the RIB by kind and outcome",
			},
			[]string{"op", "outcome"},
		),
	}
}

func (m *ribMetrics) SetObjectCount(version int64, aeName string, count int) {
	m.objects.WithLabelValues(strconv.FormatInt(version, 10), aeName).Set(float64(count))
}

func (m *ribMetrics) RecordOperation(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}
