// Package prometheus provides the Prometheus-backed implementation of
// pkg/metrics.NFSMetrics: promauto-constructed collectors registered
// against the process-wide registry, all under the nfsv3d_ prefix.
package prometheus

import (
	"time"

	"github.com/marmos91/nfsv3d/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type nfsMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
	operationSize   *prometheus.HistogramVec
	activeConns     prometheus.Gauge
	connsAccepted   prometheus.Counter
	connsClosed     prometheus.Counter
	connsForceClosed prometheus.Counter
}

// NewNFSMetrics returns a Prometheus-backed metrics.NFSMetrics, or nil
// if metrics.InitRegistry was never called — callers pass that nil
// straight through to the dispatcher, which treats it as "collect
// nothing".
func NewNFSMetrics() metrics.NFSMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &nfsMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsv3d_requests_total",
				Help: "Total NFS requests by procedure, share, and error code",
			},
			[]string{"procedure", "share", "error_code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nfsv3d_request_duration_seconds",
				Help:    "NFS request processing duration by procedure",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure", "share"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nfsv3d_requests_in_flight",
				Help: "NFS requests currently being processed by procedure and share",
			},
			[]string{"procedure", "share"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsv3d_bytes_transferred_total",
				Help: "Bytes transferred by procedure, share, and direction",
			},
			[]string{"procedure", "share", "direction"},
		),
		operationSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfsv3d_operation_size_bytes",
				Help: "Distribution of READ/WRITE operation sizes",
				Buckets: []float64{
					4096, 32768, 131072, 524288, 1048576, 4194304, 10485760,
				},
			},
			[]string{"operation", "share"},
		),
		activeConns: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfsv3d_active_connections",
				Help: "Current number of accepted TCP connections",
			},
		),
		connsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfsv3d_connections_accepted_total",
				Help: "Total TCP connections accepted",
			},
		),
		connsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfsv3d_connections_closed_total",
				Help: "Total TCP connections closed normally",
			},
		),
		connsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfsv3d_connections_force_closed_total",
				Help: "Total TCP connections force-closed after the shutdown grace period",
			},
		),
	}
}

func (m *nfsMetrics) RecordRequest(procedure, share string, duration time.Duration, errorCode string) {
	m.requests.WithLabelValues(procedure, share, errorCode).Inc()
	m.requestDuration.WithLabelValues(procedure, share).Observe(duration.Seconds())
}

func (m *nfsMetrics) RecordRequestStart(procedure, share string) {
	m.requestsInFlight.WithLabelValues(procedure, share).Inc()
}

func (m *nfsMetrics) RecordRequestEnd(procedure, share string) {
	m.requestsInFlight.WithLabelValues(procedure, share).Dec()
}

func (m *nfsMetrics) RecordBytesTransferred(procedure, share, direction string, bytes uint64) {
	m.bytesTransferred.WithLabelValues(procedure, share, direction).Add(float64(bytes))
}

func (m *nfsMetrics) RecordOperationSize(operation, share string, bytes uint64) {
	m.operationSize.WithLabelValues(operation, share).Observe(float64(bytes))
}

func (m *nfsMetrics) SetActiveConnections(count int32) {
	m.activeConns.Set(float64(count))
}

func (m *nfsMetrics) RecordConnectionAccepted() {
	m.connsAccepted.Inc()
}

func (m *nfsMetrics) RecordConnectionClosed() {
	m.connsClosed.Inc()
}

func (m *nfsMetrics) RecordConnectionForceClosed() {
	m.connsForceClosed.Inc()
}
