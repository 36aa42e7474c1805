// Package metrics exposes sync engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exported constants.
const (
	Namespace = "peersync"
)

// Recorder implements syncengine.MetricsRecorder on a Prometheus registry.
type Recorder struct {
	bytesTransferred  *prometheus.CounterVec
	transfersStarted  *prometheus.CounterVec
	transfersFinished *prometheus.CounterVec
	activeTransfers   *prometheus.GaugeVec
	protocolErrors    prometheus.Counter
	connectedPeers    prometheus.Gauge
}

// NewRecorder registers the sync metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "bytes_transferred_total",
				Help:      "File bytes moved over data channels",
			},
			[]string{"direction"},
		),
		transfersStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfers_started_total",
				Help:      "File transfers started",
			},
			[]string{"direction"},
		),
		transfersFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfers_finished_total",
				Help:      "File transfers finished, by result",
			},
			[]string{"direction", "result"},
		),
		activeTransfers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_transfers",
				Help:      "File transfers in progress",
			},
			[]string{"direction"},
		),
		protocolErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "protocol_errors_total",
				Help:      "Malformed or unexpected messages dropped",
			},
		),
		connectedPeers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "connected_peers",
				Help:      "Peers with an open data channel",
			},
		),
	}
}

// Handler returns the HTTP handler serving reg's metrics.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// BytesTransferred records n file bytes sent or received.
func (r *Recorder) BytesTransferred(direction string, n int) {
	r.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// PeerConnected records a peer reaching Connected.
func (r *Recorder) PeerConnected() {
	r.connectedPeers.Inc()
}

// PeerDisconnected records a connected peer going away.
func (r *Recorder) PeerDisconnected() {
	r.connectedPeers.Dec()
}

// ProtocolError records a dropped message.
func (r *Recorder) ProtocolError() {
	r.protocolErrors.Inc()
}

// TransferFinished records the end of a transfer: ok, failed, aborted or stalled.
func (r *Recorder) TransferFinished(direction, result string) {
	r.transfersFinished.WithLabelValues(direction, result).Inc()
	r.activeTransfers.WithLabelValues(direction).Dec()
}

// TransferStarted records a transfer that began sending or receiving.
func (r *Recorder) TransferStarted(direction string) {
	r.transfersStarted.WithLabelValues(direction).Inc()
	r.activeTransfers.WithLabelValues(direction).Inc()
}
