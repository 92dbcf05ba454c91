// Package metrics exposes decoder counters and subsystem state to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/status-led/internal/protocol"
	"github.com/sweeney/status-led/internal/state"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DecoderMetrics counts decoder events. It implements protocol.Observer.
type DecoderMetrics struct {
	Frames            *prometheus.CounterVec // labels: result=ok|checksum
	Discarded         prometheus.Counter
	UndefinedSegments *prometheus.CounterVec // labels: subsystem
	StateChanges      *prometheus.CounterVec // labels: subsystem
}

// NewDecoderMetrics registers and returns the decoder counters.
func NewDecoderMetrics(reg prometheus.Registerer) *DecoderMetrics {
	m := &DecoderMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusled_frames_total",
			Help: "Frames read from the serial link by result.",
		}, []string{"result"}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statusled_discarded_bytes_total",
			Help: "Bytes dropped while searching for a frame header.",
		}),
		UndefinedSegments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusled_undefined_segments_total",
			Help: "Control segments carrying a value with no defined state.",
		}, []string{"subsystem"}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusled_state_changes_total",
			Help: "Subsystem state transitions.",
		}, []string{"subsystem"}),
	}
	reg.MustRegister(m.Frames, m.Discarded, m.UndefinedSegments, m.StateChanges)
	return m
}

// Observe implements protocol.Observer.
func (m *DecoderMetrics) Observe(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventFrame:
		m.Frames.WithLabelValues("ok").Inc()
		for _, sub := range ev.Changed {
			m.StateChanges.WithLabelValues(string(sub)).Inc()
		}
	case protocol.EventChecksum:
		m.Frames.WithLabelValues("checksum").Inc()
	case protocol.EventDiscard:
		m.Discarded.Inc()
	case protocol.EventUndefinedSegment:
		m.UndefinedSegments.WithLabelValues(string(ev.Subsystem)).Inc()
	}
}

// StateReader is the read side of the subsystem store.
type StateReader interface {
	Snapshot() state.Snapshot
}

// RegisterState registers gauges reporting the current subsystem states as
// their numeric codes, plus the network error port.
func RegisterState(reg prometheus.Registerer, src StateReader) {
	gauge := func(name, help string, fn func(state.Snapshot) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return fn(src.Snapshot())
		})
	}
	reg.MustRegister(
		gauge("statusled_node_state", "Node state (0 normal, 1 sync, 2 error).",
			func(s state.Snapshot) float64 { return float64(s.Node) }),
		gauge("statusled_network_state", "Network state (0 normal, 1 recovering, 2 error).",
			func(s state.Snapshot) float64 { return float64(s.Network.Mode) }),
		gauge("statusled_network_error_port", "Port blinked while the network is in error, 0 otherwise.",
			func(s state.Snapshot) float64 {
				if s.Network.Mode != state.NetworkError {
					return 0
				}
				return float64(s.Network.Port)
			}),
		gauge("statusled_storage_state", "Storage state (0 normal, 1 recovering, 2 error).",
			func(s state.Snapshot) float64 { return float64(s.Storage) }),
	)
}
