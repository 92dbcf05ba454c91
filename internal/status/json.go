package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Node          string      `json:"node"`
	Network       NetworkJSON `json:"network"`
	Storage       string      `json:"storage"`
	SessionID     string      `json:"session_id"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	LastFrame     string      `json:"last_frame,omitempty"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Decoder       DecoderJSON `json:"decoder"`
	Config        ConfigJSON  `json:"config"`
}

// NetworkJSON is the network subsystem state. Port is set only in ERROR.
type NetworkJSON struct {
	State string `json:"state"`
	Port  int    `json:"port,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DecoderJSON is the JSON representation of decoder counters.
type DecoderJSON struct {
	Bytes             uint64 `json:"bytes"`
	Frames            uint64 `json:"frames"`
	Discarded         uint64 `json:"discarded"`
	ChecksumErrors    uint64 `json:"checksum_errors"`
	UndefinedSegments uint64 `json:"undefined_segments"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SerialPort  string `json:"serial_port"`
	BaudRate    int    `json:"baud_rate"`
	GPIODriver  string `json:"gpio_driver"`
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	network := NetworkJSON{State: snap.State.Network.Mode.String()}
	if network.State == "ERROR" {
		network.Port = snap.State.Network.Port
	}

	inner := StatusInner{
		Node:          snap.State.Node.String(),
		Network:       network,
		Storage:       snap.State.Storage.String(),
		SessionID:     snap.SessionID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Decoder: DecoderJSON{
			Bytes:             snap.Decoder.Bytes,
			Frames:            snap.Decoder.Frames,
			Discarded:         snap.Decoder.Discarded,
			ChecksumErrors:    snap.Decoder.ChecksumErrors,
			UndefinedSegments: snap.Decoder.UndefinedSegments,
		},
		Config: ConfigJSON{
			SerialPort:  snap.Config.SerialPort,
			BaudRate:    snap.Config.BaudRate,
			GPIODriver:  snap.Config.GPIODriver,
			IntervalMs:  snap.Config.Interval.Milliseconds(),
			HeartbeatMs: snap.Config.Heartbeat.Milliseconds(),
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastFrame.IsZero() {
		inner.LastFrame = snap.LastFrame.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
