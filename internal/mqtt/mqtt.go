// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/status-led/internal/state"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "status-led"

// EventsTopic is the topic for subsystem state changes under prefix.
func EventsTopic(prefix string) string {
	return topicPrefix(prefix) + "/events"
}

// SystemTopic is the topic for lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return topicPrefix(prefix) + "/system"
}

func topicPrefix(prefix string) string {
	if prefix == "" {
		return DefaultTopicPrefix
	}
	return prefix
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishChange sends a subsystem state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishChange(event ChangeEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ChangeEvent is one subsystem entering a new state.
type ChangeEvent struct {
	Timestamp time.Time
	Subsystem state.Subsystem
	State     string
	Port      int // network ERROR only
}

// ChangesFrom builds one ChangeEvent per changed subsystem from snap.
func ChangesFrom(snap state.Snapshot, changed []state.Subsystem, ts time.Time) []ChangeEvent {
	events := make([]ChangeEvent, 0, len(changed))
	for _, sub := range changed {
		ev := ChangeEvent{Timestamp: ts, Subsystem: sub}
		switch sub {
		case state.SubsystemNode:
			ev.State = snap.Node.String()
		case state.SubsystemStorage:
			ev.State = snap.Storage.String()
		case state.SubsystemNetwork:
			ev.State = snap.Network.Mode.String()
			if snap.Network.Mode == state.NetworkError {
				ev.Port = snap.Network.Port
			}
		default:
			continue
		}
		events = append(events, ev)
	}
	return events
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ChangePayload is the MQTT message payload for a state change.
type ChangePayload struct {
	Subsystem string `json:"subsystem"`
	State     string `json:"state"`
	Port      int    `json:"port,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FormatChangePayload creates the JSON payload for a state change.
func FormatChangePayload(event ChangeEvent) ([]byte, error) {
	return json.Marshal(ChangePayload{
		Subsystem: string(event.Subsystem),
		State:     event.State,
		Port:      event.Port,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return formatSystemPayload(event, "")
}

func formatSystemPayload(event SystemEvent, sessionID string) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			SessionID: sessionID,
		},
	}
	return json.Marshal(payload)
}
