// Package status provides a thread-safe status tracker for the status-led
// daemon. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"time"

	"github.com/sweeney/status-led/internal/protocol"
	"github.com/sweeney/status-led/internal/state"
	"github.com/sweeney/status-led/internal/syncutil"
)

// Config contains daemon configuration for display.
type Config struct {
	SerialPort string
	BaudRate   int
	GPIODriver string
	Interval   time.Duration
	Heartbeat  time.Duration
	Broker     string
	HTTPAddr   string
}

// StateSource reports the current subsystem states.
type StateSource interface {
	Snapshot() state.Snapshot
}

// StatsSource reports decoder counters.
type StatsSource interface {
	Stats() protocol.Stats
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         state.Snapshot
	Decoder       protocol.Stats
	SessionID     string
	StartTime     time.Time
	Now           time.Time
	LastFrame     time.Time // zero until the first valid frame
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. Subsystem states and
// decoder counters are read live from their sources.
type Tracker struct {
	mu        syncutil.RWMutex
	start     time.Time
	sessionID string
	cfg       Config
	states    StateSource
	stats     StatsSource

	mqttConnected bool
	lastFrame     time.Time

	now func() time.Time
}

// NewTracker creates a Tracker. stats may be nil until a decoder exists; see
// SetStatsSource.
func NewTracker(startTime time.Time, sessionID string, cfg Config, states StateSource, stats StatsSource) *Tracker {
	return &Tracker{
		start:     startTime,
		sessionID: sessionID,
		cfg:       cfg,
		states:    states,
		stats:     stats,
		now:       time.Now,
	}
}

// SetStatsSource replaces the decoder counter source.
func (t *Tracker) SetStatsSource(stats StatsSource) {
	t.mu.Lock()
	t.stats = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqttConnected = connected
	t.mu.Unlock()
}

// Observe records the arrival time of valid frames. It implements
// protocol.Observer.
func (t *Tracker) Observe(ev protocol.Event) {
	if ev.Kind != protocol.EventFrame {
		return
	}
	now := t.now()
	t.mu.Lock()
	t.lastFrame = now
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		SessionID:     t.sessionID,
		StartTime:     t.start,
		LastFrame:     t.lastFrame,
		MQTTConnected: t.mqttConnected,
		Config:        t.cfg,
	}
	stats := t.stats
	t.mu.RUnlock()

	if t.states != nil {
		s.State = t.states.Snapshot()
	}
	if stats != nil {
		s.Decoder = stats.Stats()
	}
	s.Now = t.now()
	return s
}
