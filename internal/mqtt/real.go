package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/syncutil"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // ms
	reconnectInterval = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
	SessionID   string
	Logger      *zap.Logger
	// OnConnectionChange, if set, is called with true on every (re)connect
	// and false on connection loss.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are kept in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	eventsTopic string
	systemTopic string
	sessionID   string
	log         *zap.Logger
	onChange    func(bool)

	mu        syncutil.Mutex
	buf       *ringBuffer
	connected bool
	connects  int
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background. It does not wait for the broker.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: empty broker")
	}
	p := newPublisher(opts)

	will, err := formatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	}, opts.SessionID)
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval).
		SetMaxReconnectInterval(time.Minute).
		SetBinaryWill(p.systemTopic, will, 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()
	p.log.Info("connecting", zap.String("broker", opts.Broker))
	return p, nil
}

func newPublisher(opts Options) *RealPublisher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &RealPublisher{
		eventsTopic: EventsTopic(opts.TopicPrefix),
		systemTopic: SystemTopic(opts.TopicPrefix),
		sessionID:   opts.SessionID,
		log:         log.Named("mqtt"),
		onChange:    opts.OnConnectionChange,
		buf:         newRingBuffer(opts.BufferSize),
	}
}

// PublishChange sends a subsystem state change to the MQTT broker.
func (p *RealPublisher) PublishChange(event ChangeEvent) error {
	payload, err := FormatChangePayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.eventsTopic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := formatSystemPayload(event, p.sessionID)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	pending := p.buf.len()
	p.mu.Unlock()
	if pending > 0 {
		p.log.Warn("closing with buffered messages", zap.Int("count", pending))
	}
	p.client.Disconnect(disconnectQuiesce)
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		first := p.buf.push(msg)
		p.mu.Unlock()
		if first {
			p.log.Warn("buffer full, dropping oldest", zap.Int("capacity", p.buf.capacity))
		}
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on paho's goroutine after every successful connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info("connected", zap.Bool("reconnect", reconnect), zap.Int("replay", len(pending)))
	if p.onChange != nil {
		p.onChange(true)
	}

	for _, msg := range pending {
		// Replayed without waiting; paho queues them on the connection.
		c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
	if reconnect {
		payload, err := formatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}, p.sessionID)
		if err == nil {
			c.Publish(p.systemTopic, 1, false, payload)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.log.Warn("connection lost", zap.Error(err))
	if p.onChange != nil {
		p.onChange(false)
	}
}
