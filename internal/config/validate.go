package config

import (
	"fmt"
	"slices"

	"github.com/sweeney/status-led/internal/gpio"
)

var (
	validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}
	validParities  = []string{"none", "odd", "even", "mark", "space"}
	validStopBits  = []string{"1", "1.5", "2"}
	validDrivers   = []string{"cdev", "periph"}
	validNumbering = []string{"board", "bcm"}
	validLogLevels = []string{"debug", "info", "warn", "warning", "error"}
	validFormats   = []string{"console", "json"}
)

// maxBCM is the highest GPIO line on the 40-pin header SoCs.
const maxBCM = 27

// Validate checks the configuration. Every returned error wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return invalid("serial.port is empty")
	}
	if !slices.Contains(validBaudRates, c.Serial.BaudRate) {
		return invalid("serial.baudRate %d not supported", c.Serial.BaudRate)
	}
	if c.Serial.DataBits < 5 || c.Serial.DataBits > 8 {
		return invalid("serial.dataBits %d not in 5..8", c.Serial.DataBits)
	}
	if !slices.Contains(validParities, c.Serial.Parity) {
		return invalid("serial.parity %q not one of %v", c.Serial.Parity, validParities)
	}
	if !slices.Contains(validStopBits, c.Serial.StopBits) {
		return invalid("serial.stopBits %q not one of %v", c.Serial.StopBits, validStopBits)
	}
	if c.Serial.ReadTimeout <= 0 {
		return invalid("serial.readTimeout must be positive")
	}

	if !slices.Contains(validDrivers, c.GPIO.Driver) {
		return invalid("gpio.driver %q not one of %v", c.GPIO.Driver, validDrivers)
	}
	if c.GPIO.Driver == "cdev" && c.GPIO.Chip == "" {
		return invalid("gpio.chip is empty")
	}
	if !slices.Contains(validNumbering, c.GPIO.Numbering) {
		return invalid("gpio.numbering %q not one of %v", c.GPIO.Numbering, validNumbering)
	}

	if c.Interval <= 0 {
		return invalid("interval must be positive")
	}
	if c.LED.LightHigh == c.LED.DarkHigh {
		return invalid("led.lightHigh and led.darkHigh must differ")
	}

	if err := c.validatePins(); err != nil {
		return err
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.ClientID == "" {
			return invalid("mqtt.clientID is empty")
		}
		if c.MQTT.BufferSize <= 0 {
			return invalid("mqtt.bufferSize must be positive")
		}
	}
	if c.Metrics.Enable && c.Metrics.Path == "" {
		return invalid("metrics.path is empty")
	}

	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return invalid("logging.level %q not one of %v", c.Logging.Level, validLogLevels)
	}
	if !slices.Contains(validFormats, c.Logging.Format) {
		return invalid("logging.format %q not one of %v", c.Logging.Format, validFormats)
	}
	return nil
}

// namedPin pairs a config key with its pin number.
type namedPin struct {
	key string
	pin int
}

func (c *Config) namedPins() []namedPin {
	p := c.Pins
	return []namedPin{
		{"pins.node.norm", p.Node.Norm},
		{"pins.node.err", p.Node.Err},
		{"pins.node.sync", p.Node.Sync},
		{"pins.network.norm", p.Network.Norm},
		{"pins.network.err", p.Network.Err},
		{"pins.network.rec", p.Network.Rec},
		{"pins.storage.norm", p.Storage.Norm},
		{"pins.storage.err", p.Storage.Err},
		{"pins.storage.rec", p.Storage.Rec},
	}
}

func (c *Config) validatePins() error {
	seen := make(map[int]string)
	for _, np := range c.namedPins() {
		line, err := c.ResolvePin(np.pin)
		if err != nil {
			return invalid("%s: %v", np.key, err)
		}
		if other, dup := seen[line]; dup {
			return invalid("%s and %s use the same GPIO line %d", other, np.key, line)
		}
		seen[line] = np.key
	}
	return nil
}

// ResolvePin converts a configured pin number to a BCM line offset.
func (c *Config) ResolvePin(pin int) (int, error) {
	if c.GPIO.Numbering == "board" {
		return gpio.BoardToBCM(pin)
	}
	if pin < 0 || pin > maxBCM {
		return 0, fmt.Errorf("GPIO%d out of range 0..%d", pin, maxBCM)
	}
	return pin, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
