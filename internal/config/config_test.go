package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "status-led.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsMatchReferenceBoard(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "/dev/serial0", cfg.Serial.Port)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.PCPort)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Serial.DataBits)
	assert.Equal(t, "even", cfg.Serial.Parity)
	assert.Equal(t, "1", cfg.Serial.StopBits)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.ReadTimeout)

	assert.Equal(t, NodePins{Norm: 33, Err: 31, Sync: 29}, cfg.Pins.Node)
	assert.Equal(t, IndicatorPins{Norm: 32, Err: 37, Rec: 35}, cfg.Pins.Network)
	assert.Equal(t, IndicatorPins{Norm: 40, Err: 38, Rec: 36}, cfg.Pins.Storage)

	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.False(t, cfg.LED.LightHigh)
	assert.True(t, cfg.LED.DarkHigh)

	assert.Equal(t, "cdev", cfg.GPIO.Driver)
	assert.Equal(t, "board", cfg.GPIO.Numbering)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, 15*time.Minute, cfg.MQTT.Heartbeat)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
serial:
  port: /dev/ttyAMA0
  parity: odd
  stopBits: 1.5
gpio:
  driver: periph
  numbering: bcm
pins:
  node: {norm: 13, err: 6, sync: 5}
  network: {norm: 12, err: 26, rec: 19}
  storage: {norm: 21, err: 20, rec: 16}
interval: 250ms
led:
  lightHigh: true
  darkHigh: false
mqtt:
  broker: tcp://localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Port)
	assert.Equal(t, "odd", cfg.Serial.Parity)
	assert.Equal(t, "1.5", cfg.Serial.StopBits)
	assert.Equal(t, 115200, cfg.Serial.BaudRate, "unset keys keep defaults")
	assert.Equal(t, "periph", cfg.GPIO.Driver)
	assert.Equal(t, 13, cfg.Pins.Node.Norm)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.LED.LightHigh)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
}

func TestLoadPathFromEnv(t *testing.T) {
	path := writeFile(t, "serial:\n  port: /dev/ttyS1\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Port)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("STATUSLED_SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("STATUSLED_INTERVAL", "1s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, time.Second, cfg.Interval)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "pins:\n  node: {norm: 1}\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "pins.node.norm")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty port", func(c *Config) { c.Serial.Port = "" }, "serial.port"},
		{"bad baud", func(c *Config) { c.Serial.BaudRate = 1234 }, "serial.baudRate"},
		{"bad data bits", func(c *Config) { c.Serial.DataBits = 9 }, "serial.dataBits"},
		{"bad parity", func(c *Config) { c.Serial.Parity = "sometimes" }, "serial.parity"},
		{"bad stop bits", func(c *Config) { c.Serial.StopBits = "3" }, "serial.stopBits"},
		{"zero read timeout", func(c *Config) { c.Serial.ReadTimeout = 0 }, "serial.readTimeout"},
		{"bad driver", func(c *Config) { c.GPIO.Driver = "sysfs" }, "gpio.driver"},
		{"empty chip", func(c *Config) { c.GPIO.Chip = "" }, "gpio.chip"},
		{"bad numbering", func(c *Config) { c.GPIO.Numbering = "wiringpi" }, "gpio.numbering"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"same levels", func(c *Config) { c.LED.LightHigh = true }, "led.lightHigh"},
		{"missing pin", func(c *Config) { c.Pins.Storage.Rec = 0 }, "pins.storage.rec"},
		{"power pin", func(c *Config) { c.Pins.Network.Err = 2 }, "pins.network.err"},
		{"duplicate pin", func(c *Config) { c.Pins.Storage.Norm = 33 }, "same GPIO line"},
		{"bcm out of range", func(c *Config) {
			c.GPIO.Numbering = "bcm"
			c.Pins = PinMap{
				Node:    NodePins{Norm: 13, Err: 6, Sync: 5},
				Network: IndicatorPins{Norm: 12, Err: 26, Rec: 19},
				Storage: IndicatorPins{Norm: 21, Err: 20, Rec: 40},
			}
		}, "pins.storage.rec"},
		{"mqtt buffer", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.BufferSize = 0 }, "mqtt.bufferSize"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "" }, "metrics.path"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolvePin(t *testing.T) {
	cfg := defaults(t)

	line, err := cfg.ResolvePin(33)
	require.NoError(t, err)
	assert.Equal(t, 13, line)

	cfg.GPIO.Numbering = "bcm"
	line, err = cfg.ResolvePin(33)
	assert.Error(t, err)
	line, err = cfg.ResolvePin(13)
	require.NoError(t, err)
	assert.Equal(t, 13, line)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := defaults(t)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "port: /dev/serial0")
	assert.Contains(t, string(out), "interval: 500ms")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Contains(t, back, "pins")
}
