// Package config loads the daemon configuration from a YAML file, environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/status-led/internal/gpio"
)

// EnvPrefix prefixes environment overrides, e.g. STATUSLED_SERIAL_PORT.
const EnvPrefix = "STATUSLED"

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = EnvPrefix + "_CONFIG"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// SerialConfig describes the serial link.
type SerialConfig struct {
	Port        string        `mapstructure:"port" yaml:"port"`
	PCPort      string        `mapstructure:"pcPort" yaml:"pcPort"` // frame-sender side of the link
	BaudRate    int           `mapstructure:"baudRate" yaml:"baudRate"`
	DataBits    int           `mapstructure:"dataBits" yaml:"dataBits"`
	Parity      string        `mapstructure:"parity" yaml:"parity"`
	StopBits    string        `mapstructure:"stopBits" yaml:"stopBits"`
	ReadTimeout time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
}

// GPIOConfig selects the GPIO backend.
type GPIOConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Chip      string `mapstructure:"chip" yaml:"chip"`
	Numbering string `mapstructure:"numbering" yaml:"numbering"`
}

// NodePins are the node subsystem pins.
type NodePins struct {
	Norm int `mapstructure:"norm" yaml:"norm"`
	Err  int `mapstructure:"err" yaml:"err"`
	Sync int `mapstructure:"sync" yaml:"sync"`
}

// IndicatorPins are the network or storage subsystem pins.
type IndicatorPins struct {
	Norm int `mapstructure:"norm" yaml:"norm"`
	Err  int `mapstructure:"err" yaml:"err"`
	Rec  int `mapstructure:"rec" yaml:"rec"`
}

// PinMap holds all nine pins, numbered per GPIOConfig.Numbering.
type PinMap struct {
	Node    NodePins      `mapstructure:"node" yaml:"node"`
	Network IndicatorPins `mapstructure:"network" yaml:"network"`
	Storage IndicatorPins `mapstructure:"storage" yaml:"storage"`
}

// LEDConfig maps logical light/dark to physical levels.
type LEDConfig struct {
	LightHigh bool `mapstructure:"lightHigh" yaml:"lightHigh"`
	DarkHigh  bool `mapstructure:"darkHigh" yaml:"darkHigh"`
}

// HTTPConfig configures the status server. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// MQTTConfig configures event publishing. Empty Broker disables it.
type MQTTConfig struct {
	Broker      string        `mapstructure:"broker" yaml:"broker"`
	ClientID    string        `mapstructure:"clientID" yaml:"clientID"`
	TopicPrefix string        `mapstructure:"topicPrefix" yaml:"topicPrefix"`
	BufferSize  int           `mapstructure:"bufferSize" yaml:"bufferSize"`
	Heartbeat   time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// LumberjackConfig configures the rotating log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// Config is the complete daemon configuration.
type Config struct {
	Serial   SerialConfig  `mapstructure:"serial" yaml:"serial"`
	GPIO     GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	Pins     PinMap        `mapstructure:"pins" yaml:"pins"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	LED      LEDConfig     `mapstructure:"led" yaml:"led"`
	HTTP     HTTPConfig    `mapstructure:"http" yaml:"http"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	MQTT     MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Load reads configuration from path, or from $STATUSLED_CONFIG when path is
// empty, or from status-led.yaml in the working directory or /etc/status-led.
// A missing file is only an error when a path was given explicitly.
// The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/status-led")
		v.SetConfigName("status-led")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/serial0")
	v.SetDefault("serial.pcPort", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 115200)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.parity", "even")
	v.SetDefault("serial.stopBits", "1")
	v.SetDefault("serial.readTimeout", "500ms")

	v.SetDefault("gpio.driver", "cdev")
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.numbering", "board")

	v.SetDefault("pins.node.norm", 33)
	v.SetDefault("pins.node.err", 31)
	v.SetDefault("pins.node.sync", 29)
	v.SetDefault("pins.network.norm", 32)
	v.SetDefault("pins.network.err", 37)
	v.SetDefault("pins.network.rec", 35)
	v.SetDefault("pins.storage.norm", 40)
	v.SetDefault("pins.storage.err", 38)
	v.SetDefault("pins.storage.rec", 36)

	v.SetDefault("interval", "500ms")

	// LEDs on the reference board are wired active-low.
	v.SetDefault("led.lightHigh", false)
	v.SetDefault("led.darkHigh", true)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.clientID", "status-led")
	v.SetDefault("mqtt.topicPrefix", "status-led")
	v.SetDefault("mqtt.bufferSize", 100)
	v.SetDefault("mqtt.heartbeat", "15m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", true)
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
