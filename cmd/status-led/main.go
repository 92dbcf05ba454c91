// Command status-led decodes control frames from a serial link and drives the
// node, network and storage status LEDs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/config"
	"github.com/sweeney/status-led/internal/gpio"
	"github.com/sweeney/status-led/internal/logging"
	"github.com/sweeney/status-led/internal/mqtt"
	"github.com/sweeney/status-led/internal/serialport"
	"github.com/sweeney/status-led/internal/status"
)

func printConfig(w io.Writer, cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func main() {
	configPath := flag.String("config", "", "Config file (default $"+config.EnvConfigPath+", ./status-led.yaml, /etc/status-led/status-led.yaml)")
	printCfg := flag.Bool("print-config", false, "Print the effective configuration and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status-led: %v\n", err)
		os.Exit(2)
	}

	if *printCfg {
		if err := printConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "status-led: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status-led: init logging: %v\n", err)
		os.Exit(2)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, logger, sigCh); err != nil {
		logger.Error("fatal", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config, log *zap.Logger, sig <-chan os.Signal) error {
	drv, err := openDriver(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer drv.Close()

	port, err := serialport.Open(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	sessionID := uuid.NewString()
	d := newDaemon(cfg, log, drv, sessionID)

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			TopicPrefix:        cfg.MQTT.TopicPrefix,
			BufferSize:         cfg.MQTT.BufferSize,
			SessionID:          sessionID,
			Logger:             log,
			OnConnectionChange: d.tracker.SetMQTTConnected,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		d.pub = publisher
	}

	log.Info("started",
		zap.String("serial", cfg.Serial.Port),
		zap.Int("baud", cfg.Serial.BaudRate),
		zap.String("gpio", cfg.GPIO.Driver),
		zap.Duration("interval", cfg.Interval),
		zap.String("broker", cfg.MQTT.Broker),
		zap.String("session", sessionID))

	return d.serve(sig, port)
}

func openDriver(cfg config.GPIOConfig) (gpio.Driver, error) {
	switch cfg.Driver {
	case "periph":
		return gpio.NewPeriphDriver()
	default:
		return gpio.NewCdevDriver(cfg.Chip)
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		SerialPort: cfg.Serial.Port,
		BaudRate:   cfg.Serial.BaudRate,
		GPIODriver: cfg.GPIO.Driver,
		Interval:   cfg.Interval,
		Heartbeat:  cfg.MQTT.Heartbeat,
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
	}
}
