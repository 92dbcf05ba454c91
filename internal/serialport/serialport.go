// Package serialport opens the UART the control frames arrive on.
package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/sweeney/status-led/internal/config"
)

// Mode converts the serial configuration to a port mode.
func Mode(cfg config.SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	switch cfg.Parity {
	case "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unknown parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unknown stop bits %q", cfg.StopBits)
	}
	return mode, nil
}

// Open opens the configured port with its read timeout applied, so a quiet
// line returns (0, nil) from Read instead of blocking forever.
func Open(cfg config.SerialConfig) (serial.Port, error) {
	mode, err := Mode(cfg)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}
