package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphDriver drives pins through periph.io, which talks to the SoC
// registers directly where supported and falls back to sysfs otherwise.
// Write and Read may be called concurrently for different pins; Configure,
// Release and Close must not overlap with them.
type PeriphDriver struct {
	pins map[int]pgpio.PinIO
}

// NewPeriphDriver initialises the periph host drivers.
func NewPeriphDriver() (*PeriphDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return &PeriphDriver{pins: make(map[int]pgpio.PinIO)}, nil
}

// Configure looks pins up by BCM name (GPIO<n>) and drives them to initial.
func (d *PeriphDriver) Configure(pins []int, initial Level) error {
	var claimed []int
	for _, pin := range pins {
		if _, ok := d.pins[pin]; ok {
			d.Release(claimed)
			return fmt.Errorf("pin %d already configured", pin)
		}
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
		if p == nil {
			d.Release(claimed)
			return fmt.Errorf("pin GPIO%d not found", pin)
		}
		if err := p.Out(periphLevel(initial)); err != nil {
			d.Release(claimed)
			return fmt.Errorf("configure pin %d: %w", pin, err)
		}
		d.pins[pin] = p
		claimed = append(claimed, pin)
	}
	return nil
}

// Write drives the pin.
func (d *PeriphDriver) Write(pin int, level Level) error {
	p, ok := d.pins[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured", pin)
	}
	if err := p.Out(periphLevel(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read samples the pin level.
func (d *PeriphDriver) Read(pin int) (Level, error) {
	p, ok := d.pins[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d not configured", pin)
	}
	return Level(p.Read()), nil
}

// Release returns pins to inputs with pull-down.
func (d *PeriphDriver) Release(pins []int) error {
	var errs []error
	for _, pin := range pins {
		p, ok := d.pins[pin]
		if !ok {
			continue
		}
		delete(d.pins, pin)
		if err := p.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", pin, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

// Close releases every claimed pin.
func (d *PeriphDriver) Close() error {
	pins := make([]int, 0, len(d.pins))
	for pin := range d.pins {
		pins = append(pins, pin)
	}
	return d.Release(pins)
}

func periphLevel(l Level) pgpio.Level {
	if l {
		return pgpio.High
	}
	return pgpio.Low
}
