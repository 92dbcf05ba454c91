//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevDriver drives pins through the Linux GPIO character device.
// Write and Read may be called concurrently for different pins; Configure,
// Release and Close must not overlap with them.
type CdevDriver struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewCdevDriver opens the named GPIO chip (e.g. "gpiochip0").
func NewCdevDriver(chipName string) (*CdevDriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &CdevDriver{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Configure requests each pin as an output at the initial level.
func (d *CdevDriver) Configure(pins []int, initial Level) error {
	var claimed []int
	for _, pin := range pins {
		if _, ok := d.lines[pin]; ok {
			d.Release(claimed)
			return fmt.Errorf("pin %d already configured", pin)
		}
		line, err := d.chip.RequestLine(pin, gpiocdev.AsOutput(levelValue(initial)))
		if err != nil {
			d.Release(claimed)
			return fmt.Errorf("request pin %d: %w", pin, err)
		}
		d.lines[pin] = line
		claimed = append(claimed, pin)
	}
	return nil
}

// Write sets the line value.
func (d *CdevDriver) Write(pin int, level Level) error {
	line, ok := d.lines[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured", pin)
	}
	if err := line.SetValue(levelValue(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read returns the line value. For an output line this is the driven level.
func (d *CdevDriver) Read(pin int) (Level, error) {
	line, ok := d.lines[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d not configured", pin)
	}
	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Release reconfigures pins as inputs with pull-down (matching Pi boot
// defaults) and closes them, so the LEDs are not left driven after exit.
func (d *CdevDriver) Release(pins []int) error {
	var errs []error
	for _, pin := range pins {
		line, ok := d.lines[pin]
		if !ok {
			continue
		}
		delete(d.lines, pin)
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

// Close releases all claimed pins and closes the chip.
func (d *CdevDriver) Close() error {
	var errs []error
	if err := d.Release(d.claimed()); err != nil {
		errs = append(errs, err)
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		d.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (d *CdevDriver) claimed() []int {
	pins := make([]int, 0, len(d.lines))
	for pin := range d.lines {
		pins = append(pins, pin)
	}
	return pins
}

func levelValue(l Level) int {
	if l {
		return 1
	}
	return 0
}
