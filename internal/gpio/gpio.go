// Package gpio drives LED output pins with hardware abstraction.
// The cdev implementation uses the Linux GPIO character device, the periph
// implementation uses periph.io, and the fake allows testing without hardware.
//
// Pin numbers passed to a Driver are BCM line offsets. Use BoardToBCM to
// translate physical header positions.
package gpio

import "fmt"

// Level is a physical pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Driver configures, drives and releases output pins.
type Driver interface {
	// Configure claims pins as outputs driven to initial. If any pin cannot be
	// claimed, the pins claimed by this call are released again.
	Configure(pins []int, initial Level) error

	// Write sets the level of a configured pin.
	Write(pin int, level Level) error

	// Read returns the current level of a configured pin.
	Read(pin int) (Level, error)

	// Release returns pins to an unclaimed input state. Unknown pins are ignored.
	Release(pins []int) error

	// Close releases every pin still claimed and frees the driver.
	Close() error
}

// Polarity maps logical LED states to physical levels, for LEDs wired either
// active-high or active-low.
type Polarity struct {
	Light Level
	Dark  Level
}

// NewPolarity builds a Polarity from the configured voltage flags.
func NewPolarity(lightHigh, darkHigh bool) (Polarity, error) {
	if lightHigh == darkHigh {
		return Polarity{}, fmt.Errorf("gpio: light and dark both map to %v", Level(lightHigh))
	}
	return Polarity{Light: Level(lightHigh), Dark: Level(darkHigh)}, nil
}

// Default GPIO character device.
const DefaultChip = "gpiochip0"

// Consumer is the label attached to claimed lines.
const Consumer = "status-led"
