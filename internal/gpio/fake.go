package gpio

import (
	"fmt"

	"github.com/sweeney/status-led/internal/syncutil"
)

// PinWrite is one recorded pin write.
type PinWrite struct {
	Pin   int
	Level Level
}

// FakeDriver is an in-memory Driver for tests. It is safe for concurrent use.
type FakeDriver struct {
	mu syncutil.Mutex

	levels   map[int]Level
	released map[int]bool
	writes   []PinWrite
	closed   bool

	writeErr error

	// ConfigureError, if set, is returned by Configure for this pin.
	ConfigureError map[int]error
}

// NewFakeDriver creates an empty FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		levels:   make(map[int]Level),
		released: make(map[int]bool),
	}
}

// Configure claims pins at the initial level. Pins configured by this call
// are released again if any pin fails.
func (f *FakeDriver) Configure(pins []int, initial Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var claimed []int
	for _, pin := range pins {
		if _, ok := f.levels[pin]; ok {
			f.releaseLocked(claimed)
			return fmt.Errorf("pin %d already configured", pin)
		}
		if err := f.ConfigureError[pin]; err != nil {
			f.releaseLocked(claimed)
			return err
		}
		f.levels[pin] = initial
		delete(f.released, pin)
		claimed = append(claimed, pin)
	}
	return nil
}

// Write records the write and updates the pin level.
func (f *FakeDriver) Write(pin int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.levels[pin]; !ok {
		return fmt.Errorf("pin %d not configured", pin)
	}
	f.levels[pin] = level
	f.writes = append(f.writes, PinWrite{Pin: pin, Level: level})
	return nil
}

// Read returns the pin level.
func (f *FakeDriver) Read(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	level, ok := f.levels[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d not configured", pin)
	}
	return level, nil
}

// Release marks pins as released.
func (f *FakeDriver) Release(pins []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseLocked(pins)
	return nil
}

// Close releases all pins and marks the driver closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pin := range f.levels {
		f.released[pin] = true
	}
	f.levels = make(map[int]Level)
	f.closed = true
	return nil
}

func (f *FakeDriver) releaseLocked(pins []int) {
	for _, pin := range pins {
		if _, ok := f.levels[pin]; !ok {
			continue
		}
		delete(f.levels, pin)
		f.released[pin] = true
	}
}

// SetWriteError makes subsequent writes fail with err (nil clears it).
func (f *FakeDriver) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Level returns the current level of pin and whether it is configured.
func (f *FakeDriver) Level(pin int) (Level, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[pin]
	return l, ok
}

// Configured reports whether pin is currently claimed.
func (f *FakeDriver) Configured(pin int) bool {
	_, ok := f.Level(pin)
	return ok
}

// Released reports whether pin was claimed and then released.
func (f *FakeDriver) Released(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[pin]
}

// Closed reports whether Close was called.
func (f *FakeDriver) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Writes returns a copy of every recorded write, in order.
func (f *FakeDriver) Writes() []PinWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PinWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesTo returns the levels written to pin, in order.
func (f *FakeDriver) WritesTo(pin int) []Level {
	var out []Level
	for _, w := range f.Writes() {
		if w.Pin == pin {
			out = append(out, w.Level)
		}
	}
	return out
}

// Reset clears recorded writes.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}
