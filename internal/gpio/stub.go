//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: character device not supported on this platform (requires Linux)")

// CdevDriver is not available on non-Linux platforms.
type CdevDriver struct{}

// NewCdevDriver returns an error on non-Linux platforms.
func NewCdevDriver(chipName string) (*CdevDriver, error) {
	return nil, errUnsupported
}

// Configure is not implemented on non-Linux platforms.
func (d *CdevDriver) Configure(pins []int, initial Level) error { return errUnsupported }

// Write is not implemented on non-Linux platforms.
func (d *CdevDriver) Write(pin int, level Level) error { return errUnsupported }

// Read is not implemented on non-Linux platforms.
func (d *CdevDriver) Read(pin int) (Level, error) { return Low, errUnsupported }

// Release is a no-op on non-Linux platforms.
func (d *CdevDriver) Release(pins []int) error { return nil }

// Close is a no-op on non-Linux platforms.
func (d *CdevDriver) Close() error { return nil }
