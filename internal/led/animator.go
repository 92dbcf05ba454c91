// Package led renders subsystem states as LED patterns. Each Animator owns
// three output pins and polls its subsystem's state once per loop iteration,
// reading the pins back first so steady states cause no redundant writes.
//
// Pins must already be configured as outputs at the dark level when Run is
// called.
package led

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/gpio"
	"github.com/sweeney/status-led/internal/protocol"
)

// Blink timings. They are fixed and independent of the polling interval.
const (
	// BlinkPeriod is the lit and the dark time of the sync/recovering blink.
	BlinkPeriod = 500 * time.Millisecond
	// PortBlinkPeriod is the lit and the dark time of each network error-port blink.
	PortBlinkPeriod = 200 * time.Millisecond
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 500 * time.Millisecond

// PinDriver is the subset of gpio.Driver an animator uses.
type PinDriver interface {
	Write(pin int, level gpio.Level) error
	Read(pin int) (gpio.Level, error)
}

// Pins are the three pins of one subsystem. Aux is the sync pin for the node
// and the recovering pin for network and storage.
type Pins struct {
	Norm int
	Err  int
	Aux  int
}

// List returns the pins in norm, err, aux order.
func (p Pins) List() []int {
	return []int{p.Norm, p.Err, p.Aux}
}

// Config holds per-animator settings.
type Config struct {
	Pins     Pins
	Interval time.Duration
	Polarity gpio.Polarity
}

// Animator continuously drives one subsystem's pins.
type Animator struct {
	name  string
	drv   PinDriver
	cfg   Config
	sleep protocol.Sleeper
	log   *zap.Logger

	step func(ctx context.Context) error
	last string
}

// Option configures an Animator.
type Option func(*Animator)

// WithSleeper replaces the sleep function, for tests.
func WithSleeper(s protocol.Sleeper) Option {
	return func(a *Animator) { a.sleep = s }
}

// WithLogger sets the logger. The animator names it after its subsystem.
func WithLogger(l *zap.Logger) Option {
	return func(a *Animator) { a.log = l }
}

func newAnimator(name string, drv PinDriver, cfg Config, opts []Option) *Animator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	a := &Animator{
		name:  name,
		drv:   drv,
		cfg:   cfg,
		sleep: protocol.Sleep,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	a.log = a.log.Named("led." + name)
	return a
}

// Name returns the subsystem name.
func (a *Animator) Name() string { return a.name }

// Pins returns the animator's pins.
func (a *Animator) Pins() []int { return a.cfg.Pins.List() }

// Run animates until ctx is cancelled, returning nil, or until a pin
// operation fails, returning that error.
func (a *Animator) Run(ctx context.Context) error {
	a.log.Info("animator started",
		zap.Int("norm", a.cfg.Pins.Norm),
		zap.Int("err", a.cfg.Pins.Err),
		zap.Int("aux", a.cfg.Pins.Aux),
		zap.Duration("interval", a.cfg.Interval))

	for ctx.Err() == nil {
		if err := a.step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("%s animator: %w", a.name, err)
		}
	}
	a.log.Info("animator stopped")
	return nil
}

// observe logs each state the animator starts rendering and reports whether
// s differs from the previous iteration.
func (a *Animator) observe(s fmt.Stringer) bool {
	cur := s.String()
	if cur == a.last {
		return false
	}
	a.log.Debug("rendering state", zap.String("from", a.last), zap.String("to", cur))
	a.last = cur
	return true
}

func (a *Animator) lit(pin int) (bool, error) {
	level, err := a.drv.Read(pin)
	if err != nil {
		return false, err
	}
	return level == a.cfg.Polarity.Light, nil
}

func (a *Animator) light(pin int) error {
	return a.drv.Write(pin, a.cfg.Polarity.Light)
}

func (a *Animator) darken(pin int) error {
	return a.drv.Write(pin, a.cfg.Polarity.Dark)
}

// blink lights pin for period, then darkens it for period.
func (a *Animator) blink(ctx context.Context, pin int, period time.Duration) error {
	if err := a.light(pin); err != nil {
		return err
	}
	if err := a.sleep(ctx, period); err != nil {
		// Leave the LED dark on the way out.
		if derr := a.darken(pin); derr != nil {
			a.log.Debug("darken on cancel", zap.Int("pin", pin), zap.Error(derr))
		}
		return err
	}
	if err := a.darken(pin); err != nil {
		return err
	}
	return a.sleep(ctx, period)
}

func (a *Animator) idle(ctx context.Context) error {
	return a.sleep(ctx, a.cfg.Interval)
}
