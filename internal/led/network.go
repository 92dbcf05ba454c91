package led

import (
	"context"

	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/state"
)

// NetworkSource provides the current network state.
type NetworkSource interface {
	Network() state.Network
}

// NewNetwork returns the network animator. Aux is the recovering pin. In the
// error state the err LED blinks once per failed port number.
func NewNetwork(drv PinDriver, cfg Config, src NetworkSource, opts ...Option) *Animator {
	a := newAnimator("network", drv, cfg, opts)
	a.step = func(ctx context.Context) error {
		n := src.Network()
		if a.observe(n) && n.Mode == state.NetworkError && !n.ValidPort() {
			a.log.Warn("network error without a valid port", zap.Int("port", n.Port))
		}
		return a.stepNetwork(ctx, n)
	}
	return a
}

func (a *Animator) stepNetwork(ctx context.Context, n state.Network) error {
	p := a.cfg.Pins
	normLit, err := a.lit(p.Norm)
	if err != nil {
		return err
	}

	switch n.Mode {
	case state.NetworkNormal:
		if !normLit {
			if err := a.light(p.Norm); err != nil {
				return err
			}
		}
		return a.idle(ctx)

	case state.NetworkError:
		if normLit {
			if err := a.darken(p.Norm); err != nil {
				return err
			}
		}
		if !n.ValidPort() {
			// No blink pattern exists for this port; still wait out the
			// interval so the loop cannot spin.
			return a.idle(ctx)
		}
		for i := 0; i < n.Port; i++ {
			if err := a.blink(ctx, p.Err, PortBlinkPeriod); err != nil {
				return err
			}
		}
		return a.idle(ctx)

	case state.NetworkRecovering:
		if normLit {
			if err := a.darken(p.Norm); err != nil {
				return err
			}
		}
		return a.blink(ctx, p.Aux, BlinkPeriod)
	}

	return a.idle(ctx)
}
