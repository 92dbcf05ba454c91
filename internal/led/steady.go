package led

import (
	"context"

	"github.com/sweeney/status-led/internal/state"
)

// NodeSource provides the current node state.
type NodeSource interface {
	Node() state.Node
}

// StorageSource provides the current storage state.
type StorageSource interface {
	Storage() state.Storage
}

// steadyMode is the rendering of the node and storage subsystems, which share
// one pattern: a steady norm or err LED, or a blinking aux LED.
type steadyMode int

const (
	steadyUnknown steadyMode = iota
	steadyNormal
	steadyError
	steadyBlink
)

// NewNode returns the node animator. Aux is the sync pin.
func NewNode(drv PinDriver, cfg Config, src NodeSource, opts ...Option) *Animator {
	a := newAnimator("node", drv, cfg, opts)
	a.step = func(ctx context.Context) error {
		s := src.Node()
		a.observe(s)
		var m steadyMode
		switch s {
		case state.NodeNormal:
			m = steadyNormal
		case state.NodeError:
			m = steadyError
		case state.NodeSync:
			m = steadyBlink
		}
		return a.stepSteady(ctx, m)
	}
	return a
}

// NewStorage returns the storage animator. Aux is the recovering pin.
func NewStorage(drv PinDriver, cfg Config, src StorageSource, opts ...Option) *Animator {
	a := newAnimator("storage", drv, cfg, opts)
	a.step = func(ctx context.Context) error {
		s := src.Storage()
		a.observe(s)
		var m steadyMode
		switch s {
		case state.StorageNormal:
			m = steadyNormal
		case state.StorageError:
			m = steadyError
		case state.StorageRecovering:
			m = steadyBlink
		}
		return a.stepSteady(ctx, m)
	}
	return a
}

func (a *Animator) stepSteady(ctx context.Context, m steadyMode) error {
	p := a.cfg.Pins
	normLit, err := a.lit(p.Norm)
	if err != nil {
		return err
	}
	errLit, err := a.lit(p.Err)
	if err != nil {
		return err
	}

	switch m {
	case steadyNormal:
		if !normLit {
			if errLit {
				if err := a.darken(p.Err); err != nil {
					return err
				}
			}
			if err := a.light(p.Norm); err != nil {
				return err
			}
		}
		return a.idle(ctx)

	case steadyError:
		if !errLit {
			if normLit {
				if err := a.darken(p.Norm); err != nil {
					return err
				}
			}
			if err := a.light(p.Err); err != nil {
				return err
			}
		}
		return a.idle(ctx)

	case steadyBlink:
		if normLit {
			if err := a.darken(p.Norm); err != nil {
				return err
			}
		}
		if errLit {
			if err := a.darken(p.Err); err != nil {
				return err
			}
		}
		return a.blink(ctx, p.Aux, BlinkPeriod)
	}

	return a.idle(ctx)
}
