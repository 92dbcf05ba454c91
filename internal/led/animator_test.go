package led

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/status-led/internal/gpio"
	"github.com/sweeney/status-led/internal/state"
)

const interval = 100 * time.Millisecond

var (
	activeHigh = gpio.Polarity{Light: gpio.High, Dark: gpio.Low}
	activeLow  = gpio.Polarity{Light: gpio.Low, Dark: gpio.High}

	nodePins    = Pins{Norm: 13, Err: 6, Aux: 5}
	networkPins = Pins{Norm: 12, Err: 26, Aux: 19}
	storagePins = Pins{Norm: 21, Err: 20, Aux: 16}
)

// script is a sleeper that records requested durations instead of waiting,
// optionally mutates state after each sleep, and cancels the run after limit
// sleeps.
type script struct {
	limit   int
	sleeps  []time.Duration
	onSleep func(n int)
	cancel  context.CancelFunc
}

func (s *script) sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	if s.onSleep != nil {
		s.onSleep(len(s.sleeps))
	}
	if len(s.sleeps) >= s.limit {
		s.cancel()
	}
	return ctx.Err()
}

func newDriver(t *testing.T, pins Pins, pol gpio.Polarity) *gpio.FakeDriver {
	t.Helper()
	drv := gpio.NewFakeDriver()
	require.NoError(t, drv.Configure(pins.List(), pol.Dark))
	return drv
}

func run(t *testing.T, a *Animator, s *script) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel
	require.NoError(t, a.Run(ctx))
}

func w(pin int, l gpio.Level) gpio.PinWrite {
	return gpio.PinWrite{Pin: pin, Level: l}
}

func repeatDur(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func cfg(pins Pins, pol gpio.Polarity) Config {
	return Config{Pins: pins, Interval: interval, Polarity: pol}
}

func TestNodeNormalLightsNormOnce(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, nodePins, activeHigh)
	s := &script{limit: 3}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{w(13, gpio.High)}, drv.Writes())
	assert.Equal(t, repeatDur(interval, 3), s.sleeps)
}

func TestNodeNormalToError(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, nodePins, activeHigh)
	s := &script{limit: 3, onSleep: func(n int) {
		if n == 1 {
			store.SetNode(state.NodeError)
		}
	}}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{
		w(13, gpio.High),
		w(13, gpio.Low),
		w(6, gpio.High),
	}, drv.Writes())
	assert.Equal(t, repeatDur(interval, 3), s.sleeps)
}

func TestNodeSyncBlinksAtFixedCadence(t *testing.T) {
	store := state.NewStore()
	store.SetNode(state.NodeSync)
	drv := newDriver(t, nodePins, activeHigh)
	s := &script{limit: 4}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{
		w(5, gpio.High), w(5, gpio.Low),
		w(5, gpio.High), w(5, gpio.Low),
	}, drv.Writes())
	assert.Equal(t, repeatDur(BlinkPeriod, 4), s.sleeps, "sync blink ignores the polling interval")
}

func TestNodeSyncDarkensSteadyPins(t *testing.T) {
	store := state.NewStore()
	store.SetNode(state.NodeError)
	drv := newDriver(t, nodePins, activeHigh)
	s := &script{limit: 3, onSleep: func(n int) {
		if n == 1 {
			store.SetNode(state.NodeSync)
		}
	}}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{
		w(6, gpio.High),
		w(6, gpio.Low),
		w(5, gpio.High), w(5, gpio.Low),
	}, drv.Writes())
	assert.Equal(t, []time.Duration{interval, BlinkPeriod, BlinkPeriod}, s.sleeps)
}

func TestCancelDuringLitBlinkLeavesPinDark(t *testing.T) {
	store := state.NewStore()
	store.SetNode(state.NodeSync)
	drv := newDriver(t, nodePins, activeHigh)
	s := &script{limit: 1}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{w(5, gpio.High), w(5, gpio.Low)}, drv.Writes())
}

func TestCancelDuringLitBlinkLogsDarkenFailure(t *testing.T) {
	store := state.NewStore()
	store.SetNode(state.NodeSync)
	drv := newDriver(t, nodePins, activeHigh)
	core, logs := observer.New(zap.DebugLevel)
	s := &script{limit: 1, onSleep: func(int) {
		drv.SetWriteError(errors.New("line busy"))
	}}

	run(t, NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep), WithLogger(zap.New(core))), s)

	entries := logs.FilterMessage("darken on cancel").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.EqualValues(t, 5, entries[0].ContextMap()["pin"])
	level, _ := drv.Level(5)
	assert.Equal(t, gpio.High, level, "pin stays lit when the write fails")
}

func TestStorageErrorToNormal(t *testing.T) {
	store := state.NewStore()
	store.SetStorage(state.StorageError)
	drv := newDriver(t, storagePins, activeHigh)
	s := &script{limit: 2, onSleep: func(n int) {
		if n == 1 {
			store.SetStorage(state.StorageNormal)
		}
	}}

	run(t, NewStorage(drv, cfg(storagePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{
		w(20, gpio.High),
		w(20, gpio.Low),
		w(21, gpio.High),
	}, drv.Writes())
}

func TestStorageRecoveringBlinks(t *testing.T) {
	store := state.NewStore()
	store.SetStorage(state.StorageRecovering)
	drv := newDriver(t, storagePins, activeHigh)
	s := &script{limit: 6}

	run(t, NewStorage(drv, cfg(storagePins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low, gpio.High, gpio.Low}, drv.WritesTo(16))
	assert.Empty(t, drv.WritesTo(21))
	assert.Empty(t, drv.WritesTo(20))
	assert.Equal(t, repeatDur(BlinkPeriod, 6), s.sleeps)
}

func TestNetworkErrorBlinksPortCount(t *testing.T) {
	for port := 1; port <= 4; port++ {
		store := state.NewStore()
		store.SetNetwork(state.NetworkErrorOn(port))
		drv := newDriver(t, networkPins, activeHigh)
		perCycle := 2*port + 1
		s := &script{limit: 2 * perCycle}

		run(t, NewNetwork(drv, cfg(networkPins, activeHigh), store, WithSleeper(s.sleep)), s)

		var cycle []time.Duration
		cycle = append(cycle, repeatDur(PortBlinkPeriod, 2*port)...)
		cycle = append(cycle, interval)
		assert.Equal(t, append(append([]time.Duration{}, cycle...), cycle...), s.sleeps, "port %d", port)

		var blinks []gpio.Level
		for i := 0; i < 2*port; i++ {
			blinks = append(blinks, gpio.High, gpio.Low)
		}
		assert.Equal(t, blinks, drv.WritesTo(26), "port %d", port)
		assert.Empty(t, drv.WritesTo(12), "norm stays dark, port %d", port)
	}
}

func TestNetworkErrorInvalidPortStillSleeps(t *testing.T) {
	store := state.NewStore()
	store.SetNetwork(state.Network{Mode: state.NetworkError, Port: 0})
	drv := newDriver(t, networkPins, activeHigh)
	s := &script{limit: 3}

	run(t, NewNetwork(drv, cfg(networkPins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Empty(t, drv.Writes())
	assert.Equal(t, repeatDur(interval, 3), s.sleeps)
}

func TestNetworkNormalToError(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, networkPins, activeHigh)
	s := &script{limit: 4, onSleep: func(n int) {
		if n == 1 {
			store.SetNetwork(state.NetworkErrorOn(1))
		}
	}}

	run(t, NewNetwork(drv, cfg(networkPins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{
		w(12, gpio.High),
		w(12, gpio.Low),
		w(26, gpio.High), w(26, gpio.Low),
	}, drv.Writes())
	assert.Equal(t, []time.Duration{interval, PortBlinkPeriod, PortBlinkPeriod, interval}, s.sleeps)
}

func TestNetworkRecovering(t *testing.T) {
	store := state.NewStore()
	store.SetNetwork(state.Network{Mode: state.NetworkRecovering})
	drv := newDriver(t, networkPins, activeHigh)
	s := &script{limit: 2}

	run(t, NewNetwork(drv, cfg(networkPins, activeHigh), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{w(19, gpio.High), w(19, gpio.Low)}, drv.Writes())
	assert.Equal(t, repeatDur(BlinkPeriod, 2), s.sleeps)
}

func TestActiveLowPolarity(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, nodePins, activeLow)
	s := &script{limit: 2}

	run(t, NewNode(drv, cfg(nodePins, activeLow), store, WithSleeper(s.sleep)), s)

	assert.Equal(t, []gpio.PinWrite{w(13, gpio.Low)}, drv.Writes())
	level, _ := drv.Level(6)
	assert.Equal(t, gpio.High, level, "err stays dark (high)")
}

func TestWriteErrorStopsAnimator(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, nodePins, activeHigh)
	drv.SetWriteError(errors.New("line busy"))
	s := &script{limit: 10}
	a := NewNode(drv, cfg(nodePins, activeHigh), store, WithSleeper(s.sleep))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel
	err := a.Run(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "node animator")
	assert.Contains(t, err.Error(), "line busy")
	assert.Empty(t, s.sleeps)
}

func TestReadErrorStopsAnimator(t *testing.T) {
	store := state.NewStore()
	drv := gpio.NewFakeDriver() // pins never configured
	a := NewStorage(drv, cfg(storagePins, activeHigh), store)

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage animator")
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	store := state.NewStore()
	drv := newDriver(t, nodePins, activeHigh)
	a := NewNode(drv, Config{Pins: nodePins, Interval: time.Hour, Polarity: activeHigh}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("animator did not stop after cancel")
	}
}

func TestDefaults(t *testing.T) {
	a := NewNode(gpio.NewFakeDriver(), Config{Pins: nodePins, Polarity: activeHigh}, state.NewStore())

	assert.Equal(t, "node", a.Name())
	assert.Equal(t, []int{13, 6, 5}, a.Pins())
	assert.Equal(t, DefaultInterval, a.cfg.Interval)
}
