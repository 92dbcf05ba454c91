package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/status-led/internal/config"
	"github.com/sweeney/status-led/internal/gpio"
	"github.com/sweeney/status-led/internal/led"
	"github.com/sweeney/status-led/internal/logging"
	"github.com/sweeney/status-led/internal/metrics"
	"github.com/sweeney/status-led/internal/mqtt"
	"github.com/sweeney/status-led/internal/protocol"
	"github.com/sweeney/status-led/internal/state"
	"github.com/sweeney/status-led/internal/status"
	"github.com/sweeney/status-led/internal/web"
)

const (
	changeQueueSize = 64
	httpShutdown    = 5 * time.Second
	// Decoder noise log budget: a few lines per second, small bursts.
	noiseLogsPerSec = 1
	noiseLogBurst   = 5
)

// daemon wires the decoder, the animators and the observability surfaces
// around one state store.
type daemon struct {
	cfg      *config.Config
	log      *zap.Logger
	drv      gpio.Driver
	store    *state.Store
	tracker  *status.Tracker
	registry *prometheus.Registry
	pub      mqtt.Publisher // nil when MQTT is disabled

	sleep protocol.Sleeper // nil uses real time
	now   func() time.Time
}

func newDaemon(cfg *config.Config, log *zap.Logger, drv gpio.Driver, sessionID string) *daemon {
	store := state.NewStore()
	return &daemon{
		cfg:      cfg,
		log:      log,
		drv:      drv,
		store:    store,
		tracker:  status.NewTracker(time.Now(), sessionID, statusConfig(cfg), store, nil),
		registry: metrics.NewRegistry(),
		now:      time.Now,
	}
}

// shutdownSignal ends the task group when SIGINT or SIGTERM arrives.
type shutdownSignal struct {
	sig os.Signal
}

func (s shutdownSignal) Error() string { return "received " + s.sig.String() }

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// serve claims the pins, runs every task until a signal or the first fatal
// error, then releases the pins. A signal is a clean exit (nil).
func (d *daemon) serve(sig <-chan os.Signal, src io.Reader) error {
	node, network, storage, err := d.resolvePins()
	if err != nil {
		return err
	}
	polarity, err := gpio.NewPolarity(d.cfg.LED.LightHigh, d.cfg.LED.DarkHigh)
	if err != nil {
		return err
	}

	pins := append(append(node.List(), network.List()...), storage.List()...)
	if err := d.drv.Configure(pins, polarity.Dark); err != nil {
		return fmt.Errorf("configure pins: %w", err)
	}
	defer func() {
		if err := d.drv.Release(pins); err != nil {
			d.log.Error("release pins", zap.Error(err))
		} else {
			d.log.Info("pins released")
		}
	}()

	var changes chan []mqtt.ChangeEvent
	if d.pub != nil {
		changes = make(chan []mqtt.ChangeEvent, changeQueueSize)
	}
	notifier := &changeNotifier{store: d.store, out: changes, now: d.now, log: d.log.Named("state")}

	decOpts := []protocol.Option{
		protocol.WithObserver(metrics.NewDecoderMetrics(d.registry)),
		protocol.WithObserver(logging.NewDecoderLogger(d.log, noiseLogsPerSec, noiseLogBurst)),
		protocol.WithObserver(d.tracker),
		protocol.WithObserver(notifier),
	}
	if d.sleep != nil {
		decOpts = append(decOpts, protocol.WithSleeper(d.sleep))
	}
	// A quiet line idles for one interval before the next read.
	decoder := protocol.NewDecoder(src, d.cfg.Interval, decOpts...)
	d.tracker.SetStatsSource(decoder)
	metrics.RegisterState(d.registry, d.store)

	animOpts := []led.Option{led.WithLogger(d.log)}
	if d.sleep != nil {
		animOpts = append(animOpts, led.WithSleeper(d.sleep))
	}
	ledCfg := func(p led.Pins) led.Config {
		return led.Config{Pins: p, Interval: d.cfg.Interval, Polarity: polarity}
	}
	animators := []*led.Animator{
		led.NewNode(d.drv, ledCfg(node), d.store, animOpts...),
		led.NewNetwork(d.drv, ledCfg(network), d.store, animOpts...),
		led.NewStorage(d.drv, ledCfg(storage), d.store, animOpts...),
	}

	d.publishSystem("STARTUP", "")

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		select {
		case s := <-sig:
			return shutdownSignal{sig: s}
		case <-ctx.Done():
			return nil
		}
	})
	for _, a := range animators {
		g.Go(guard(a.Name()+" animator", func() error { return a.Run(ctx) }))
	}
	g.Go(guard("decoder", func() error { return decoder.Run(ctx, d.store) }))
	if changes != nil {
		var tick <-chan time.Time
		if hb := d.cfg.MQTT.Heartbeat; hb > 0 {
			ticker := time.NewTicker(hb)
			defer ticker.Stop()
			tick = ticker.C
		}
		g.Go(guard("publisher", func() error {
			d.publishLoop(ctx, changes, tick)
			return nil
		}))
	}
	if d.cfg.HTTP.Addr != "" {
		d.startHTTP(ctx, g)
	}

	err = g.Wait()

	reason := "ERROR"
	var stop shutdownSignal
	if errors.As(err, &stop) {
		d.log.Info("shutting down", zap.String("signal", stop.sig.String()))
		reason = signalName(stop.sig)
		err = nil
	} else if err != nil {
		d.log.Error("task failed, shutting down", zap.Error(err))
	}
	d.publishSystem("SHUTDOWN", reason)
	return err
}

func (d *daemon) startHTTP(ctx context.Context, g *errgroup.Group) {
	var opts []web.Option
	if d.cfg.Metrics.Enable {
		opts = append(opts, web.WithHandler(d.cfg.Metrics.Path, metrics.Handler(d.registry)))
	}
	srv := web.New(d.cfg.HTTP.Addr, d.tracker, opts...)

	// The status page is best effort: a failure is logged, never fatal.
	g.Go(func() error {
		d.log.Info("http status server listening", zap.String("addr", d.cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("http server error", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdown)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (d *daemon) resolvePins() (node, network, storage led.Pins, err error) {
	resolve := func(key string, norm, errPin, aux int) (led.Pins, error) {
		var p led.Pins
		var e error
		if p.Norm, e = d.cfg.ResolvePin(norm); e != nil {
			return p, fmt.Errorf("%s.norm: %w", key, e)
		}
		if p.Err, e = d.cfg.ResolvePin(errPin); e != nil {
			return p, fmt.Errorf("%s.err: %w", key, e)
		}
		if p.Aux, e = d.cfg.ResolvePin(aux); e != nil {
			return p, fmt.Errorf("%s.aux: %w", key, e)
		}
		return p, nil
	}
	pm := d.cfg.Pins
	if node, err = resolve("node", pm.Node.Norm, pm.Node.Err, pm.Node.Sync); err != nil {
		return
	}
	if network, err = resolve("network", pm.Network.Norm, pm.Network.Err, pm.Network.Rec); err != nil {
		return
	}
	storage, err = resolve("storage", pm.Storage.Norm, pm.Storage.Err, pm.Storage.Rec)
	return
}

// publishLoop forwards state changes and heartbeats to the broker until ctx
// is done. Publish failures are logged and dropped.
func (d *daemon) publishLoop(ctx context.Context, changes <-chan []mqtt.ChangeEvent, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-changes:
			for _, ev := range events {
				if err := d.pub.PublishChange(ev); err != nil {
					d.log.Warn("publish change", zap.String("subsystem", string(ev.Subsystem)), zap.Error(err))
				}
			}
		case <-tick:
			d.publishSystem("HEARTBEAT", "")
		}
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// Reason is only set for SHUTDOWN.
func (d *daemon) publishSystem(event, reason string) {
	if d.pub == nil {
		return
	}
	if cs, ok := d.pub.(mqtt.ConnectionStatus); ok {
		d.tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.pub.PublishSystem(ev); err != nil {
		d.log.Warn("publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	d.log.Debug("published system event", zap.String("event", event))
}

// guard converts a panic in fn into an error so it cancels the group instead
// of crashing past the deferred pin release.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		return fn()
	}
}

// changeNotifier logs subsystem state changes and queues them for MQTT
// without ever blocking the decoder.
type changeNotifier struct {
	store   *state.Store
	out     chan<- []mqtt.ChangeEvent // nil when MQTT is disabled
	now     func() time.Time
	log     *zap.Logger
	dropped atomic.Uint64
}

// Observe implements protocol.Observer.
func (n *changeNotifier) Observe(ev protocol.Event) {
	if ev.Kind != protocol.EventFrame || len(ev.Changed) == 0 {
		return
	}
	events := mqtt.ChangesFrom(n.store.Snapshot(), ev.Changed, n.now())
	for _, c := range events {
		fields := []zap.Field{zap.String("subsystem", string(c.Subsystem)), zap.String("state", c.State)}
		if c.Port != 0 {
			fields = append(fields, zap.Int("port", c.Port))
		}
		n.log.Info("state change", fields...)
	}
	if n.out == nil {
		return
	}
	select {
	case n.out <- events:
	default:
		if n.dropped.Add(1) == 1 {
			n.log.Warn("change queue full, dropping events")
		}
	}
}
