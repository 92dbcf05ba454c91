package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sweeney/status-led/internal/state"
)

// ErrConnection wraps every error returned by the byte source. It is the only
// error, besides context cancellation, that leaves the decoder.
var ErrConnection = errors.New("serial connection error")

// EventKind classifies decoder observations.
type EventKind int

const (
	// EventFrame is a frame that passed checksum verification.
	EventFrame EventKind = iota
	// EventDiscard is a byte dropped while searching for a header.
	EventDiscard
	// EventChecksum is a frame dropped because its checksum did not match.
	EventChecksum
	// EventUndefinedSegment is a segment value with no defined state.
	EventUndefinedSegment
)

func (k EventKind) String() string {
	switch k {
	case EventFrame:
		return "frame"
	case EventDiscard:
		return "discard"
	case EventChecksum:
		return "checksum"
	case EventUndefinedSegment:
		return "undefined_segment"
	}
	return "unknown"
}

// Event describes one decoder observation.
type Event struct {
	Kind      EventKind
	Frame     Frame           // EventFrame, EventChecksum, EventUndefinedSegment
	Byte      byte            // EventDiscard: the dropped byte
	Subsystem state.Subsystem // EventUndefinedSegment
	Raw       byte            // EventUndefinedSegment: the masked segment value
	Changed   []state.Subsystem
}

// Observer receives decoder events. It is called synchronously from the
// decoding goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Stats counts decoder observations since start.
type Stats struct {
	Bytes             uint64
	Frames            uint64
	Discarded         uint64
	ChecksumErrors    uint64
	UndefinedSegments uint64
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Decoder reads frames from a byte source one byte at a time.
type Decoder struct {
	r         io.Reader
	idle      time.Duration
	sleep     Sleeper
	observers []Observer
	buf       [1]byte

	bytes      atomic.Uint64
	frames     atomic.Uint64
	discarded  atomic.Uint64
	checksums  atomic.Uint64
	undefineds atomic.Uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(d *Decoder) { d.observers = append(d.observers, o) }
}

// WithSleeper replaces the idle sleep, for tests.
func WithSleeper(s Sleeper) Option {
	return func(d *Decoder) { d.sleep = s }
}

// NewDecoder returns a decoder reading from r. A read that returns no data
// and no error (a serial read timeout) makes the decoder wait idle before
// reading again.
func NewDecoder(r io.Reader, idle time.Duration, opts ...Option) *Decoder {
	d := &Decoder{
		r:     r,
		idle:  idle,
		sleep: Sleep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Stats returns a copy of the decoder counters. Safe to call concurrently
// with Next and Run.
func (d *Decoder) Stats() Stats {
	return Stats{
		Bytes:             d.bytes.Load(),
		Frames:            d.frames.Load(),
		Discarded:         d.discarded.Load(),
		ChecksumErrors:    d.checksums.Load(),
		UndefinedSegments: d.undefineds.Load(),
	}
}

// Run decodes frames and applies them to sink until ctx is cancelled (returns
// nil) or the byte source fails (returns an error wrapping ErrConnection).
func (d *Decoder) Run(ctx context.Context, sink Sink) error {
	for {
		f, err := d.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		seg := Decode(f.Control)
		d.reportUndefined(f, seg)
		changed := seg.Apply(sink)
		d.emit(Event{Kind: EventFrame, Frame: f, Changed: changed})
	}
}

// Next returns the next frame whose header and checksum both match. Bytes
// preceding a header and frames with a bad checksum are dropped.
func (d *Decoder) Next(ctx context.Context) (Frame, error) {
	for {
		if err := d.syncHeader(ctx); err != nil {
			return Frame{}, err
		}
		control, err := d.readByte(ctx)
		if err != nil {
			return Frame{}, err
		}
		checksum, err := d.readByte(ctx)
		if err != nil {
			return Frame{}, err
		}

		f := Frame{Control: control, Checksum: checksum}
		if !f.Valid() {
			d.checksums.Add(1)
			d.emit(Event{Kind: EventChecksum, Frame: f})
			continue
		}
		d.frames.Add(1)
		return f, nil
	}
}

// syncHeader consumes bytes until Header0 immediately followed by Header1.
// A Header0 in the second position starts a new candidate instead of being
// dropped.
func (d *Decoder) syncHeader(ctx context.Context) error {
	armed := false
	for {
		b, err := d.readByte(ctx)
		if err != nil {
			return err
		}
		switch {
		case armed && b == Header1:
			return nil
		case b == Header0:
			if armed {
				d.discard(Header0)
			}
			armed = true
		default:
			if armed {
				d.discard(Header0)
			}
			d.discard(b)
			armed = false
		}
	}
}

func (d *Decoder) readByte(ctx context.Context) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := d.r.Read(d.buf[:])
		if n == 1 {
			d.bytes.Add(1)
			return d.buf[0], nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		if err := d.sleep(ctx, d.idle); err != nil {
			return 0, err
		}
	}
}

func (d *Decoder) discard(b byte) {
	d.discarded.Add(1)
	d.emit(Event{Kind: EventDiscard, Byte: b})
}

func (d *Decoder) reportUndefined(f Frame, seg Segments) {
	report := func(sub state.Subsystem, raw byte) {
		d.undefineds.Add(1)
		d.emit(Event{Kind: EventUndefinedSegment, Frame: f, Subsystem: sub, Raw: raw})
	}
	if !seg.NodeOK {
		report(state.SubsystemNode, seg.RawNode)
	}
	if !seg.NetworkOK {
		report(state.SubsystemNetwork, seg.RawNetwork)
	}
	if !seg.StorageOK {
		report(state.SubsystemStorage, seg.RawStorage)
	}
}

func (d *Decoder) emit(ev Event) {
	for _, o := range d.observers {
		o.Observe(ev)
	}
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
