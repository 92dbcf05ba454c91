package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/status-led/internal/protocol"
)

// DecoderLogger logs decoder events. Accepted frames are logged at debug.
// Line noise (discarded bytes, checksum failures, undefined segments) is
// logged at warn through a token bucket; events over the limit are counted
// and the count is attached to the next line that gets through.
type DecoderLogger struct {
	log        *zap.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewDecoderLogger returns an observer allowing perSec noise lines per
// second with the given burst.
func NewDecoderLogger(log *zap.Logger, perSec float64, burst int) *DecoderLogger {
	return &DecoderLogger{
		log:     log.Named("decoder"),
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Observe implements protocol.Observer.
func (l *DecoderLogger) Observe(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventFrame:
		if ce := l.log.Check(zap.DebugLevel, "frame"); ce != nil {
			changed := make([]string, len(ev.Changed))
			for i, sub := range ev.Changed {
				changed[i] = string(sub)
			}
			ce.Write(zap.Uint8("control", ev.Frame.Control), zap.Strings("changed", changed))
		}
	case protocol.EventDiscard:
		l.noise("discarded byte", zap.Uint8("byte", ev.Byte))
	case protocol.EventChecksum:
		l.noise("checksum mismatch",
			zap.Uint8("control", ev.Frame.Control),
			zap.Uint8("checksum", ev.Frame.Checksum),
			zap.Uint8("want", protocol.Checksum(ev.Frame.Control)))
	case protocol.EventUndefinedSegment:
		l.noise("undefined segment",
			zap.String("subsystem", string(ev.Subsystem)),
			zap.Uint8("raw", ev.Raw),
			zap.Uint8("control", ev.Frame.Control))
	}
}

// Suppressed returns the number of noise lines dropped since the last line
// that was written.
func (l *DecoderLogger) Suppressed() uint64 {
	return l.suppressed.Load()
}

func (l *DecoderLogger) noise(msg string, fields ...zap.Field) {
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Uint64("suppressed", n))
	}
	l.log.Warn(msg, fields...)
}
