// Command frame-sender transmits status control frames over a serial port.
// It is the bench counterpart of status-led: it cycles through a list of
// control bytes, sending one encoded frame per step.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/config"
	"github.com/sweeney/status-led/internal/logging"
	"github.com/sweeney/status-led/internal/protocol"
	"github.com/sweeney/status-led/internal/serialport"
)

// defaultControls walks node error/sync, storage error/recovering, network
// recovering, every network error port, and back to all normal.
const defaultControls = "192,64,48,16,15,8,4,2,1,0"

func main() {
	configPath := flag.String("config", "", "Config file providing the serial settings")
	port := flag.String("port", "", "Serial port (default serial.pcPort from the config file)")
	every := flag.Duration("every", 3*time.Second, "Delay between frames")
	controls := flag.String("control", defaultControls, "Comma-separated control bytes to cycle through")
	count := flag.Int("count", 0, "Number of frames to send (0 = forever)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frame-sender: %v\n", err)
		os.Exit(2)
	}
	seq, err := parseControls(*controls)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frame-sender: -control: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frame-sender: init logging: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, senderSerial(cfg.Serial, *port), seq, *every, *count, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// senderSerial returns the link settings for the transmitting end: the board
// settings on the PC-side port, or on override when set.
func senderSerial(cfg config.SerialConfig, override string) config.SerialConfig {
	cfg.Port = cfg.PCPort
	if override != "" {
		cfg.Port = override
	}
	return cfg
}

func run(ctx context.Context, cfg config.SerialConfig, seq []byte, every time.Duration, count int, log *zap.Logger) error {
	p, err := serialport.Open(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	log.Info("sending",
		zap.String("port", cfg.Port),
		zap.Int("baud", cfg.BaudRate),
		zap.Binary("controls", seq),
		zap.Duration("every", every))
	return send(ctx, p, seq, every, count, protocol.Sleep, log)
}

// send writes one frame per step, cycling through seq, until count frames
// were sent (count 0 means no limit) or ctx is done. Cancellation is not an
// error.
func send(ctx context.Context, w io.Writer, seq []byte, every time.Duration, count int, sleep protocol.Sleeper, log *zap.Logger) error {
	for i := 0; count == 0 || i < count; i++ {
		control := seq[i%len(seq)]
		frame := protocol.Encode(control)
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		seg := protocol.Decode(control)
		log.Info("sent",
			zap.Uint8("control", control),
			zap.String("frame", fmt.Sprintf("% X", frame)),
			zap.String("node", label(seg.Node, seg.NodeOK)),
			zap.String("network", label(seg.Network, seg.NetworkOK)),
			zap.String("storage", label(seg.Storage, seg.StorageOK)))

		if count != 0 && i == count-1 {
			break
		}
		if err := sleep(ctx, every); err != nil {
			return nil
		}
	}
	return nil
}

func label(s fmt.Stringer, ok bool) string {
	if !ok {
		return "UNDEFINED"
	}
	return s.String()
}

// parseControls parses a comma-separated list of control bytes. Values may
// be decimal or 0x-prefixed hex.
func parseControls(s string) ([]byte, error) {
	var out []byte
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("control %q: %w", field, err)
		}
		out = append(out, byte(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no control bytes in %q", s)
	}
	return out, nil
}
