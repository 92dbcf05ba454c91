package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/status-led/internal/config"
	"github.com/sweeney/status-led/internal/protocol"
	"github.com/sweeney/status-led/internal/state"
)

func TestSenderSerialUsesPCPort(t *testing.T) {
	board := config.SerialConfig{Port: "/dev/serial0", PCPort: "/dev/ttyUSB0", BaudRate: 115200, Parity: "even"}

	got := senderSerial(board, "")
	assert.Equal(t, "/dev/ttyUSB0", got.Port)
	assert.Equal(t, 115200, got.BaudRate)
	assert.Equal(t, "even", got.Parity)

	assert.Equal(t, "/dev/tty.usbserial-0001", senderSerial(board, "/dev/tty.usbserial-0001").Port)
	assert.Equal(t, "/dev/serial0", board.Port, "board settings untouched")
}

func TestParseControls(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{in: defaultControls, want: []byte{192, 64, 48, 16, 15, 8, 4, 2, 1, 0}},
		{in: "0xC0, 0x0f ,3", want: []byte{0xC0, 0x0F, 3}},
		{in: "1,,2,", want: []byte{1, 2}},
		{in: "256", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: " , ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseControls(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func TestSendCyclesThroughSequence(t *testing.T) {
	var buf bytes.Buffer
	rec := &sleepRecorder{}

	err := send(context.Background(), &buf, []byte{0xC0, 0x00}, 3*time.Second, 5, rec.sleep, zap.NewNop())
	require.NoError(t, err)

	var want []byte
	for _, c := range []byte{0xC0, 0x00, 0xC0, 0x00, 0xC0} {
		want = append(want, protocol.Encode(c)...)
	}
	assert.Equal(t, want, buf.Bytes())
	assert.Len(t, rec.calls, 4, "no sleep after the last frame")
	for _, d := range rec.calls {
		assert.Equal(t, 3*time.Second, d)
	}
}

func TestSendFramesDecode(t *testing.T) {
	var buf bytes.Buffer
	seq, err := parseControls(defaultControls)
	require.NoError(t, err)
	require.NoError(t, send(context.Background(), &buf, seq, 0, len(seq), (&sleepRecorder{}).sleep, zap.NewNop()))

	store := state.NewStore()
	dec := protocol.NewDecoder(bytes.NewReader(buf.Bytes()), 0,
		protocol.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	err = dec.Run(context.Background(), store)
	require.ErrorIs(t, err, protocol.ErrConnection)

	assert.EqualValues(t, len(seq), dec.Stats().Frames)
	assert.Zero(t, dec.Stats().ChecksumErrors)
	assert.Equal(t, state.Snapshot{}, store.Snapshot(), "sequence ends all normal")
}

func TestSendStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := send(ctx, &buf, []byte{0x40}, time.Second, 0, (&sleepRecorder{}).sleep, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, protocol.Encode(0x40), buf.Bytes(), "one frame, then the cancelled sleep ends the loop")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("tx fault") }

func TestSendWriteError(t *testing.T) {
	err := send(context.Background(), failWriter{}, []byte{0}, time.Second, 1, (&sleepRecorder{}).sleep, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx fault")
}
