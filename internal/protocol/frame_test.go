package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumInput(t *testing.T) {
	tests := []struct {
		control byte
		want    string
	}{
		{0xC0, "85170192"},
		{0x08, "851708"},
		{0x00, "851700"},
		{0xFF, "85170255"},
	}
	for _, tt := range tests {
		if got := string(checksumInput(tt.control)); got != tt.want {
			t.Errorf("checksumInput(%#x) = %q, want %q", tt.control, got, tt.want)
		}
	}
}

// Reference values produced by the existing transmitters (crcmod "crc-8").
func TestChecksumKnownValues(t *testing.T) {
	tests := []struct {
		control byte
		want    byte
	}{
		{192, 0x13},
		{64, 0xA5},
		{48, 0xAB},
		{16, 0xC0},
		{15, 0xC9},
		{8, 0x48},
		{4, 0x6C},
		{2, 0x7E},
		{1, 0x77},
		{0, 0x70},
		{128, 0xB2},
		{255, 0x47},
	}
	for _, tt := range tests {
		if got := Checksum(tt.control); got != tt.want {
			t.Errorf("Checksum(%d) = %#02x, want %#02x", tt.control, got, tt.want)
		}
	}
}

func TestCRCTableIsCRC8(t *testing.T) {
	// Standard CRC-8 check value.
	assert.Equal(t, byte(0xF4), crc8Sum([]byte("123456789")))
}

func TestEncodeRoundTripAllControls(t *testing.T) {
	for c := 0; c < 256; c++ {
		control := byte(c)
		raw := Encode(control)
		if len(raw) != FrameLen {
			t.Fatalf("Encode(%d): len %d", c, len(raw))
		}
		if raw[0] != Header0 || raw[1] != Header1 || raw[2] != control {
			t.Fatalf("Encode(%d) = % x", c, raw)
		}
		f := Frame{Control: raw[2], Checksum: raw[3]}
		if !f.Valid() {
			t.Errorf("Encode(%d) produced invalid frame % x", c, raw)
		}
	}
}

func TestChecksumBitFlipRejected(t *testing.T) {
	for c := 0; c < 256; c++ {
		good := Frame{Control: byte(c), Checksum: Checksum(byte(c))}
		for bit := 0; bit < 8; bit++ {
			bad := good
			bad.Checksum ^= 1 << bit
			if bad.Valid() {
				t.Errorf("control %d: flipped bit %d accepted", c, bit)
			}
		}
	}
}
