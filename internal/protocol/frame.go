// Package protocol decodes the status frames received over the serial link.
//
// A frame is four bytes: 0x55 0xAA control checksum. The checksum is CRC-8
// (poly 0x07, init 0x00) over the decimal text of the first three byte values,
// so header 0x55 0xAA with control 0xC0 is checksummed as "85170192".
package protocol

import (
	"strconv"

	"github.com/sigurn/crc8"
)

// Frame markers.
const (
	Header0 = 0x55
	Header1 = 0xAA
)

// FrameLen is the size of an encoded frame in bytes.
const FrameLen = 4

// Control byte segment masks.
const (
	NodeMask    = 0xC0 // bits 6-7
	StorageMask = 0x30 // bits 4-5
	NetworkMask = 0x0F // bits 0-3
)

var crcTable = crc8.MakeTable(crc8.CRC8)

// Frame is a received frame whose header has been matched.
type Frame struct {
	Control  byte
	Checksum byte
}

// Valid reports whether the checksum matches the control byte.
func (f Frame) Valid() bool {
	return Checksum(f.Control) == f.Checksum
}

// Bytes returns the frame as it appears on the wire.
func (f Frame) Bytes() []byte {
	return []byte{Header0, Header1, f.Control, f.Checksum}
}

// Checksum returns the checksum byte for a frame carrying control.
func Checksum(control byte) byte {
	return crc8Sum(checksumInput(control))
}

// Encode returns a complete, valid frame carrying control.
func Encode(control byte) []byte {
	return Frame{Control: control, Checksum: Checksum(control)}.Bytes()
}

// checksumInput renders the header and control byte values as concatenated
// decimal digits, e.g. 0x55 0xAA 0x08 -> "851708".
func checksumInput(control byte) []byte {
	buf := make([]byte, 0, 9)
	buf = strconv.AppendUint(buf, Header0, 10)
	buf = strconv.AppendUint(buf, Header1, 10)
	buf = strconv.AppendUint(buf, uint64(control), 10)
	return buf
}

func crc8Sum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}
