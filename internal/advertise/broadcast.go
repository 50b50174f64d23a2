package advertise

import (
	"errors"
	"fmt"
)

// Non-connectable controllers (remote-paired strip drivers) do not accept
// connections at all; they mirror their state into a dense bit-packed
// broadcast instead. The on-air payload is byte-reversed relative to the
// documented field order, so decoding is ReverseBytes followed by bit-field
// extraction.
//
// Field map, MSB-first over the reversed payload:
//
//	bits  0-15  product identifier
//	bits 16-25  group identifier (10 bits)
//	bit  26     power flag
//	bits 27-31  mode (5 bits)
//	bits 32-39  red
//	bits 40-47  green
//	bits 48-55  blue
//	bits 56-63  brightness
//	bits 64-71  rolling sequence

// BroadcastSize is the exact on-air payload length of the bit-packed
// broadcast variant.
const BroadcastSize = 9

// ErrInvalidBroadcast indicates a broadcast payload of the wrong size.
var ErrInvalidBroadcast = errors.New("advertise: invalid broadcast payload")

// BroadcastState is the decoded state of a non-connectable controller.
type BroadcastState struct {
	ProductID  uint16
	GroupID    uint16
	PowerOn    bool
	Mode       uint8
	Red        uint8
	Green      uint8
	Blue       uint8
	Brightness uint8
	Sequence   uint8
}

// ReverseBytes returns a new slice with the byte order of data reversed.
// The broadcast variant transmits its payload back-to-front; this is the
// single named transform that undoes it.
func ReverseBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out
}

// ExtractBits reads width bits (at most 16) starting at bit offset off,
// MSB-first, from data. Offsets count from bit 0 of data[0].
func ExtractBits(data []byte, off, width uint) uint16 {
	var v uint16
	for i := uint(0); i < width; i++ {
		bit := off + i
		b := data[bit/8]
		v <<= 1
		v |= uint16(b >> (7 - bit%8) & 1)
	}
	return v
}

// ParseBroadcast decodes a bit-packed broadcast payload as it arrived on
// air (reversed). Pure and deterministic, like Parse.
func ParseBroadcast(raw []byte) (*BroadcastState, error) {
	if len(raw) != BroadcastSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidBroadcast, len(raw), BroadcastSize)
	}

	data := ReverseBytes(raw)

	return &BroadcastState{
		ProductID:  ExtractBits(data, 0, 16),
		GroupID:    ExtractBits(data, 16, 10),
		PowerOn:    ExtractBits(data, 26, 1) == 1,
		Mode:       uint8(ExtractBits(data, 27, 5)),
		Red:        uint8(ExtractBits(data, 32, 8)),
		Green:      uint8(ExtractBits(data, 40, 8)),
		Blue:       uint8(ExtractBits(data, 48, 8)),
		Brightness: uint8(ExtractBits(data, 56, 8)),
		Sequence:   uint8(ExtractBits(data, 64, 8)),
	}, nil
}
