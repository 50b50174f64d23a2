package state

import (
	"errors"
	"fmt"
)

// Response framing constants.
const (
	// Marker is the first byte of every state response.
	Marker = 0x81

	// MinResponseLen is the smallest valid state response.
	MinResponseLen = 14

	// SnapshotLen is the length of the embedded advertisement snapshot,
	// which carries response bytes [2..12] without marker or checksum.
	SnapshotLen = 11
)

// Power byte values as reported by the device.
const (
	powerOn  = 0x23
	powerOff = 0x24
)

// Response field offsets.
const (
	offMode       = 1
	offPower      = 2
	offModeType   = 3
	offEffect     = 4
	offSpeed      = 5
	offRed        = 6
	offGreen      = 7
	offBlue       = 8
	offWarm       = 9
	offBrightness = 10
	offCool       = 11
	offVersion    = 12
)

var (
	// ErrTooShort indicates a response below MinResponseLen or one missing
	// the response marker.
	ErrTooShort = errors.New("state: response too short")

	// ErrBadMarker indicates the header byte is not the state-response
	// marker.
	ErrBadMarker = errors.New("state: not a state response")

	// ErrChecksumMismatch indicates the trailing checksum does not match;
	// the data must be discarded, never partially used.
	ErrChecksumMismatch = errors.New("state: checksum mismatch")

	// ErrBadSnapshot indicates an embedded snapshot of the wrong length.
	ErrBadSnapshot = errors.New("state: invalid snapshot length")
)

// staticModeTypes is the closed set of mode-type values that denote a
// static (solid color) state. Everything else is a running effect.
var staticModeTypes = map[uint8]bool{
	0x41: true, // music/mic passthrough holding a color
	0x61: true, // solid color
	0x62: true, // custom color (user preset)
}

// IsStaticModeType reports whether a mode-type byte denotes a static state.
func IsStaticModeType(mt uint8) bool {
	return staticModeTypes[mt]
}

// DeviceState is a decoded state response.
type DeviceState struct {
	Mode     uint8
	ModeType uint8

	// IsStatic is the mode-type classification: true for the static set,
	// false for anything else. There is no third classification.
	IsStatic bool

	PowerOn bool

	Red   uint8
	Green uint8
	Blue  uint8

	WarmWhite uint8
	CoolWhite uint8

	// Brightness is always on the 0-255 scale. Static states derive it
	// from the channel values, effect states from the 0-100 effect byte.
	Brightness uint8

	EffectID    uint8
	EffectSpeed uint8

	Version uint8

	// Valid is true when the state came from a checksummed response.
	// Snapshot-derived states carry no checksum and report false.
	Valid bool
}

// Parse decodes a reassembled state-query response.
func Parse(data []byte) (*DeviceState, error) {
	if len(data) < MinResponseLen {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrTooShort, len(data), MinResponseLen)
	}
	if data[0] != Marker {
		return nil, fmt.Errorf("%w: header 0x%02X", ErrBadMarker, data[0])
	}

	sum := byte(0)
	for _, b := range data[:len(data)-1] {
		sum += b
	}
	if sum != data[len(data)-1] {
		return nil, fmt.Errorf("%w: computed 0x%02X, got 0x%02X",
			ErrChecksumMismatch, sum, data[len(data)-1])
	}

	st := decodeFields(
		data[offMode], data[offPower], data[offModeType],
		data[offEffect], data[offSpeed],
		data[offRed], data[offGreen], data[offBlue],
		data[offWarm], data[offBrightness], data[offCool],
		data[offVersion],
	)
	st.Valid = true
	return st, nil
}

// ParseSnapshot decodes the 11-byte state snapshot embedded in extended
// advertisements. The snapshot mirrors response bytes [2..12], so it has
// no marker and no checksum; the returned state reports Valid=false.
func ParseSnapshot(snap []byte) (*DeviceState, error) {
	if len(snap) != SnapshotLen {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBadSnapshot, len(snap), SnapshotLen)
	}
	return decodeFields(
		0, snap[0], snap[1],
		snap[2], snap[3],
		snap[4], snap[5], snap[6],
		snap[7], snap[8], snap[9],
		snap[10],
	), nil
}

func decodeFields(mode, power, modeType, effect, speed, r, g, b, ww, bri, cw, ver byte) *DeviceState {
	st := &DeviceState{
		Mode:        mode,
		ModeType:    modeType,
		IsStatic:    IsStaticModeType(modeType),
		PowerOn:     power == powerOn,
		Red:         r,
		Green:       g,
		Blue:        b,
		WarmWhite:   ww,
		CoolWhite:   cw,
		EffectID:    effect,
		EffectSpeed: speed,
		Version:     ver,
	}

	if st.IsStatic {
		st.Brightness = staticBrightness(r, g, b, ww, cw)
	} else {
		st.Brightness = scaleEffectBrightness(bri)
	}
	return st
}

// staticBrightness is the V component of the RGB triple converted to HSV on
// the 0-255 scale, which is simply the largest channel. A dark RGB triple
// falls back to the white channels.
func staticBrightness(r, g, b, ww, cw byte) byte {
	v := max3(r, g, b)
	if v == 0 {
		return maxByte(ww, cw)
	}
	return v
}

// scaleEffectBrightness maps the device's 0-100 effect brightness byte onto
// the 0-255 scale. Out-of-range device values clamp to full.
func scaleEffectBrightness(b byte) byte {
	if b >= 100 {
		return 255
	}
	return byte((int(b)*255 + 50) / 100)
}

func max3(a, b, c byte) byte {
	return maxByte(maxByte(a, b), c)
}

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

// String returns a one-line summary.
func (s *DeviceState) String() string {
	kind := "effect"
	if s.IsStatic {
		kind = "static"
	}
	return fmt.Sprintf("State{power=%v, %s, mode=0x%02X/0x%02X, rgb=%d/%d/%d, ww=%d, cw=%d, bri=%d}",
		s.PowerOn, kind, s.Mode, s.ModeType, s.Red, s.Green, s.Blue,
		s.WarmWhite, s.CoolWhite, s.Brightness)
}
