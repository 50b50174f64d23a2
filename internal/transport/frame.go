package transport

import (
	"encoding/binary"
	"fmt"
)

// Version selects one of the two wire framings.
type Version int

const (
	// VersionLegacy is the original framing: small header, conservative
	// MTU ceiling.
	VersionLegacy Version = 1

	// VersionModern is the newer framing with a larger header and a higher
	// MTU ceiling negotiated after connection.
	VersionModern Version = 2
)

// Framing geometry.
const (
	legacyHeaderSize     = 6
	legacyContHeaderSize = 3
	legacyMTUCeiling     = 255

	modernHeaderSize     = 8
	modernContHeaderSize = 4
	modernMTUCeiling     = 512

	// FragSingle marks a frame that carries the whole message.
	FragSingle = 0xFF

	// fragEOM flags the last segment of a segmented message.
	fragEOM = 0x80

	// maxSegments is bounded by the 7-bit segment index.
	maxSegments = 0x7F
)

// Flag bits.
const (
	flagAck       = 1 << 0
	flagProtected = 1 << 1
	flagSegmented = 1 << 2
)

// Command identifiers. CmdWrite is fire-and-forget; CmdQuery expects a
// response on the notify characteristic.
const (
	CmdWrite uint16 = 0x0A
	CmdQuery uint16 = 0x0B
)

// FramingFor maps an advertised protocol version to the framing the device
// speaks.
func FramingFor(advertised uint8) Version {
	if advertised >= 4 {
		return VersionModern
	}
	return VersionLegacy
}

// HeaderSize returns the first/single-frame header size of v.
func (v Version) HeaderSize() int {
	if v == VersionModern {
		return modernHeaderSize
	}
	return legacyHeaderSize
}

// ContHeaderSize returns the continuation-frame header size of v.
func (v Version) ContHeaderSize() int {
	if v == VersionModern {
		return modernContHeaderSize
	}
	return legacyContHeaderSize
}

// MTUCeiling returns the largest MTU the framing version tolerates.
func (v Version) MTUCeiling() int {
	if v == VersionModern {
		return modernMTUCeiling
	}
	return legacyMTUCeiling
}

// Frame is one transmittable unit.
type Frame struct {
	Version     Version
	AckRequired bool
	Protected   bool
	Segmented   bool

	// Seq is the connection-scoped sequence number, mod 256. It exists for
	// frame correlation only, never as an anti-replay token.
	Seq uint8

	// Frag is FragSingle for unsegmented frames; otherwise bits 0-6 hold
	// the segment index and bit 7 the end-of-message flag.
	Frag uint8

	// TotalLen and Command are carried by first/single frames only.
	TotalLen uint16
	Command  uint16

	Payload []byte
}

// IsFirst reports whether the frame opens a message (single frame or
// segment index zero without end-of-message on a one-frame prefix).
func (f *Frame) IsFirst() bool {
	return f.Frag == FragSingle || f.Frag&0x7F == 0
}

// SegmentIndex returns the 7-bit segment index of a segmented frame.
func (f *Frame) SegmentIndex() int { return int(f.Frag & 0x7F) }

// EndOfMessage reports whether this frame closes a segmented message.
func (f *Frame) EndOfMessage() bool {
	return f.Frag != FragSingle && f.Frag&fragEOM != 0
}

func (f *Frame) flags() byte {
	b := byte(f.Version) << 4
	if f.AckRequired {
		b |= flagAck
	}
	if f.Protected {
		b |= flagProtected
	}
	if f.Segmented {
		b |= flagSegmented
	}
	return b
}

// Marshal renders the frame into wire bytes.
func (f *Frame) Marshal() []byte {
	first := f.Frag == FragSingle || f.Frag&0x7F == 0

	var hdr int
	if first {
		hdr = f.Version.HeaderSize()
	} else {
		hdr = f.Version.ContHeaderSize()
	}

	out := make([]byte, hdr+len(f.Payload))
	out[0] = f.flags()
	out[1] = f.Seq
	out[2] = f.Frag

	if first {
		switch f.Version {
		case VersionModern:
			binary.BigEndian.PutUint16(out[4:6], f.TotalLen)
			binary.BigEndian.PutUint16(out[6:8], f.Command)
		default:
			binary.BigEndian.PutUint16(out[3:5], f.TotalLen)
			out[5] = byte(f.Command)
		}
	}

	copy(out[hdr:], f.Payload)
	return out
}

// Unmarshal decodes wire bytes into a Frame. The framing version comes from
// the flags nibble, so the caller does not need to know it up front.
func Unmarshal(data []byte) (*Frame, error) {
	if len(data) < legacyContHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}

	flags := data[0]
	v := Version(flags >> 4)
	if v != VersionLegacy && v != VersionModern {
		return nil, fmt.Errorf("%w: nibble %d", ErrBadFrameVersion, v)
	}

	f := &Frame{
		Version:     v,
		AckRequired: flags&flagAck != 0,
		Protected:   flags&flagProtected != 0,
		Segmented:   flags&flagSegmented != 0,
		Seq:         data[1],
		Frag:        data[2],
	}

	var hdr int
	if f.IsFirst() {
		hdr = v.HeaderSize()
		if len(data) < hdr {
			return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrFrameTooShort, len(data), hdr)
		}
		switch v {
		case VersionModern:
			f.TotalLen = binary.BigEndian.Uint16(data[4:6])
			f.Command = binary.BigEndian.Uint16(data[6:8])
		default:
			f.TotalLen = binary.BigEndian.Uint16(data[3:5])
			f.Command = uint16(data[5])
		}
	} else {
		hdr = v.ContHeaderSize()
		if len(data) < hdr {
			return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrFrameTooShort, len(data), hdr)
		}
	}

	f.Payload = data[hdr:]
	return f, nil
}

// Encode wraps a logical command payload into one or more frames obeying
// the negotiated MTU. seq supplies one sequence number per frame.
func Encode(cmd uint16, payload []byte, ackRequired bool, v Version, mtu int, seq *SeqCounter) ([]Frame, error) {
	if mtu > v.MTUCeiling() {
		mtu = v.MTUCeiling()
	}
	if mtu <= v.HeaderSize() {
		return nil, fmt.Errorf("%w: mtu %d below header size %d", ErrWriteFailed, mtu, v.HeaderSize())
	}
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("%w: payload %d bytes", ErrFragmentationOverflow, len(payload))
	}

	total := uint16(len(payload))

	// Single frame fast path.
	if v.HeaderSize()+len(payload) <= mtu {
		return []Frame{{
			Version:     v,
			AckRequired: ackRequired,
			Seq:         seq.Next(),
			Frag:        FragSingle,
			TotalLen:    total,
			Command:     cmd,
			Payload:     payload,
		}}, nil
	}

	firstChunk := mtu - v.HeaderSize()
	contChunk := mtu - v.ContHeaderSize()

	rest := len(payload) - firstChunk
	segments := 1 + (rest+contChunk-1)/contChunk
	if segments > maxSegments {
		return nil, fmt.Errorf("%w: %d segments for %d bytes at mtu %d",
			ErrFragmentationOverflow, segments, len(payload), mtu)
	}

	frames := make([]Frame, 0, segments)
	frames = append(frames, Frame{
		Version:     v,
		AckRequired: ackRequired,
		Segmented:   true,
		Seq:         seq.Next(),
		Frag:        0, // index 0, not final
		TotalLen:    total,
		Command:     cmd,
		Payload:     payload[:firstChunk],
	})

	off := firstChunk
	for idx := 1; off < len(payload); idx++ {
		end := off + contChunk
		if end > len(payload) {
			end = len(payload)
		}
		frag := uint8(idx)
		if end == len(payload) {
			frag |= fragEOM
		}
		frames = append(frames, Frame{
			Version:   v,
			Segmented: true,
			Seq:       seq.Next(),
			Frag:      frag,
			Payload:   payload[off:end],
		})
		off = end
	}

	return frames, nil
}

// SeqCounter hands out connection-scoped sequence numbers, incrementing
// mod 256.
type SeqCounter struct {
	n uint8
}

// Next returns the next sequence number.
func (c *SeqCounter) Next() uint8 {
	v := c.n
	c.n++
	return v
}

// ReassemblyResult is the outcome of feeding one frame to the Reassembler.
type ReassemblyResult struct {
	// Complete is true once the end of a message was observed; Data then
	// holds the full logical payload.
	Complete bool
	Data     []byte
}

// Reassembler accumulates continuation frames into the logical response for
// the current in-flight request. It handles one message at a time, matching
// the single in-flight command model.
type Reassembler struct {
	active bool
	total  int
	next   int
	buf    []byte
}

// Add feeds one decoded frame. Errors reset the reassembler so the next
// message starts clean.
func (r *Reassembler) Add(f *Frame) (ReassemblyResult, error) {
	if f.Frag == FragSingle {
		r.Reset()
		if int(f.TotalLen) != len(f.Payload) {
			return ReassemblyResult{}, fmt.Errorf("%w: single frame declares %d bytes, carries %d",
				ErrReassembly, f.TotalLen, len(f.Payload))
		}
		return ReassemblyResult{Complete: true, Data: f.Payload}, nil
	}

	if f.SegmentIndex() == 0 {
		r.active = true
		r.total = int(f.TotalLen)
		r.next = 1
		r.buf = append(r.buf[:0], f.Payload...)
	} else {
		if !r.active {
			r.Reset()
			return ReassemblyResult{}, fmt.Errorf("%w: continuation %d with no message open",
				ErrReassembly, f.SegmentIndex())
		}
		if f.SegmentIndex() != r.next {
			r.Reset()
			return ReassemblyResult{}, fmt.Errorf("%w: segment %d arrived, expected %d",
				ErrReassembly, f.SegmentIndex(), r.next)
		}
		r.next++
		r.buf = append(r.buf, f.Payload...)
	}

	if len(r.buf) > r.total {
		defer r.Reset()
		return ReassemblyResult{}, fmt.Errorf("%w: %d bytes exceed declared total %d",
			ErrReassembly, len(r.buf), r.total)
	}

	if f.EndOfMessage() {
		if len(r.buf) != r.total {
			defer r.Reset()
			return ReassemblyResult{}, fmt.Errorf("%w: message closed at %d of %d bytes",
				ErrReassembly, len(r.buf), r.total)
		}
		data := make([]byte, len(r.buf))
		copy(data, r.buf)
		r.Reset()
		return ReassemblyResult{Complete: true, Data: data}, nil
	}

	return ReassemblyResult{}, nil
}

// Reset discards any partially assembled message.
func (r *Reassembler) Reset() {
	r.active = false
	r.total = 0
	r.next = 0
	r.buf = r.buf[:0]
}
