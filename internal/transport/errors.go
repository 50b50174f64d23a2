package transport

import "errors"

var (
	// ErrTimeout indicates no response arrived inside the wait window.
	// Recoverable; the caller decides whether to retry.
	ErrTimeout = errors.New("transport: timeout")

	// ErrDisconnected indicates the connection dropped. Every outstanding
	// wait resolves with this error instead of hanging.
	ErrDisconnected = errors.New("transport: disconnected")

	// ErrWriteFailed indicates the adapter rejected a frame write.
	ErrWriteFailed = errors.New("transport: write failed")

	// ErrFragmentationOverflow indicates a payload needing more segments
	// than the fragment-control field can index.
	ErrFragmentationOverflow = errors.New("transport: fragmentation overflow")

	// ErrFrameTooShort indicates an incoming frame below the minimum
	// header size for its framing version.
	ErrFrameTooShort = errors.New("transport: frame too short")

	// ErrBadFrameVersion indicates a flags nibble naming an unknown
	// framing version.
	ErrBadFrameVersion = errors.New("transport: unknown framing version")

	// ErrReassembly indicates continuation frames arriving out of order or
	// disagreeing with the declared total length.
	ErrReassembly = errors.New("transport: reassembly failure")
)
