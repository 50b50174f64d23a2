// Package transport frames logical commands into wire frames, reassembles
// incoming frames into logical responses, and serializes all traffic to one
// device behind a single in-flight command.
//
// Two framing versions exist, selected by the device's advertised protocol
// version:
//
//   - Legacy (< 4): 6-byte first header, 3-byte continuation header, MTU
//     ceiling 255.
//   - Modern (>= 4): 8-byte first header, 4-byte continuation header, MTU
//     ceiling 512, negotiated upward after connection.
//
// First/single header:
//
//	[0]    flags: bit0 ack-required, bit1 protected, bit2 segmented,
//	       bits 4-7 framing version
//	[1]    sequence number (mod 256, connection-scoped)
//	[2]    fragment control: 0xFF single-segment, else segment index in
//	       bits 0-6 and end-of-message in bit 7
//	[3]    reserved (modern only)
//	[..]   total logical length, big-endian 16-bit
//	[..]   command identifier (8-bit legacy, 16-bit big-endian modern)
//
// Continuation frames repeat only flags/sequence/fragment (plus the
// reserved byte on modern framing) ahead of the payload.
//
// The protocol has no request/response identifier, so correlation is
// positional: the session accepts the first structurally valid message
// arriving inside an active wait window as the response and reports
// everything else to the ambient notification handler.
package transport
