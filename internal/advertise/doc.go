// Package advertise decodes the manufacturer-data payloads broadcast by the
// LED controllers.
//
// Two incompatible raw layouts exist in the wild and the caller must say
// which one it has; the parser never guesses:
//
//   - Layout A (29 bytes): the 16-bit company identifier is embedded
//     little-endian at the front of the payload, followed by the 27-byte
//     body.
//   - Layout B (27 bytes): the scan layer already stripped the company
//     identifier and supplies it out-of-band.
//
// Body layout (Layout B offsets; Layout A is identical shifted by +2):
//
//	[0]      status byte
//	[1]      protocol/BLE version
//	[2-7]    MAC address
//	[8-9]    product identifier (big-endian)
//	[10]     LED-controller version
//	[11]     firmware version, low 8 bits
//	[12]     extension byte (version >= 4): check-key flag in bits 7-6,
//	         firmware flag in bits 4-0
//	[14-24]  embedded state snapshot (version >= 4)
//
// Non-connectable devices use a separate bit-packed broadcast format; see
// broadcast.go.
package advertise
