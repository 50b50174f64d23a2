package transport

import (
	"context"
	"fmt"
)

// Well-known 16-bit GATT UUID patterns for the controller family. OTA
// characteristics are listed for completeness; OTA itself is outside this
// engine.
const (
	ControlServiceUUID16 = 0xFFD5
	WriteCharUUID16      = 0xFFD9
	NotifyServiceUUID16  = 0xFFD0
	NotifyCharUUID16     = 0xFFD4

	OTAServiceUUID16    = 0xFFC0
	OTAWriteCharUUID16  = 0xFFC1
	OTANotifyCharUUID16 = 0xFFC2
)

// UUID16String expands a 16-bit UUID pattern to its full 128-bit Bluetooth
// base UUID form.
func UUID16String(uuid16 uint16) string {
	return fmt.Sprintf("0000%04x-0000-1000-8000-00805f9b34fb", uuid16)
}

// Adapter is the BLE stack integration this engine consumes. Scanning,
// GATT discovery, and pairing live behind it; the engine only connects,
// writes frames, and receives notification bytes.
type Adapter interface {
	// Connect dials the device at the given address and returns an open
	// connection handle.
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is one open connection to a device.
type Conn interface {
	// Write transmits one wire frame to the write characteristic.
	Write(ctx context.Context, data []byte) error

	// Subscribe registers the callback invoked for every inbound
	// notification. The channel is shared between solicited responses and
	// unsolicited device-initiated pushes.
	Subscribe(fn func(data []byte)) error

	// NegotiateMTU requests an MTU and returns what the peer granted.
	NegotiateMTU(ctx context.Context, requested int) (int, error)

	// Disconnect tears the connection down. Implementations must cause
	// every blocked wait to resolve rather than hang.
	Disconnect() error
}
