package advertise

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Layout identifies which raw advertisement byte layout the caller holds.
type Layout int

const (
	// LayoutA is the 29-byte payload with the company identifier embedded
	// little-endian at offset 0.
	LayoutA Layout = iota + 1

	// LayoutB is the 27-byte payload whose company identifier arrives
	// out-of-band from the scan layer.
	LayoutB
)

// Payload sizes and field offsets (Layout B; Layout A adds 2).
const (
	LayoutASize = 29
	LayoutBSize = 27

	offStatus    = 0
	offVersion   = 1
	offMAC       = 2
	offProductID = 8
	offLEDVer    = 10
	offFirmware  = 11
	offExtension = 12
	offSnapshot  = 14

	// SnapshotSize is the length of the embedded state snapshot carried by
	// version >= ExtendedVersionMin advertisements.
	SnapshotSize = 11

	// ExtendedVersionMin is the first protocol version whose advertisements
	// carry the extension byte and the state snapshot.
	ExtendedVersionMin = 4
)

// Accepted company identifier block for this controller family.
const (
	CompanyIDMin = 0x5900
	CompanyIDMax = 0x5CFF
)

// MAC is a 48-bit BLE device address.
type MAC [6]byte

// String renders the address in colon-separated hex, most significant byte
// first.
func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses a textual hardware address (colon, dash, or dot form).
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("advertise: bad MAC %q: %w", s, err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("advertise: bad MAC %q: need 48 bits, got %d", s, len(hw)*8)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// DeviceIdentity is the decoded identity of one advertising controller.
// Values are immutable once parsed; parsing the same bytes always yields the
// same identity.
type DeviceIdentity struct {
	MAC       MAC
	CompanyID uint16
	ProductID uint16

	// Version is the advertised protocol/BLE version. It selects the
	// transport framing and decides whether the extended fields below are
	// present.
	Version uint8

	// Firmware is the composite firmware version: the low 8 bits always
	// come from the firmware byte; versions >= ExtendedVersionMin extend it
	// with the 5-bit firmware flag (flag<<8 | low).
	Firmware uint16

	LEDVersion uint8
	Status     byte

	// CheckKey and FirmwareFlag are zero below ExtendedVersionMin.
	CheckKey     uint8
	FirmwareFlag uint8

	// Snapshot is the raw 11-byte embedded state snapshot, nil when the
	// advertisement predates ExtendedVersionMin.
	Snapshot []byte
}

// Parse decodes a raw manufacturer-data payload into a DeviceIdentity.
//
// companyID is consulted only for LayoutB, where the scan layer supplies it
// out-of-band; for LayoutA the embedded identifier is used and the argument
// is ignored. Parsing is pure: no state is kept between calls.
func Parse(raw []byte, layout Layout, companyID uint16) (*DeviceIdentity, error) {
	var body []byte

	switch layout {
	case LayoutA:
		if len(raw) != LayoutASize {
			return nil, fmt.Errorf("%w: got %d bytes, layout A requires %d",
				ErrInvalidLength, len(raw), LayoutASize)
		}
		companyID = binary.LittleEndian.Uint16(raw[0:2])
		body = raw[2:]
	case LayoutB:
		if len(raw) != LayoutBSize {
			return nil, fmt.Errorf("%w: got %d bytes, layout B requires %d",
				ErrInvalidLength, len(raw), LayoutBSize)
		}
		body = raw
	default:
		return nil, fmt.Errorf("%w: layout %d", ErrUnrecognizedLayout, layout)
	}

	if companyID < CompanyIDMin || companyID > CompanyIDMax {
		return nil, fmt.Errorf("%w: 0x%04X not in [0x%04X, 0x%04X]",
			ErrInvalidCompanyID, companyID, CompanyIDMin, CompanyIDMax)
	}

	id := &DeviceIdentity{
		CompanyID:  companyID,
		Status:     body[offStatus],
		Version:    body[offVersion],
		ProductID:  binary.BigEndian.Uint16(body[offProductID : offProductID+2]),
		LEDVersion: body[offLEDVer],
		Firmware:   uint16(body[offFirmware]),
	}
	copy(id.MAC[:], body[offMAC:offMAC+6])

	if id.Version >= ExtendedVersionMin {
		ext := body[offExtension]
		id.CheckKey = ext >> 6 & 0x03
		id.FirmwareFlag = ext & 0x1F
		id.Firmware |= uint16(id.FirmwareFlag) << 8

		id.Snapshot = make([]byte, SnapshotSize)
		copy(id.Snapshot, body[offSnapshot:offSnapshot+SnapshotSize])
	}

	return id, nil
}

// ParseWithCompanyID decodes a layout B payload whose company identifier
// arrived out-of-band from the scan layer.
func ParseWithCompanyID(raw []byte, companyID uint16) (*DeviceIdentity, error) {
	return Parse(raw, LayoutB, companyID)
}

// String returns a one-line summary of the identity.
func (d *DeviceIdentity) String() string {
	return fmt.Sprintf("Device{mac=%s, product=0x%04X, ver=%d, fw=0x%04X, led=0x%02X}",
		d.MAC, d.ProductID, d.Version, d.Firmware, d.LEDVersion)
}
