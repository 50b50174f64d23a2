package state

import "fmt"

// Preset effect ids shared across the controller family. Individual
// products cap the usable range via their capability record.
const (
	EffectIDMin = 0x25
	EffectIDMax = 0x38
)

// effectNames maps the common preset effect ids to display names. Used by
// the CLI decode output; unknown ids render numerically.
var effectNames = map[uint8]string{
	0x25: "seven color cross fade",
	0x26: "red gradual change",
	0x27: "green gradual change",
	0x28: "blue gradual change",
	0x29: "yellow gradual change",
	0x2A: "cyan gradual change",
	0x2B: "purple gradual change",
	0x2C: "white gradual change",
	0x2D: "red green cross fade",
	0x2E: "red blue cross fade",
	0x2F: "green blue cross fade",
	0x30: "seven color strobe flash",
	0x31: "red strobe flash",
	0x32: "green strobe flash",
	0x33: "blue strobe flash",
	0x34: "yellow strobe flash",
	0x35: "cyan strobe flash",
	0x36: "purple strobe flash",
	0x37: "white strobe flash",
	0x38: "seven color jumping change",
}

// EffectName returns the display name of a preset effect id.
func EffectName(id uint8) string {
	if name, ok := effectNames[id]; ok {
		return name
	}
	return fmt.Sprintf("effect 0x%02X", id)
}
