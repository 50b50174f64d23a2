// Package state decodes state-query responses and embedded advertisement
// snapshots into a DeviceState.
//
// A state response is at least 14 bytes:
//
//	[0]     0x81 response marker
//	[1]     device mode id
//	[2]     power (0x23 on, 0x24 off)
//	[3]     mode-type
//	[4]     effect id
//	[5]     effect speed
//	[6-8]   red, green, blue
//	[9]     warm white
//	[10]    effect brightness (0-100)
//	[11]    cool white
//	[12]    firmware version echo
//	[last]  mod-256 checksum over everything before it
//
// The mode-type byte is the crux: a small closed set of values means the
// device is holding a static color and the RGB/white fields are the literal
// output; every other value means a running effect, in which case the RGB
// fields are transient animation state and brightness comes from the
// 0-100 effect brightness byte instead.
package state
