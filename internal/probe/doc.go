// Package probe resolves a device's channel capabilities at runtime by
// issuing bounded test writes and observing the reported state.
//
// The sequence is an explicit state machine: save the current state, probe
// the RGB, warm-white and cool-white channels in turn, then restore the
// saved state unconditionally so the device is never left showing test
// values. A probe step that times out or reads back wrong records the
// channel as unsupported and moves on; only a transport failure aborts the
// run. Delays go through an injectable clock so tests run without timers.
package probe
