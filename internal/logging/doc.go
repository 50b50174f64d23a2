// Package logging provides structured logging for the protocol engine.
//
// It wraps zap with convenience functions for the patterns used throughout
// the engine, most importantly raw protocol byte dumps.
//
// The engine is a library first: when no level is configured, logging is a
// nop so embedding applications and CLI commands stay silent by default.
// Set LEDBLE_LOG_LEVEL (debug, info, warn, error) or call Initialize with
// an explicit level to turn output on.
//
// Raw byte logging:
//
//	logging.LogRawBytes("notify frame", data)
//
// emits length, hex, and a printable-ASCII rendering at debug level, which
// is the main tool for protocol debugging against real devices.
//
// All functions are safe for concurrent use.
package logging
