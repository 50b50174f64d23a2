// Package gateway provides transport adapters for devices that are reached
// through a bridge rather than a local BLE stack: a WebSocket adapter for
// network gateway daemons, an mDNS scanner to find those gateways, and a
// serial adapter for UART-attached BLE bridge firmware.
//
// All adapters satisfy transport.Adapter, so a Session drives a bridged
// device exactly like a locally connected one.
package gateway
