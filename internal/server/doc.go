// Package server implements the gateway daemon: the network side of the
// websocket bridge that internal/gateway's WSAdapter dials.
//
// The daemon owns the radio link (typically a UART-attached BLE
// co-processor reached through gateway.SerialAdapter) and exposes one
// websocket endpoint per device:
//
//	ws://<host>:<port>/device/<mac>
//
// Binary websocket messages carry raw wire frames in both directions. Text
// messages carry JSON control requests; the only control operation is "mtu",
// which forwards an MTU negotiation to the radio link and answers with the
// granted value.
//
// The daemon announces itself on the LAN as a "_ledble-gw._tcp" mDNS
// service so clients can find it without configuration.
package server
