// Package device exposes the controller-level operations a host drives:
// power, colour and white channels, brightness, effects, state queries and
// capability resolution. It glues the capability database and command
// builder to a transport session and decodes the responses.
package device
