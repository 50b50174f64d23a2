package advertise

import "errors"

var (
	// ErrInvalidLength indicates the payload does not match the exact size
	// required by the requested layout.
	ErrInvalidLength = errors.New("advertise: invalid payload length")

	// ErrInvalidCompanyID indicates the company identifier is outside the
	// vendor's accepted block.
	ErrInvalidCompanyID = errors.New("advertise: company identifier out of range")

	// ErrUnrecognizedLayout indicates the caller passed a layout value this
	// package does not know about.
	ErrUnrecognizedLayout = errors.New("advertise: unrecognized layout")
)
