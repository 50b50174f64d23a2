// Package command renders named command templates into checksummed byte
// sequences.
//
// A template is a string of hex digit pairs with named {placeholder}s, e.g.
//
//	31{red}{green}{blue}{warm}{cool}{mask}{persist}
//
// Build substitutes each placeholder with the two-hex-digit form of the
// matching parameter, masked to one byte, validates the value against the
// field's declared min/max/step, and appends the trailing mod-256 checksum
// when the template asks for one.
//
// A placeholder that appears more than once in a template broadcasts the
// same masked byte into every occurrence. The source protocol never
// documents a multi-byte expansion for repeated slots, so none is invented
// here.
//
// Build is pure: it validates and renders, it never touches the transport.
package command
