package command

import "errors"

var (
	// ErrUnknownFunction indicates no template exists for the requested
	// function code, neither product-specific nor global.
	ErrUnknownFunction = errors.New("command: unknown function")

	// ErrMissingParameter indicates the template contains a placeholder the
	// caller supplied no value for.
	ErrMissingParameter = errors.New("command: missing parameter")

	// ErrParameterOutOfRange indicates a parameter violates its declared
	// min/max/step.
	ErrParameterOutOfRange = errors.New("command: parameter out of range")

	// ErrBadTemplate indicates the template string itself is malformed
	// (odd hex run, unterminated placeholder, bad hex digit).
	ErrBadTemplate = errors.New("command: malformed template")
)
