package command

import "fmt"

// Function is a protocol function code: the opcode byte a command starts
// with.
type Function byte

// Function codes understood by the controller family.
const (
	FuncSetColor   Function = 0x31 // set RGB + warm/cool white channels
	FuncSetEffect  Function = 0x38 // run a preset effect
	FuncSetEffectL Function = 0x61 // legacy effect opcode (older firmware)
	FuncSetPower   Function = 0x71 // power on/off
	FuncQueryState Function = 0x81 // solicit a state response
)

// Channel mask values for the color-set command's mask byte.
const (
	MaskColors byte = 0xF0 // write the RGB channels
	MaskWhites byte = 0x0F // write the warm/cool white channels
	MaskAll    byte = 0xFF // write everything
)

// Persist byte values: whether the device stores the written state across
// power cycles.
const (
	PersistSave    byte = 0xF0
	PersistDiscard byte = 0x0F
)

// Power byte values for FuncSetPower.
const (
	PowerOn  = 0x23
	PowerOff = 0x24
)

// Range declares the valid values of one template field.
// A zero Range means unconstrained byte (0-255, step 1).
type Range struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// Validate checks v against the range. The zero value accepts any byte.
func (r Range) Validate(name string, v int) error {
	min, max, step := r.Min, r.Max, r.Step
	if min == 0 && max == 0 {
		max = 0xFF
	}
	if step == 0 {
		step = 1
	}
	if v < min || v > max {
		return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrParameterOutOfRange, name, v, min, max)
	}
	if (v-min)%step != 0 {
		return fmt.Errorf("%w: %s=%d not a multiple of step %d from %d",
			ErrParameterOutOfRange, name, v, step, min)
	}
	return nil
}

// Template is one renderable command: the function code, the hex-digit
// template string, whether a trailing checksum is appended, the expected
// response length (0 for fire-and-forget), and the declared parameter
// ranges.
type Template struct {
	Function    Function         `yaml:"function"`
	Hex         string           `yaml:"hex"`
	Checksum    bool             `yaml:"checksum"`
	ResponseLen int              `yaml:"response_len"`
	Params      map[string]Range `yaml:"params"`
}

// Placeholders returns the placeholder names in template order, repeats
// included. It fails on a malformed template string.
func (t Template) Placeholders() ([]string, error) {
	var names []string
	s := t.Hex
	for i := 0; i < len(s); {
		if s[i] != '{' {
			i++
			continue
		}
		end := i + 1
		for end < len(s) && s[end] != '}' {
			end++
		}
		if end == len(s) {
			return nil, fmt.Errorf("%w: unterminated placeholder in %q", ErrBadTemplate, s)
		}
		names = append(names, s[i+1:end])
		i = end + 1
	}
	return names, nil
}
