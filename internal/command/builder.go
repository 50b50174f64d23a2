package command

import "fmt"

// Build renders tmpl with params into the final command bytes.
//
// Literal hex digit pairs are copied verbatim; each {placeholder} consumes
// the matching parameter, validated against its declared range and masked
// to one byte. A repeated placeholder emits the same byte at every
// occurrence. When the template declares a checksum, the mod-256 sum of
// all rendered bytes is appended last.
func Build(tmpl Template, params map[string]int) ([]byte, error) {
	s := tmpl.Hex
	out := make([]byte, 0, len(s)/2+1)

	for i := 0; i < len(s); {
		if s[i] == '{' {
			end := i + 1
			for end < len(s) && s[end] != '}' {
				end++
			}
			if end == len(s) {
				return nil, fmt.Errorf("%w: unterminated placeholder in %q", ErrBadTemplate, s)
			}
			name := s[i+1 : end]

			v, ok := params[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingParameter, name)
			}
			if err := tmpl.Params[name].Validate(name, v); err != nil {
				return nil, err
			}

			out = append(out, byte(v&0xFF))
			i = end + 1
			continue
		}

		if i+1 >= len(s) {
			return nil, fmt.Errorf("%w: odd hex run in %q", ErrBadTemplate, s)
		}
		hi, ok1 := hexVal(s[i])
		lo, ok2 := hexVal(s[i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: bad hex digits %q in %q", ErrBadTemplate, s[i:i+2], s)
		}
		out = append(out, hi<<4|lo)
		i += 2
	}

	if tmpl.Checksum {
		out = append(out, Checksum(out))
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
