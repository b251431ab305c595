package structapi

import (
	"fmt"

	"github.com/pkg/errors"
)

// Compile parses a struct format string ("!Ih6s", "<2hq", ...) into an
// anonymous layout. An optional leading order character selects the
// byte order, Network otherwise. Counts repeat scalar items, extend pad
// runs, and give the byte length of "s" and "p" items. Fields are named
// positionally ("f0", "f1", ...); pads are unnamed.
func Compile(format string) (*Struct, error) {
	order := Network
	i := 0
	if len(format) > 0 {
		if o, err := ParseByteOrder(format[:1]); err == nil {
			order = o
			i = 1
		}
	}

	var fields []*Field
	idx := 0
	count := -1
	for ; i < len(format); i++ {
		c := format[i]
		switch {
		case c == ' ':
			if count >= 0 {
				return nil, errors.Errorf("format %q: count split at position %d", format, i)
			}
		case c >= '0' && c <= '9':
			if count < 0 {
				count = 0
			}
			count = count*10 + int(c-'0')
			if count > 1<<24 {
				return nil, errors.Errorf("format %q: count overflow at position %d", format, i)
			}
		default:
			kind := Kind(c)
			if !kind.valid() {
				return nil, errors.Errorf("format %q: unknown code %q at position %d", format, c, i)
			}
			if count < 0 {
				count = 1
			}
			if kind == KindPad {
				fields = append(fields, PadBytes(count))
			} else {
				name := fmt.Sprintf("f%d", idx)
				idx++
				fields = append(fields, NewField(name, kind, WithCount(count)))
			}
			count = -1
		}
	}
	if count >= 0 {
		return nil, errors.Errorf("format %q: trailing count without a code", format)
	}

	return New("", fields...).WithOrder(order), nil
}

// MustCompile is Compile for layouts known at program start; it panics
// on a malformed format.
func MustCompile(format string) *Struct {
	s, err := Compile(format)
	if err != nil {
		panic(err)
	}
	return s
}
