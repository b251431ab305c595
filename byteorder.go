package structapi

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

// ByteOrder selects the byte ordering scheme used when packing and
// unpacking binary data.
type ByteOrder byte

const (
	// Network order (big-endian), the default for new structs.
	Network ByteOrder = iota
	BigEndian
	LittleEndian
	// Native is the byte order of the host machine.
	Native
	// Standard is native ordering with standard sizes. Sizes in this
	// package are always standard, so it resolves like Native.
	Standard
)

var hostOrder = func() binary.ByteOrder {
	probe := uint16(1)
	if *(*byte)(unsafe.Pointer(&probe)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// Binary resolves the order to its encoding/binary equivalent.
func (o ByteOrder) Binary() binary.ByteOrder {
	switch o {
	case LittleEndian:
		return binary.LittleEndian
	case Native, Standard:
		return hostOrder
	default:
		return binary.BigEndian
	}
}

// String returns the struct format prefix character for the order.
func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return ">"
	case LittleEndian:
		return "<"
	case Native:
		return "@"
	case Standard:
		return "="
	default:
		return "!"
	}
}

// ParseByteOrder accepts either a format prefix character or a spelled
// out order name ("network", "big", "little", "native", "standard").
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "!", "network":
		return Network, nil
	case ">", "big":
		return BigEndian, nil
	case "<", "little":
		return LittleEndian, nil
	case "@", "native":
		return Native, nil
	case "=", "standard":
		return Standard, nil
	}
	return Network, errors.Errorf("unknown byte order %q", s)
}
