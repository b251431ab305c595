package structapi

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Kind identifies a field's wire representation. The values are the
// struct format characters for the corresponding C types.
type Kind byte

const (
	KindPad     Kind = 'x'
	KindChar    Kind = 'c'
	KindInt8    Kind = 'b'
	KindUint8   Kind = 'B'
	KindBool    Kind = '?'
	KindInt16   Kind = 'h'
	KindUint16  Kind = 'H'
	KindInt32   Kind = 'i'
	KindUint32  Kind = 'I'
	KindLong    Kind = 'l'
	KindUlong   Kind = 'L'
	KindInt64   Kind = 'q'
	KindUint64  Kind = 'Q'
	KindSSizeT  Kind = 'n'
	KindSizeT   Kind = 'N'
	KindFloat32 Kind = 'f'
	KindFloat64 Kind = 'd'
	KindBytes   Kind = 's'
	KindPascal  Kind = 'p'
	KindPointer Kind = 'P'

	// KindStruct marks a nested struct field. It has no format
	// character of its own.
	KindStruct Kind = 0
)

type kindInfo struct {
	size  int
	ctype string
}

var kinds = map[Kind]kindInfo{
	KindPad:     {1, "pad byte"},
	KindChar:    {1, "char"},
	KindInt8:    {1, "signed char"},
	KindUint8:   {1, "unsigned char"},
	KindBool:    {1, "_Bool"},
	KindInt16:   {2, "short"},
	KindUint16:  {2, "unsigned short"},
	KindInt32:   {4, "int"},
	KindUint32:  {4, "unsigned int"},
	KindLong:    {4, "long"},
	KindUlong:   {4, "unsigned long"},
	KindInt64:   {8, "long long"},
	KindUint64:  {8, "unsigned long long"},
	KindSSizeT:  {8, "ssize_t"},
	KindSizeT:   {8, "size_t"},
	KindFloat32: {4, "float"},
	KindFloat64: {8, "double"},
	KindBytes:   {1, "char[]"},
	KindPascal:  {1, "char[]"},
	KindPointer: {8, "void *"},
}

// Size is the wire size of a single element of this kind.
func (k Kind) Size() int {
	return kinds[k].size
}

// CType names the C type this kind maps to.
func (k Kind) CType() string {
	return kinds[k].ctype
}

func (k Kind) valid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) signed() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindLong, KindInt64, KindSSizeT:
		return true
	}
	return false
}

func (k Kind) unsigned() bool {
	switch k {
	case KindUint8, KindUint16, KindUint32, KindUlong, KindUint64, KindSizeT, KindPointer:
		return true
	}
	return false
}

func (k Kind) float() bool {
	return k == KindFloat32 || k == KindFloat64
}

// SizeFunc resolves a dynamic element count for a field from sibling
// fields that were unpacked earlier in the same pass.
type SizeFunc func(s *Struct) int

// Field describes one member of a binary layout and holds its value
// between an unpack and a pack.
type Field struct {
	name     string
	kind     Kind
	count    int
	sizeFrom string
	sizeFunc SizeFunc
	order    *ByteOrder
	encoding string
	inner    *Struct
	val      interface{}
}

// Option configures a field at construction.
type Option func(*Field)

// WithCount sets a fixed element count. For KindBytes and KindPascal
// the count is the byte length of the field.
func WithCount(n int) Option {
	return func(f *Field) { f.count = n }
}

// WithSizeFrom resolves the element count at unpack time from the value
// of an already-unpacked sibling field.
func WithSizeFrom(name string) Option {
	return func(f *Field) { f.sizeFrom = name }
}

// WithSizeFunc resolves the element count at unpack time through a
// callback over the containing struct.
func WithSizeFunc(fn SizeFunc) Option {
	return func(f *Field) { f.sizeFunc = fn }
}

// WithOrder overrides the containing struct's byte order for this field,
// for instance a little-endian number inside a big-endian stream.
func WithOrder(o ByteOrder) Option {
	return func(f *Field) { f.order = &o }
}

// WithEncoding makes a bytes field decode to (and encode from) a Go
// string. Only "utf-8" is supported.
func WithEncoding(enc string) Option {
	return func(f *Field) { f.encoding = enc }
}

// NewField creates a field of an explicit kind. The typed constructors
// below are usually more convenient.
func NewField(name string, kind Kind, opts ...Option) *Field {
	f := &Field{name: name, kind: kind, count: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func PadBytes(n int) *Field { return NewField("", KindPad, WithCount(n)) }

// Char reads single bytes. A count above one yields one contiguous
// byte slice, not per-character elements, the same as Bytes.
func Char(name string, opts ...Option) *Field { return NewField(name, KindChar, opts...) }

func Int8(name string, opts ...Option) *Field { return NewField(name, KindInt8, opts...) }

func Uint8(name string, opts ...Option) *Field { return NewField(name, KindUint8, opts...) }

func Bool(name string, opts ...Option) *Field { return NewField(name, KindBool, opts...) }

func Int16(name string, opts ...Option) *Field { return NewField(name, KindInt16, opts...) }

func Uint16(name string, opts ...Option) *Field { return NewField(name, KindUint16, opts...) }

func Int32(name string, opts ...Option) *Field { return NewField(name, KindInt32, opts...) }

func Uint32(name string, opts ...Option) *Field { return NewField(name, KindUint32, opts...) }

func Long(name string, opts ...Option) *Field { return NewField(name, KindLong, opts...) }

func Ulong(name string, opts ...Option) *Field { return NewField(name, KindUlong, opts...) }

func Int64(name string, opts ...Option) *Field { return NewField(name, KindInt64, opts...) }

func Uint64(name string, opts ...Option) *Field { return NewField(name, KindUint64, opts...) }

func Float32(name string, opts ...Option) *Field { return NewField(name, KindFloat32, opts...) }

func Float64(name string, opts ...Option) *Field { return NewField(name, KindFloat64, opts...) }

func Bytes(name string, opts ...Option) *Field { return NewField(name, KindBytes, opts...) }

func Pascal(name string, opts ...Option) *Field { return NewField(name, KindPascal, opts...) }

func Pointer(name string, opts ...Option) *Field { return NewField(name, KindPointer, opts...) }

// Nested embeds another struct as a field. The nested struct consumes
// its own size from the stream.
func Nested(name string, inner *Struct) *Field {
	f := NewField(name, KindStruct)
	f.inner = inner
	return f
}

func (f *Field) Name() string { return f.name }

func (f *Field) Kind() Kind { return f.kind }

// Size is the wire size of one element of the field.
func (f *Field) Size() int {
	if f.kind == KindStruct {
		return f.inner.Size()
	}
	return f.kind.Size()
}

// Count is the element count, updated after an unpack if the field is
// dynamically sized.
func (f *Field) Count() int { return f.count }

func (f *Field) CType() string {
	if f.kind == KindStruct {
		return f.inner.CType()
	}
	return f.kind.CType()
}

// Format returns the field's struct format fragment, e.g. "2h".
func (f *Field) Format() string {
	if f.kind == KindStruct {
		return f.inner.bareFormat()
	}
	return fmt.Sprintf("%d%c", f.count, byte(f.kind))
}

// Value returns the unpacked (or Set) value, nil before either.
func (f *Field) Value() interface{} { return f.val }

func (f *Field) String() string {
	return fmt.Sprintf("<%s> %d", f.CType(), f.Size())
}

func (f *Field) dynamic() bool {
	return f.sizeFrom != "" || f.sizeFunc != nil
}

// resolveCount determines how many elements to unpack, consulting the
// dynamic size sources when the field has one.
func (f *Field) resolveCount(s *Struct) (int, error) {
	if f.sizeFunc != nil {
		return f.sizeFunc(s), nil
	}
	if f.sizeFrom != "" {
		src, ok := s.index[f.sizeFrom]
		if !ok {
			return 0, errors.Errorf("size source %q does not exist", f.sizeFrom)
		}
		if src.val == nil {
			return 0, errors.Errorf("size source %q is not unpacked yet", f.sizeFrom)
		}
		n, err := toInt(src.val)
		if err != nil {
			return 0, errors.Wrapf(err, "size source %q", f.sizeFrom)
		}
		return n, nil
	}
	return f.count, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, errors.Errorf("value %v (%T) is not an integer", v, v)
}

// readScalar decodes one element of kind k from raw, which must hold
// exactly k.Size() bytes. Integer kinds normalize to int64 or uint64,
// float kinds to float64.
func readScalar(k Kind, bo binary.ByteOrder, raw []byte) interface{} {
	switch k {
	case KindInt8:
		return int64(int8(raw[0]))
	case KindUint8:
		return uint64(raw[0])
	case KindBool:
		return raw[0] != 0
	case KindInt16:
		return int64(int16(bo.Uint16(raw)))
	case KindUint16:
		return uint64(bo.Uint16(raw))
	case KindInt32, KindLong:
		return int64(int32(bo.Uint32(raw)))
	case KindUint32, KindUlong:
		return uint64(bo.Uint32(raw))
	case KindInt64, KindSSizeT:
		return int64(bo.Uint64(raw))
	case KindUint64, KindSizeT, KindPointer:
		return uint64(bo.Uint64(raw))
	case KindFloat32:
		return float64(math.Float32frombits(bo.Uint32(raw)))
	case KindFloat64:
		return math.Float64frombits(bo.Uint64(raw))
	}
	return nil
}

// appendScalar encodes one element of kind k. v must already be
// normalized the way readScalar produces it.
func appendScalar(dst []byte, k Kind, bo binary.ByteOrder, v interface{}) ([]byte, error) {
	var bits uint64
	switch k {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Errorf("value %v (%T) is not a bool", v, v)
		}
		if b {
			bits = 1
		}
	case KindFloat32:
		f, ok := v.(float64)
		if !ok {
			return nil, errors.Errorf("value %v (%T) is not a float", v, v)
		}
		bits = uint64(math.Float32bits(float32(f)))
	case KindFloat64:
		f, ok := v.(float64)
		if !ok {
			return nil, errors.Errorf("value %v (%T) is not a float", v, v)
		}
		bits = math.Float64bits(f)
	default:
		switch n := v.(type) {
		case int64:
			bits = uint64(n)
		case uint64:
			bits = n
		default:
			return nil, errors.Errorf("value %v (%T) is not numeric", v, v)
		}
	}

	var scratch [8]byte
	switch k.Size() {
	case 1:
		scratch[0] = byte(bits)
	case 2:
		bo.PutUint16(scratch[:2], uint16(bits))
	case 4:
		bo.PutUint32(scratch[:4], uint32(bits))
	case 8:
		bo.PutUint64(scratch[:8], bits)
	}
	return append(dst, scratch[:k.Size()]...), nil
}
