package structapi

import (
	"encoding/binary"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Struct is an ordered collection of fields describing a binary layout.
// Unpack fills the field values from a byte stream in declaration
// order; Pack is the inverse. A Struct can itself be used as a field of
// another Struct through Nested.
type Struct struct {
	name   string
	order  ByteOrder
	fields []*Field
	index  map[string]*Field
}

// New builds a struct from fields in declaration order with Network
// byte order. It panics on nil fields, unnamed non-pad fields, and
// duplicate names, which are programming errors in the layout
// declaration.
func New(name string, fields ...*Field) *Struct {
	s := &Struct{
		name:  name,
		order: Network,
		index: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if f == nil {
			panic("structapi: nil field in struct " + name)
		}
		if f.name == "" {
			if f.kind != KindPad {
				panic("structapi: unnamed non-pad field in struct " + name)
			}
			s.fields = append(s.fields, f)
			continue
		}
		if _, dup := s.index[f.name]; dup {
			panic("structapi: duplicate field " + f.name + " in struct " + name)
		}
		s.index[f.name] = f
		s.fields = append(s.fields, f)
	}
	return s
}

// WithOrder sets the struct's byte order, returning the struct so it
// chains with New.
func (s *Struct) WithOrder(o ByteOrder) *Struct {
	s.order = o
	return s
}

func (s *Struct) Name() string { return s.name }

// CType mirrors Field.CType for structs used as nested fields.
func (s *Struct) CType() string { return s.name }

func (s *Struct) Order() ByteOrder { return s.order }

func (s *Struct) Fields() []*Field { return s.fields }

func (s *Struct) Field(name string) (*Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// Size is the struct's size in bytes under the current field counts.
// Dynamically sized fields contribute their count as of the last
// unpack or pack.
func (s *Struct) Size() int {
	total := 0
	for _, f := range s.fields {
		if f.kind == KindStruct {
			total += f.inner.Size()
			continue
		}
		total += f.Size() * f.count
	}
	return total
}

// Format renders the layout as a struct format string with the byte
// order prefix.
func (s *Struct) Format() string {
	return s.order.String() + s.bareFormat()
}

func (s *Struct) bareFormat() string {
	var sb strings.Builder
	for _, f := range s.fields {
		if f.kind == KindStruct {
			sb.WriteString(f.inner.bareFormat())
			continue
		}
		sb.WriteString(f.Format())
	}
	return sb.String()
}

// Clone returns a deep copy of the layout with no field values, so the
// same declaration can back independent decoders.
func (s *Struct) Clone() *Struct {
	fields := make([]*Field, len(s.fields))
	for i, f := range s.fields {
		cp := *f
		cp.val = nil
		if f.inner != nil {
			cp.inner = f.inner.Clone()
		}
		fields[i] = &cp
	}
	return New(s.name, fields...).WithOrder(s.order)
}

// Unpack fills the struct's fields from data.
func (s *Struct) Unpack(data []byte) error {
	return s.UnpackStream(NewStream(data))
}

// UnpackStream fills the struct's fields from the stream's current
// offset, leaving the stream positioned after the struct.
func (s *Struct) UnpackStream(st *Stream) error {
	for _, f := range s.fields {
		if err := s.unpackField(f, st); err != nil {
			if f.name != "" {
				return errors.Wrapf(err, "field %q", f.name)
			}
			return err
		}
	}
	return nil
}

func (s *Struct) unpackField(f *Field, st *Stream) error {
	if f.kind == KindStruct {
		if err := f.inner.UnpackStream(st); err != nil {
			return err
		}
		f.val = f.inner
		return nil
	}

	count, err := f.resolveCount(s)
	if err != nil {
		return err
	}
	if count < 0 {
		return errors.Errorf("negative count %d", count)
	}
	f.count = count

	bo := s.order.Binary()
	if f.order != nil {
		bo = f.order.Binary()
	}

	switch f.kind {
	case KindPad:
		_, err := st.Next(count)
		return err
	case KindChar, KindBytes:
		raw, err := st.Next(count)
		if err != nil {
			return err
		}
		f.val = f.decodeBytes(raw)
		return nil
	case KindPascal:
		raw, err := st.Next(count)
		if err != nil {
			return err
		}
		if count == 0 {
			return errors.New("pascal field needs a length byte")
		}
		n := int(raw[0])
		if n > count-1 {
			n = count - 1
		}
		f.val = f.decodeBytes(raw[1 : 1+n])
		return nil
	}

	if count == 1 {
		raw, err := st.Next(f.kind.Size())
		if err != nil {
			return err
		}
		f.val = readScalar(f.kind, bo, raw)
		return nil
	}
	val, err := s.unpackScalars(f, st, bo, count)
	if err != nil {
		return err
	}
	f.val = val
	return nil
}

// unpackScalars reads count elements into a typed slice so multi-count
// fields compare naturally in user code.
func (s *Struct) unpackScalars(f *Field, st *Stream, bo binary.ByteOrder, count int) (interface{}, error) {
	raw, err := st.Next(f.kind.Size() * count)
	if err != nil {
		return nil, err
	}
	size := f.kind.Size()
	switch {
	case f.kind == KindBool:
		out := make([]bool, count)
		for i := range out {
			out[i] = readScalar(f.kind, bo, raw[i*size:]).(bool)
		}
		return out, nil
	case f.kind.float():
		out := make([]float64, count)
		for i := range out {
			out[i] = readScalar(f.kind, bo, raw[i*size:]).(float64)
		}
		return out, nil
	case f.kind.unsigned():
		out := make([]uint64, count)
		for i := range out {
			out[i] = readScalar(f.kind, bo, raw[i*size:]).(uint64)
		}
		return out, nil
	default:
		out := make([]int64, count)
		for i := range out {
			out[i] = readScalar(f.kind, bo, raw[i*size:]).(int64)
		}
		return out, nil
	}
}

func (f *Field) decodeBytes(raw []byte) interface{} {
	cp := append([]byte(nil), raw...)
	if f.encoding != "" {
		text, _ := SafeString(cp)
		return text
	}
	return cp
}

// Pack serializes the current field values.
func (s *Struct) Pack() ([]byte, error) {
	out := make([]byte, 0, s.Size())
	for _, f := range s.fields {
		var err error
		out, err = s.packField(out, f)
		if err != nil {
			if f.name != "" {
				return nil, errors.Wrapf(err, "field %q", f.name)
			}
			return nil, err
		}
	}
	return out, nil
}

func (s *Struct) packField(dst []byte, f *Field) ([]byte, error) {
	bo := s.order.Binary()
	if f.order != nil {
		bo = f.order.Binary()
	}

	switch f.kind {
	case KindStruct:
		inner, err := f.inner.Pack()
		if err != nil {
			return nil, err
		}
		return append(dst, inner...), nil
	case KindPad:
		return append(dst, make([]byte, f.count)...), nil
	case KindChar, KindBytes:
		raw, err := f.rawBytes()
		if err != nil {
			return nil, err
		}
		if f.dynamic() {
			f.count = len(raw)
		} else if len(raw) < f.count {
			raw = append(raw, make([]byte, f.count-len(raw))...)
		}
		if len(raw) != f.count {
			return nil, errors.Errorf("have %d bytes, field width is %d", len(raw), f.count)
		}
		return append(dst, raw...), nil
	case KindPascal:
		raw, err := f.rawBytes()
		if err != nil {
			return nil, err
		}
		if len(raw) > 255 {
			return nil, errors.Errorf("%d bytes exceed pascal length byte", len(raw))
		}
		width := f.count
		if f.dynamic() {
			width = len(raw) + 1
			f.count = width
		}
		if len(raw) > width-1 {
			return nil, errors.Errorf("%d bytes do not fit in pascal field of width %d", len(raw), width)
		}
		dst = append(dst, byte(len(raw)))
		dst = append(dst, raw...)
		return append(dst, make([]byte, width-1-len(raw))...), nil
	}

	if f.val == nil {
		return nil, errors.New("no value to pack")
	}
	if f.count == 1 {
		norm, err := normalizeScalar(f.kind, f.val)
		if err != nil {
			return nil, err
		}
		return appendScalar(dst, f.kind, bo, norm)
	}

	vals, err := elementValues(f.val)
	if err != nil {
		return nil, err
	}
	if len(vals) != f.count {
		return nil, errors.Errorf("have %d values, count is %d", len(vals), f.count)
	}
	for _, v := range vals {
		norm, err := normalizeScalar(f.kind, v)
		if err != nil {
			return nil, err
		}
		dst, err = appendScalar(dst, f.kind, bo, norm)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (f *Field) rawBytes() ([]byte, error) {
	switch v := f.val.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, errors.New("no value to pack")
	}
	return nil, errors.Errorf("value %v (%T) is not bytes", f.val, f.val)
}

// normalizeScalar coerces a user supplied value to the representation
// appendScalar expects for kind k.
func normalizeScalar(k Kind, v interface{}) (interface{}, error) {
	if k == KindBool {
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, errors.Errorf("value %v (%T) is not a bool", v, v)
	}
	rv := reflect.ValueOf(v)
	switch {
	case k.float():
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		}
	case k.unsigned():
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return uint64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return rv.Uint(), nil
		}
	case k.signed():
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint()), nil
		}
	}
	return nil, errors.Errorf("cannot pack %v (%T) as %s", v, v, k.CType())
}

func elementValues(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("value %v (%T) is not a slice", v, v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// Set stores a value to pack for the named field. Type compatibility is
// checked at Pack time.
func (s *Struct) Set(name string, v interface{}) error {
	f, ok := s.index[name]
	if !ok {
		return errors.Errorf("no field %q in struct %q", name, s.name)
	}
	if f.kind == KindStruct {
		return errors.Errorf("field %q is a nested struct, set its fields directly", name)
	}
	f.val = v
	return nil
}

// Value returns the named field's value, nil when the field does not
// exist or has not been unpacked.
func (s *Struct) Value(name string) interface{} {
	if f, ok := s.index[name]; ok {
		return f.val
	}
	return nil
}

// Values returns all field values in declaration order, skipping pads.
func (s *Struct) Values() []interface{} {
	out := make([]interface{}, 0, len(s.fields))
	for _, f := range s.fields {
		if f.kind == KindPad {
			continue
		}
		out = append(out, f.val)
	}
	return out
}

// Int returns the named field as a signed integer, zero when absent or
// of another type.
func (s *Struct) Int(name string) int64 {
	switch v := s.Value(name).(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	}
	return 0
}

func (s *Struct) Uint(name string) uint64 {
	switch v := s.Value(name).(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	}
	return 0
}

func (s *Struct) Float(name string) float64 {
	switch v := s.Value(name).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

func (s *Struct) Bool(name string) bool {
	v, _ := s.Value(name).(bool)
	return v
}

func (s *Struct) Bytes(name string) []byte {
	switch v := s.Value(name).(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

func (s *Struct) String(name string) string {
	switch v := s.Value(name).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Nested returns the named nested struct, nil when the field is not one.
func (s *Struct) Nested(name string) *Struct {
	if f, ok := s.index[name]; ok && f.kind == KindStruct {
		return f.inner
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Struct) MarshalBinary() ([]byte, error) {
	return s.Pack()
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Struct) UnmarshalBinary(data []byte) error {
	return s.Unpack(data)
}
