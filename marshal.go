package structapi

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Marshal encodes a Go struct to binary using Network byte order.
// Exported fields are encoded in declaration order; the wire kind is
// derived from the Go type (uint16 -> unsigned short, int32 -> int,
// string and []byte -> char[], nested structs recurse) and can be
// adjusted through the `struct` tag:
//
//	type Frame struct {
//	    Length  uint32
//	    Flags   uint16 `struct:"order=little"`
//	    Payload []byte `struct:"sizefrom=Length"`
//	    Internal int   `struct:"-"`
//	}
//
// Recognized options: "-" (skip), type=<format code>, count=N,
// sizefrom=<Go field name>, order=<byte order name>, pad=N (N pad
// bytes before the field), encoding=utf-8|none.
func Marshal(v interface{}) ([]byte, error) {
	return MarshalOrder(v, Network)
}

// MarshalOrder is Marshal with an explicit default byte order.
func MarshalOrder(v interface{}, order ByteOrder) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	return appendTagged(nil, rv, order)
}

// Unmarshal decodes binary data into a Go struct, the inverse of
// Marshal. v must be a pointer to a struct. A trailing string or
// []byte field without count or sizefrom consumes the remainder of the
// input.
func Unmarshal(data []byte, v interface{}) error {
	return UnmarshalOrder(data, v, Network)
}

// UnmarshalOrder is Unmarshal with an explicit default byte order.
func UnmarshalOrder(data []byte, v interface{}, order ByteOrder) error {
	return unmarshalStream(NewStream(data), v, order)
}

// UnmarshalStream decodes from the stream's current offset, leaving
// the stream positioned after the consumed bytes.
func UnmarshalStream(st *Stream, v interface{}) error {
	return unmarshalStream(st, v, Network)
}

func unmarshalStream(st *Stream, v interface{}, order ByteOrder) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("unmarshal target %T is not a non-nil pointer", v)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return errors.Errorf("unmarshal target %T does not point to a struct", v)
	}
	return decodeTagged(st, rv, order)
}

func structValue(v interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return rv, errors.Errorf("marshal source %T is nil", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return rv, errors.Errorf("marshal source %T is not a struct", v)
	}
	return rv, nil
}

type tagOptions struct {
	skip     bool
	kind     Kind
	count    int
	sizeFrom string
	order    *ByteOrder
	pad      int
	encoding string
}

func parseTag(sf reflect.StructField) (tagOptions, error) {
	var opts tagOptions
	tag := sf.Tag.Get("struct")
	if tag == "" {
		return opts, nil
	}
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return opts, errors.Errorf("malformed tag option %q", part)
		}
		key, val := kv[0], kv[1]
		switch key {
		case "type":
			if len(val) != 1 || !Kind(val[0]).valid() {
				return opts, errors.Errorf("unknown format code %q", val)
			}
			opts.kind = Kind(val[0])
		case "count":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return opts, errors.Errorf("bad count %q", val)
			}
			opts.count = n
		case "sizefrom":
			opts.sizeFrom = val
		case "order":
			o, err := ParseByteOrder(val)
			if err != nil {
				return opts, err
			}
			opts.order = &o
		case "pad":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return opts, errors.Errorf("bad pad %q", val)
			}
			opts.pad = n
		case "encoding":
			if val != "utf-8" && val != "none" {
				return opts, errors.Errorf("unsupported encoding %q", val)
			}
			opts.encoding = val
		default:
			return opts, errors.Errorf("unknown tag option %q", key)
		}
	}
	return opts, nil
}

func kindForType(t reflect.Type) (Kind, error) {
	switch t.Kind() {
	case reflect.Int8:
		return KindInt8, nil
	case reflect.Int16:
		return KindInt16, nil
	case reflect.Int32:
		return KindInt32, nil
	case reflect.Int64, reflect.Int:
		return KindInt64, nil
	case reflect.Uint8:
		return KindUint8, nil
	case reflect.Uint16:
		return KindUint16, nil
	case reflect.Uint32:
		return KindUint32, nil
	case reflect.Uint64, reflect.Uint:
		return KindUint64, nil
	case reflect.Uintptr:
		return KindPointer, nil
	case reflect.Float32:
		return KindFloat32, nil
	case reflect.Float64:
		return KindFloat64, nil
	case reflect.Bool:
		return KindBool, nil
	}
	return 0, errors.Errorf("type %s has no wire representation", t)
}

func appendTagged(dst []byte, rv reflect.Value, order ByteOrder) ([]byte, error) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		opts, err := parseTag(sf)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", sf.Name)
		}
		if opts.skip {
			continue
		}
		if opts.pad > 0 {
			dst = append(dst, make([]byte, opts.pad)...)
		}
		fo := order
		if opts.order != nil {
			fo = *opts.order
		}
		dst, err = appendGoField(dst, rv.Field(i), opts, fo)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", sf.Name)
		}
	}
	return dst, nil
}

func appendGoField(dst []byte, fv reflect.Value, opts tagOptions, order ByteOrder) ([]byte, error) {
	bo := order.Binary()

	switch {
	case fv.Kind() == reflect.Struct:
		return appendTagged(dst, fv, order)
	case isBytesValue(fv):
		raw := bytesValue(fv)
		if opts.kind == KindPascal {
			if len(raw) > 255 {
				return nil, errors.Errorf("%d bytes exceed pascal length byte", len(raw))
			}
			width := opts.count
			if width == 0 {
				width = len(raw) + 1
			}
			if len(raw) > width-1 {
				return nil, errors.Errorf("%d bytes do not fit in pascal field of width %d", len(raw), width)
			}
			dst = append(dst, byte(len(raw)))
			dst = append(dst, raw...)
			return append(dst, make([]byte, width-1-len(raw))...), nil
		}
		if opts.count > 0 {
			if len(raw) > opts.count {
				return nil, errors.Errorf("have %d bytes, field width is %d", len(raw), opts.count)
			}
			raw = append(raw, make([]byte, opts.count-len(raw))...)
		}
		return append(dst, raw...), nil
	case fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array:
		kind := opts.kind
		if kind == 0 {
			var err error
			kind, err = kindForType(fv.Type().Elem())
			if err != nil {
				return nil, err
			}
		}
		if opts.count > 0 && fv.Len() != opts.count {
			return nil, errors.Errorf("have %d values, count is %d", fv.Len(), opts.count)
		}
		for i := 0; i < fv.Len(); i++ {
			norm, err := normalizeScalar(kind, fv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			dst, err = appendScalar(dst, kind, bo, norm)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		kind := opts.kind
		if kind == 0 {
			var err error
			kind, err = kindForType(fv.Type())
			if err != nil {
				return nil, err
			}
		}
		norm, err := normalizeScalar(kind, fv.Interface())
		if err != nil {
			return nil, err
		}
		return appendScalar(dst, kind, bo, norm)
	}
}

func decodeTagged(st *Stream, rv reflect.Value, order ByteOrder) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		opts, err := parseTag(sf)
		if err != nil {
			return errors.Wrapf(err, "field %s", sf.Name)
		}
		if opts.skip {
			continue
		}
		if opts.pad > 0 {
			if _, err := st.Next(opts.pad); err != nil {
				return errors.Wrapf(err, "field %s", sf.Name)
			}
		}
		fo := order
		if opts.order != nil {
			fo = *opts.order
		}
		if err := decodeGoField(st, rv, rv.Field(i), opts, fo); err != nil {
			return errors.Wrapf(err, "field %s", sf.Name)
		}
	}
	return nil
}

func decodeGoField(st *Stream, owner, fv reflect.Value, opts tagOptions, order ByteOrder) error {
	bo := order.Binary()

	switch {
	case fv.Kind() == reflect.Struct:
		return decodeTagged(st, fv, order)
	case isBytesValue(fv):
		if opts.kind == KindPascal {
			width := opts.count
			if width == 0 {
				var err error
				width, err = resolveTagCount(owner, opts)
				if err != nil {
					return err
				}
			}
			if width <= 0 {
				return errors.New("pascal field needs count or sizefrom")
			}
			raw, err := st.Next(width)
			if err != nil {
				return err
			}
			n := int(raw[0])
			if n > width-1 {
				n = width - 1
			}
			return setTextValue(fv, raw[1:1+n], opts.encoding)
		}
		n := opts.count
		if n == 0 && opts.sizeFrom != "" {
			var err error
			n, err = resolveTagCount(owner, opts)
			if err != nil {
				return err
			}
		}
		if n == 0 && fv.Kind() == reflect.Array {
			n = fv.Len()
		}
		if n == 0 && opts.sizeFrom == "" {
			// no length source: consume the remainder
			return setTextValue(fv, st.Rest(), opts.encoding)
		}
		raw, err := st.Next(n)
		if err != nil {
			return err
		}
		return setTextValue(fv, raw, opts.encoding)
	case fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array:
		kind := opts.kind
		if kind == 0 {
			var err error
			kind, err = kindForType(fv.Type().Elem())
			if err != nil {
				return err
			}
		}
		n := fv.Len()
		if fv.Kind() == reflect.Slice {
			var err error
			n, err = resolveTagCount(owner, opts)
			if err != nil {
				return err
			}
			if n < 0 {
				return errors.New("slice field needs count or sizefrom")
			}
			fv.Set(reflect.MakeSlice(fv.Type(), n, n))
		}
		for i := 0; i < n; i++ {
			raw, err := st.Next(kind.Size())
			if err != nil {
				return err
			}
			if err := setScalarValue(fv.Index(i), readScalar(kind, bo, raw)); err != nil {
				return err
			}
		}
		return nil
	default:
		kind := opts.kind
		if kind == 0 {
			var err error
			kind, err = kindForType(fv.Type())
			if err != nil {
				return err
			}
		}
		raw, err := st.Next(kind.Size())
		if err != nil {
			return err
		}
		return setScalarValue(fv, readScalar(kind, bo, raw))
	}
}

// resolveTagCount returns the count option, the value of the sizefrom
// field, or -1 when the tag carries neither.
func resolveTagCount(owner reflect.Value, opts tagOptions) (int, error) {
	if opts.count > 0 {
		return opts.count, nil
	}
	if opts.sizeFrom == "" {
		return -1, nil
	}
	src := owner.FieldByName(opts.sizeFrom)
	if !src.IsValid() {
		return 0, errors.Errorf("size source %q does not exist", opts.sizeFrom)
	}
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(src.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(src.Uint()), nil
	}
	return 0, errors.Errorf("size source %q is not an integer", opts.sizeFrom)
}

func isBytesValue(fv reflect.Value) bool {
	switch fv.Kind() {
	case reflect.String:
		return true
	case reflect.Slice, reflect.Array:
		return fv.Type().Elem().Kind() == reflect.Uint8
	}
	return false
}

func bytesValue(fv reflect.Value) []byte {
	switch fv.Kind() {
	case reflect.String:
		return []byte(fv.String())
	case reflect.Slice:
		return append([]byte(nil), fv.Bytes()...)
	default: // array
		out := make([]byte, fv.Len())
		for i := range out {
			out[i] = byte(fv.Index(i).Uint())
		}
		return out
	}
}

// setTextValue is setBytesValue plus the utf-8 check for string fields
// tagged with encoding=utf-8.
func setTextValue(fv reflect.Value, raw []byte, encoding string) error {
	if encoding == "utf-8" && fv.Kind() == reflect.String {
		if _, ok := SafeString(raw); !ok {
			return errors.Errorf("bytes %x are not valid utf-8", raw)
		}
	}
	return setBytesValue(fv, raw)
}

func setBytesValue(fv reflect.Value, raw []byte) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(string(raw))
	case reflect.Slice:
		fv.SetBytes(append([]byte(nil), raw...))
	default: // array
		if len(raw) != fv.Len() {
			return errors.Errorf("have %d bytes, array length is %d", len(raw), fv.Len())
		}
		for i, b := range raw {
			fv.Index(i).SetUint(uint64(b))
		}
	}
	return nil
}

func setScalarValue(fv reflect.Value, v interface{}) error {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch n := v.(type) {
		case int64:
			fv.SetInt(n)
		case uint64:
			fv.SetInt(int64(n))
		default:
			return errors.Errorf("cannot store %T in %s", v, fv.Type())
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		switch n := v.(type) {
		case uint64:
			fv.SetUint(n)
		case int64:
			fv.SetUint(uint64(n))
		default:
			return errors.Errorf("cannot store %T in %s", v, fv.Type())
		}
	case reflect.Float32, reflect.Float64:
		f, ok := v.(float64)
		if !ok {
			return errors.Errorf("cannot store %T in %s", v, fv.Type())
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("cannot store %T in %s", v, fv.Type())
		}
		fv.SetBool(b)
	default:
		return errors.Errorf("cannot store %T in %s", v, fv.Type())
	}
	return nil
}
