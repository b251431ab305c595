// Package layout builds structapi layouts from TOML declarations, so
// binary formats can be described in a config file instead of code:
//
//	[layout.frame]
//	byte_order = "network"
//	fields = [
//	    { name = "length", type = "uint32" },
//	    { name = "payload", type = "bytes", size_from = "length", encoding = "utf-8" },
//	]
//
// A field's type may also name another layout from the same document,
// which embeds it as a nested struct.
package layout

import (
	"io/ioutil"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/farwydi/structapi"
	"github.com/pkg/errors"
)

type fieldSpec struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Count    int    `toml:"count"`
	SizeFrom string `toml:"size_from"`
	Order    string `toml:"byte_order"`
	Encoding string `toml:"encoding"`
}

type layoutSpec struct {
	ByteOrder string      `toml:"byte_order"`
	Fields    []fieldSpec `toml:"fields"`
}

type document struct {
	Layout map[string]layoutSpec `toml:"layout"`
}

var kindNames = map[string]structapi.Kind{
	"pad":     structapi.KindPad,
	"char":    structapi.KindChar,
	"int8":    structapi.KindInt8,
	"uint8":   structapi.KindUint8,
	"bool":    structapi.KindBool,
	"int16":   structapi.KindInt16,
	"uint16":  structapi.KindUint16,
	"int32":   structapi.KindInt32,
	"uint32":  structapi.KindUint32,
	"long":    structapi.KindLong,
	"ulong":   structapi.KindUlong,
	"int64":   structapi.KindInt64,
	"uint64":  structapi.KindUint64,
	"ssize":   structapi.KindSSizeT,
	"size":    structapi.KindSizeT,
	"float32": structapi.KindFloat32,
	"float64": structapi.KindFloat64,
	"bytes":   structapi.KindBytes,
	"pascal":  structapi.KindPascal,
	"pointer": structapi.KindPointer,
}

// Set holds the layouts declared by one TOML document.
type Set struct {
	specs map[string]layoutSpec
}

// Load reads and validates a layout document from disk.
func Load(path string) (*Set, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading layout file")
	}
	return Parse(data)
}

// Parse validates a layout document. Every declared layout is built
// once so declaration errors surface here, not at first Get.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing layout file")
	}
	if len(doc.Layout) == 0 {
		return nil, errors.New("no layouts declared")
	}

	s := &Set{specs: doc.Layout}
	for name := range doc.Layout {
		if _, err := s.build(name, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Names lists the declared layouts in lexical order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Set) Has(name string) bool {
	_, ok := s.specs[name]
	return ok
}

// Get builds a fresh instance of the named layout, so concurrent
// decoders never share field state.
func (s *Set) Get(name string) (*structapi.Struct, error) {
	return s.build(name, nil)
}

func (s *Set) build(name string, trail []string) (*structapi.Struct, error) {
	for _, seen := range trail {
		if seen == name {
			return nil, errors.Errorf("layout %q is part of a reference cycle %v", name, trail)
		}
	}
	spec, ok := s.specs[name]
	if !ok {
		return nil, errors.Errorf("no layout %q", name)
	}

	order := structapi.Network
	if spec.ByteOrder != "" {
		var err error
		order, err = structapi.ParseByteOrder(spec.ByteOrder)
		if err != nil {
			return nil, errors.Wrapf(err, "layout %q", name)
		}
	}

	if len(spec.Fields) == 0 {
		return nil, errors.Errorf("layout %q declares no fields", name)
	}

	fields := make([]*structapi.Field, 0, len(spec.Fields))
	seen := make(map[string]struct{}, len(spec.Fields))
	for i, fs := range spec.Fields {
		f, err := s.buildField(fs, append(trail, name))
		if err != nil {
			return nil, errors.Wrapf(err, "layout %q field %d", name, i)
		}
		if fn := f.Name(); fn != "" {
			if _, dup := seen[fn]; dup {
				return nil, errors.Errorf("layout %q: duplicate field name %q", name, fn)
			}
			seen[fn] = struct{}{}
		}
		fields = append(fields, f)
	}

	return structapi.New(name, fields...).WithOrder(order), nil
}

func (s *Set) buildField(fs fieldSpec, trail []string) (*structapi.Field, error) {
	if fs.Type == "" {
		return nil, errors.New("missing type")
	}

	if fs.Type == "pad" {
		n := fs.Count
		if n == 0 {
			n = 1
		}
		return structapi.PadBytes(n), nil
	}

	if fs.Name == "" {
		return nil, errors.New("missing name")
	}

	var opts []structapi.Option
	if fs.Count > 0 {
		opts = append(opts, structapi.WithCount(fs.Count))
	}
	if fs.SizeFrom != "" {
		opts = append(opts, structapi.WithSizeFrom(fs.SizeFrom))
	}
	if fs.Order != "" {
		o, err := structapi.ParseByteOrder(fs.Order)
		if err != nil {
			return nil, err
		}
		opts = append(opts, structapi.WithOrder(o))
	}
	if fs.Encoding != "" {
		if fs.Encoding != "utf-8" {
			return nil, errors.Errorf("unsupported encoding %q", fs.Encoding)
		}
		opts = append(opts, structapi.WithEncoding(fs.Encoding))
	}

	if kind, ok := kindNames[fs.Type]; ok {
		return structapi.NewField(fs.Name, kind, opts...), nil
	}

	// not a scalar type: embed another layout from the document
	if _, ok := s.specs[fs.Type]; ok {
		if fs.Count > 0 || fs.SizeFrom != "" || fs.Encoding != "" {
			return nil, errors.Errorf("nested layout %q takes no count, size_from or encoding", fs.Type)
		}
		inner, err := s.build(fs.Type, trail)
		if err != nil {
			return nil, err
		}
		return structapi.Nested(fs.Name, inner), nil
	}

	return nil, errors.Errorf("unknown type %q", fs.Type)
}
