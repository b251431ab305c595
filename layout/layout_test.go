package layout

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/farwydi/structapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
[layout.header]
byte_order = "network"
fields = [
    { name = "magic", type = "uint16" },
    { name = "version", type = "uint16" },
]

[layout.frame]
fields = [
    { name = "head", type = "header" },
    { type = "pad", count = 2 },
    { name = "length", type = "uint32" },
    { name = "payload", type = "bytes", size_from = "length", encoding = "utf-8" },
]

[layout.point]
byte_order = "little"
fields = [
    { name = "x", type = "float64" },
    { name = "y", type = "float64" },
]
`

func TestParseAndDecode(t *testing.T) {
	set, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, []string{"frame", "header", "point"}, set.Names())
	assert.True(t, set.Has("frame"))
	assert.False(t, set.Has("missing"))

	frame, err := set.Get("frame")
	require.NoError(t, err)

	data := []byte{
		0xca, 0xfe, // magic
		0x00, 0x01, // version
		0x00, 0x00, // pad
		0x00, 0x00, 0x00, 0x02, // length
		'h', 'i',
	}
	require.NoError(t, frame.Unpack(data))

	head := frame.Nested("head")
	require.NotNil(t, head)
	assert.EqualValues(t, 0xcafe, head.Uint("magic"))
	assert.EqualValues(t, 1, head.Uint("version"))

	assert.EqualValues(t, 2, frame.Uint("length"))
	assert.Equal(t, "hi", frame.String("payload"))
}

func TestGetReturnsFreshInstances(t *testing.T) {
	set, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	a, err := set.Get("point")
	require.NoError(t, err)
	b, err := set.Get("point")
	require.NoError(t, err)

	require.NoError(t, a.Set("x", 1.5))
	assert.Nil(t, b.Value("x"))

	assert.Equal(t, structapi.LittleEndian, a.Order())
	assert.Equal(t, "<1d1d", a.Format())
}

func TestLoad(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "layout")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "layouts.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(sampleDoc), 0644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.True(t, set.Has("point"))

	_, err = Load(filepath.Join(tmpDir, "nope.toml"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{
			name: "not toml",
			doc:  `{{{{`,
		},
		{
			name: "no layouts",
			doc:  `title = "empty"`,
		},
		{
			name: "no fields",
			doc: `
[layout.empty]
fields = []
`,
		},
		{
			name: "unknown type",
			doc: `
[layout.bad]
fields = [ { name = "a", type = "quadword" } ]
`,
		},
		{
			name: "duplicate field name",
			doc: `
[layout.dup]
fields = [
    { name = "a", type = "uint8" },
    { name = "a", type = "uint16" },
]
`,
		},
		{
			name: "missing name",
			doc: `
[layout.bad]
fields = [ { type = "uint8" } ]
`,
		},
		{
			name: "bad byte order",
			doc: `
[layout.bad]
byte_order = "middle"
fields = [ { name = "a", type = "uint8" } ]
`,
		},
		{
			name: "bad encoding",
			doc: `
[layout.bad]
fields = [ { name = "a", type = "bytes", count = 4, encoding = "latin-1" } ]
`,
		},
		{
			name: "nested with count",
			doc: `
[layout.inner]
fields = [ { name = "a", type = "uint8" } ]

[layout.outer]
fields = [ { name = "in", type = "inner", count = 2 } ]
`,
		},
		{
			name: "reference cycle",
			doc: `
[layout.a]
fields = [ { name = "b", type = "b" } ]

[layout.b]
fields = [ { name = "a", type = "a" } ]
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}
