package structapi_test

import (
	"testing"

	"github.com/farwydi/structapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameHeader struct {
	Magic   [4]byte
	Version uint16
	Flags   uint16 `struct:"order=little"`
	Length  uint32
	Payload []byte `struct:"sizefrom=Length"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := frameHeader{
		Magic:   [4]byte{'S', 'T', 'A', 'P'},
		Version: 2,
		Flags:   0x0102,
		Length:  3,
		Payload: []byte("abc"),
	}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		'S', 'T', 'A', 'P',
		0x00, 0x02,
		0x02, 0x01, // little-endian override
		0x00, 0x00, 0x00, 0x03,
		'a', 'b', 'c',
	}, data)

	var out frameHeader
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalScalars(t *testing.T) {
	type scalars struct {
		A int8
		B uint8
		C int16
		D uint32
		E int64
		F float32
		G float64
		H bool
	}
	in := scalars{A: -1, B: 2, C: -3, D: 4, E: -5, F: 1.5, G: -2.25, H: true}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Len(t, data, 1+1+2+4+8+4+8+1)

	var out scalars
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalSliceWithSizeFrom(t *testing.T) {
	type points struct {
		N  uint8
		Xs []int16 `struct:"sizefrom=N"`
	}
	in := points{N: 2, Xs: []int16{1, -2}}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00, 0x01, 0xff, 0xfe}, data)

	var out points
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalNested(t *testing.T) {
	type inner struct {
		V uint16
	}
	type outer struct {
		Tag   uint8
		Inner inner
	}
	in := outer{Tag: 9, Inner: inner{V: 0x0102}}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x01, 0x02}, data)

	var out outer
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalTagOptions(t *testing.T) {
	type tagged struct {
		Skip  int    `struct:"-"`
		Short int    `struct:"type=h"`
		Pad   uint8  `struct:"pad=3"`
		Name  string `struct:"count=4"`
	}
	in := tagged{Skip: 99, Short: -2, Pad: 7, Name: "ab"}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xff, 0xfe,
		0x00, 0x00, 0x00, 0x07,
		'a', 'b', 0x00, 0x00,
	}, data)

	var out tagged
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, 0, out.Skip)
	assert.Equal(t, -2, out.Short)
	assert.EqualValues(t, 7, out.Pad)
	assert.Equal(t, "ab\x00\x00", out.Name)
}

func TestMarshalTrailingBytes(t *testing.T) {
	type blob struct {
		Kind uint8
		Body []byte
	}
	in := blob{Kind: 1, Body: []byte("rest of the input")}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)

	var out blob
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalOrder(t *testing.T) {
	type v struct {
		X uint16
	}

	big, err := structapi.MarshalOrder(v{X: 0x0102}, structapi.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, big)

	little, err := structapi.MarshalOrder(v{X: 0x0102}, structapi.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01}, little)

	var out v
	require.NoError(t, structapi.UnmarshalOrder(little, &out, structapi.LittleEndian))
	assert.EqualValues(t, 0x0102, out.X)
}

func TestMarshalPascal(t *testing.T) {
	type p struct {
		Name string `struct:"type=p,count=6"`
	}
	in := p{Name: "foo"}

	data, err := structapi.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 'f', 'o', 'o', 0x00, 0x00}, data)

	var out p
	require.NoError(t, structapi.Unmarshal(data, &out))
	assert.Equal(t, "foo", out.Name)
}

func TestUnmarshalEncoding(t *testing.T) {
	type textMsg struct {
		Text string `struct:"count=2,encoding=utf-8"`
	}
	var m textMsg
	require.NoError(t, structapi.Unmarshal([]byte("hi"), &m))
	assert.Equal(t, "hi", m.Text)

	err := structapi.Unmarshal([]byte{0xff, 0xfe}, &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "utf-8")

	// encoding=none passes raw bytes through
	type rawMsg struct {
		Text string `struct:"count=2,encoding=none"`
	}
	var r rawMsg
	require.NoError(t, structapi.Unmarshal([]byte{0xff, 0xfe}, &r))
	assert.Equal(t, "\xff\xfe", r.Text)
}

func TestUnmarshalErrors(t *testing.T) {
	type v struct {
		X uint32
	}

	var out v
	assert.Error(t, structapi.Unmarshal([]byte{0x01}, &out))
	assert.Error(t, structapi.Unmarshal([]byte{0x01, 0x02, 0x03, 0x04}, out))
	assert.Error(t, structapi.Unmarshal([]byte{0x01, 0x02, 0x03, 0x04}, nil))

	type sized struct {
		Xs []uint16
	}
	var s sized
	assert.Error(t, structapi.Unmarshal([]byte{0x00, 0x01}, &s))
}

func TestMarshalBadTag(t *testing.T) {
	type bad struct {
		X uint8 `struct:"type=zz"`
	}
	_, err := structapi.Marshal(bad{})
	assert.Error(t, err)

	type unknown struct {
		X uint8 `struct:"frob=1"`
	}
	_, err = structapi.Marshal(unknown{})
	assert.Error(t, err)
}
