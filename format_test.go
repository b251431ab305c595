package structapi_test

import (
	"testing"

	"github.com/farwydi/structapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		format string
		size   int
		data   []byte
		want   []interface{}
	}{
		{
			format: "!i",
			size:   4,
			data:   []byte{0x00, 0x00, 0x00, 0x2a},
			want:   []interface{}{int64(42)},
		},
		{
			format: "<Hh",
			size:   4,
			data:   []byte{0x02, 0x01, 0xff, 0xff},
			want:   []interface{}{uint64(0x0102), int64(-1)},
		},
		{
			format: "2B",
			size:   2,
			data:   []byte{0x01, 0x02},
			want:   []interface{}{[]uint64{1, 2}},
		},
		{
			format: "B3s",
			size:   4,
			data:   []byte{0x07, 'a', 'b', 'c'},
			want:   []interface{}{uint64(7), []byte("abc")},
		},
		{
			format: "2xB",
			size:   3,
			data:   []byte{0x00, 0x00, 0x05},
			want:   []interface{}{uint64(5)},
		},
		{
			format: "?d",
			size:   9,
			data: []byte{0x01,
				0x40, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: []interface{}{true, 2.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s, err := structapi.Compile(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.size, s.Size())

			require.NoError(t, s.Unpack(tt.data))
			assert.Equal(t, tt.want, s.Values())

			packed, err := s.Pack()
			require.NoError(t, err)
			assert.Equal(t, tt.data, packed)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []string{
		"z",
		"3",
		"i2",
		"1 h",
	}
	for _, format := range tests {
		t.Run(format, func(t *testing.T) {
			_, err := structapi.Compile(format)
			assert.Error(t, err)
		})
	}
}

func TestCompileSpaces(t *testing.T) {
	s, err := structapi.Compile("!h h")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Size())
}

func TestMustCompile(t *testing.T) {
	assert.NotNil(t, structapi.MustCompile("!I"))
	assert.Panics(t, func() { structapi.MustCompile("bad format") })
}
