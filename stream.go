package structapi

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrShortStream is returned when an unpack operation runs past the end
// of the input data.
var ErrShortStream = errors.New("unexpected end of stream")

// Stream wraps a byte slice and keeps track of how much of it has been
// consumed, so that consecutive fields and nested structs read from
// where the previous one stopped.
type Stream struct {
	data   []byte
	offset int
}

func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// Next returns the next n bytes and advances the offset. The returned
// slice aliases the underlying data.
func (b *Stream) Next(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("negative slice size %d", n)
	}
	if b.offset+n > len(b.data) {
		return nil, errors.Wrapf(ErrShortStream,
			"need %d bytes at offset %d of %d", n, b.offset, len(b.data))
	}
	out := b.data[b.offset : b.offset+n]
	b.offset += n
	return out, nil
}

func (b *Stream) Offset() int {
	return b.offset
}

func (b *Stream) Remaining() int {
	return len(b.data) - b.offset
}

func (b *Stream) Len() int {
	return len(b.data)
}

// Bytes returns the full underlying data, consumed or not.
func (b *Stream) Bytes() []byte {
	return b.data
}

// Rest consumes and returns everything after the current offset.
func (b *Stream) Rest() []byte {
	out := b.data[b.offset:]
	b.offset = len(b.data)
	return out
}

func (b *Stream) String() string {
	return string(b.data)
}

// SafeString decodes data as UTF-8 text. When the bytes are not valid
// UTF-8 it reports false and returns the raw bytes as a string anyway.
func SafeString(data []byte) (string, bool) {
	return string(data), utf8.Valid(data)
}
