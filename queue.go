package structapi

import "encoding"

// Queue buffers packed records. Eject with a negative limit drains the
// queue.
type Queue interface {
	Push(record encoding.BinaryMarshaler) error
	Eject(limit int) (records []interface{}, err error)
	Len() int
}
