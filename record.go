package structapi

import "encoding"

// Record is a unit of structured binary data that can round-trip
// through a queue and be inserted into a SQL store. The SQL statement
// doubles as the routing key that groups records into batches.
type Record interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	SQL() string
	Args() []interface{}
}
