package structapi

// Pool groups queues by the records' SQL routing key.
type Pool interface {
	Append(records []Record) error
	Push(record Record) error
	Eject(limit int) (records []Record, err error)
}
