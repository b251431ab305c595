package memory

import (
	"container/list"
	"encoding"
	"sync"
)

func NewQueue() *Queue {
	return &Queue{
		buffer: list.New(),
	}
}

// Queue keeps records in process memory. Push never fails; everything
// buffered is lost on restart.
type Queue struct {
	buffer *list.List
	mx     sync.Mutex
}

func (m *Queue) Push(record encoding.BinaryMarshaler) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.buffer.PushBack(record)
	return nil
}

func (m *Queue) Eject(limit int) (records []interface{}, err error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	if limit > m.buffer.Len() || limit < 0 {
		limit = m.buffer.Len()
	}

	if limit == 0 {
		return nil, nil
	}

	records = make([]interface{}, 0, limit)
	for e := m.buffer.Front(); e != nil && len(records) < limit; {
		cur := e
		e = e.Next()
		records = append(records, m.buffer.Remove(cur))
	}
	return records, nil
}

func (m *Queue) Len() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.buffer.Len()
}
