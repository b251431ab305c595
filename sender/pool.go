package sender

import (
	"sync"

	"github.com/farwydi/structapi"
)

type NewQueueFunc = func(record structapi.Record) (structapi.Queue, error)

// NewPool lazily opens one queue per SQL routing key through newQueue.
func NewPool(newQueue NewQueueFunc) structapi.Pool {
	return &Pool{
		newQueue:  newQueue,
		openQueue: map[string]structapi.Queue{},
	}
}

type Pool struct {
	newQueue  NewQueueFunc
	mx        sync.Mutex
	openQueue map[string]structapi.Queue
}

func (p *Pool) getQueue(record structapi.Record) (structapi.Queue, error) {
	var err error
	queue, isInit := p.openQueue[record.SQL()]
	if !isInit {
		queue, err = p.newQueue(record)
		if err != nil {
			return nil, err
		}

		p.openQueue[record.SQL()] = queue
	}

	return queue, nil
}

func (p *Pool) Append(records []structapi.Record) error {
	p.mx.Lock()
	defer p.mx.Unlock()

	for _, record := range records {
		queue, err := p.getQueue(record)
		if err != nil {
			return err
		}

		if err := queue.Push(record); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pool) Push(record structapi.Record) error {
	p.mx.Lock()
	defer p.mx.Unlock()

	queue, err := p.getQueue(record)
	if err != nil {
		return err
	}

	return queue.Push(record)
}

func (p *Pool) Eject(limit int) (records []structapi.Record, err error) {
	p.mx.Lock()
	defer p.mx.Unlock()

	maxLimit := 0
	for _, queue := range p.openQueue {
		maxLimit += queue.Len()
	}

	if limit > maxLimit || limit < 0 {
		limit = maxLimit
	}

	if limit == 0 {
		return nil, nil
	}

	records = make([]structapi.Record, 0, limit)
	for _, queue := range p.openQueue {
		ejected, err := queue.Eject(limit - len(records))
		if err != nil {
			return nil, err
		}

		for _, e := range ejected {
			if e != nil {
				records = append(records, e.(structapi.Record))
			}
		}

		if len(records) >= limit {
			return records, nil
		}
	}
	return records, nil
}
