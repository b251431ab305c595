package sender

import (
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/farwydi/structapi"
	"github.com/farwydi/structapi/queue/file"
	"github.com/farwydi/structapi/queue/memory"
	"github.com/pkg/errors"
)

// NewSender batches records into connect, grouped by their SQL routing
// key. Records are journaled to disk first so nothing buffered is lost
// on restart; the memory queue is an optional fallback when disk
// writes fail.
func NewSender(connect *sql.DB, config ...Config) *Sender {
	// Set default config
	cfg := configDefault(config...)

	logger, _ := NewStdLogger()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	dumper := structapi.Dumper(structapi.NewNullDumper())
	if cfg.Dumper != nil {
		dumper = cfg.Dumper
	}

	return &Sender{
		cfg: cfg,
		filePool: NewPool(
			func(record structapi.Record) (structapi.Queue, error) {
				return file.NewQueueByRecord(record, file.Config{
					Workspace:  cfg.FileWorkspace,
					MaxHistory: cfg.FileMaxCorruptHistory,
				})
			},
		),
		memoryPool: NewPool(func(_ structapi.Record) (structapi.Queue, error) {
			return memory.NewQueue(), nil
		}),
		dumper:  dumper,
		stopSig: make(chan bool),
		connect: connect,
		logger:  logger,
	}
}

type Sender struct {
	cfg Config

	logger Logger

	filePool   structapi.Pool
	memoryPool structapi.Pool
	dumper     structapi.Dumper

	stopSig  chan bool
	connect  *sql.DB
	shutdown int32
}

// Stop halts the flusher goroutine. With sendTail the remaining queue
// contents are published first; otherwise the memory queue is spilled
// to disk for the next run.
func (s *Sender) Stop(sendTail bool) {
	atomic.StoreInt32(&s.shutdown, 1)
	s.stopSig <- sendTail
	<-s.stopSig
}

// Push journals a record for the next batch.
func (s *Sender) Push(record structapi.Record) error {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		return errors.New("sender shutdown")
	}

	if err := s.filePool.Push(record); err != nil {
		if s.cfg.UseMemoryFallback {
			s.logger.Warnw("writing to disk failed", "error", err)

			// the memory queue does not return an error
			_ = s.memoryPool.Push(record)
			return nil
		}
		return errors.Wrap(err, "writing to disk failed")
	}
	return nil
}

func (s *Sender) publish(query string, records []structapi.Record) error {
	rows := make([][]interface{}, len(records))
	for i, record := range records {
		rows[i] = record.Args()
	}
	return s.publishRows(query, rows)
}

func (s *Sender) publishRows(query string, rows [][]interface{}) error {
	panicked := true
	tx, err := s.connect.Begin()
	if err != nil {
		return err
	}
	defer func() {
		// Make sure to rollback when panic, Block error or Commit error
		if panicked || err != nil {
			if err := tx.Rollback(); err != nil {
				s.logger.Errorw("problem when rolling back a transaction", "error", err)
			}
		}
	}()

	err = func() error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}

		for _, args := range rows {
			if _, err := stmt.Exec(args...); err != nil {
				return err
			}
		}

		return stmt.Close()
	}()

	if err == nil {
		err = tx.Commit()
	}

	panicked = false

	return err
}

// recoverDumped replays rows spilled to the dumper on earlier failures.
func (s *Sender) recoverDumped() {
	for {
		exist, query, row := s.dumper.Return()
		if !exist {
			return
		}
		if err := s.publishRows(query, [][]interface{}{row}); err != nil {
			s.dumper.Dump(query, [][]interface{}{row})
			s.logger.Warnw("republishing dumped row failed", "error", err)
			return
		}
	}
}

func (s *Sender) fallback(records []structapi.Record, memorySafe bool) {
	if err := s.filePool.Append(records); err != nil {
		if memorySafe {
			_ = s.memoryPool.Append(records)
			s.logger.Warnw("error when fallback a write to disk", "error", err)
			return
		}

		for _, record := range records {
			s.dumper.Dump(record.SQL(), [][]interface{}{record.Args()})
		}
		s.logger.Errorw("fatal error when fallback a write to disk, rows handed to dumper",
			"error", err,
			"rows", len(records),
		)
	}
}

func (s *Sender) collect(limit int) map[string][]structapi.Record {
	batches := map[string][]structapi.Record{}

	ejected, _ := s.memoryPool.Eject(limit)
	for _, record := range ejected {
		batches[record.SQL()] = append(batches[record.SQL()], record)
	}

	rest := limit - len(ejected)
	if limit < 0 {
		rest = -1
	}
	if rest != 0 {
		ejected, err := s.filePool.Eject(rest)
		if err != nil {
			s.logger.Warnw("problem ejecting queue from disk", "error", err)
		}
		for _, record := range ejected {
			batches[record.SQL()] = append(batches[record.SQL()], record)
		}
	}

	return batches
}

// RunPusher starts the flusher goroutine, publishing up to limit
// records every period.
func (s *Sender) RunPusher(period time.Duration, limit int) {
	if period < time.Millisecond {
		period = time.Millisecond
	}

	t := time.NewTicker(period)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.recoverDumped()

				for query, records := range s.collect(limit) {
					if err := s.publish(query, records); err != nil {
						s.logger.Warnw("publication ended with an error", "error", err)
						s.fallback(records, s.cfg.UseMemoryFallback)
					} else if s.cfg.ShowSuccessfulInfo {
						s.logger.Infow("successfully sent", "count", len(records))
					}
				}
			case sendTail := <-s.stopSig:
				if !sendTail {
					ejected, _ := s.memoryPool.Eject(-1)
					if len(ejected) > 0 {
						if err := s.filePool.Append(ejected); err != nil {
							for _, record := range ejected {
								s.dumper.Dump(record.SQL(), [][]interface{}{record.Args()})
							}
							s.logger.Errorw("error writing to disk when stopping sender, rows handed to dumper",
								"error", err,
								"rows", len(ejected),
							)
						}
					}
					close(s.stopSig)
					return
				}

				for query, records := range s.collect(-1) {
					if err := s.publish(query, records); err != nil {
						s.logger.Warnw("publication ended with an error", "error", err)
						s.fallback(records, false)
					}
				}

				close(s.stopSig)
				return
			}
		}
	}()
}
