package file

import (
	"encoding"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"reflect"
	"sync"

	"github.com/farwydi/structapi"
	"github.com/pkg/errors"
)

// journalHead sits at the start of every journal file: a CRC32 over the
// frame payloads and the offset of the first frame not yet ejected.
type journalHead struct {
	Sum       uint32
	SkipAhead uint64
}

const (
	sumOffset       int64 = 0
	sumSize         int64 = 4
	skipAheadOffset       = sumOffset + sumSize
	skipAheadSize   int64 = 8
	dataOffset            = skipAheadOffset + skipAheadSize
	headSize              = sumSize + skipAheadSize
	frameMetaSize         = 2
)

// Pattern supplies the concrete record type that ejected frames are
// rehydrated into.
type Pattern interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// NewQueue opens a record journal over file. The journal survives
// restarts: ejected frames are skipped by advancing the head's
// skip-ahead offset rather than rewriting the file.
func NewQueue(file *os.File, pattern Pattern) (*Queue, error) {
	return (&Queue{
		typeOf: reflect.ValueOf(pattern).Elem().Type(),
		file:   file,
		order:  binary.BigEndian,
		sum:    crc32.NewIEEE(),
	}).verify()
}

type Queue struct {
	typeOf reflect.Type
	file   *os.File
	order  binary.ByteOrder
	mx     sync.Mutex

	sum   hash.Hash32
	count int
	mw    io.Writer
}

func (q *Queue) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.count
}

// verify scans the whole journal on open, recomputing the payload
// checksum and counting the frames past the skip-ahead offset.
func (q *Queue) verify() (*Queue, error) {
	q.mw = io.MultiWriter(q.file, q.sum)

	if _, err := q.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, headSize)
	n, err := io.ReadFull(q.file, buf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			head, err := structapi.MarshalOrder(
				journalHead{SkipAhead: uint64(dataOffset)}, structapi.BigEndian)
			if err != nil {
				return nil, err
			}
			if _, err := q.file.Write(head); err != nil {
				return nil, err
			}
			return q, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidJournal
		}
		return nil, err
	}

	var head journalHead
	if err := structapi.UnmarshalOrder(buf, &head, structapi.BigEndian); err != nil {
		return nil, err
	}

	currOffset := dataOffset
	if _, err := q.file.Seek(dataOffset, io.SeekStart); err != nil {
		return nil, err
	}

	tr := io.TeeReader(q.file, q.sum)

	for {
		size, err := q.readFrameSize(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		currOffset += frameMetaSize

		if len(buf) < size {
			buf = make([]byte, size)
		}

		if _, err := io.ReadFull(tr, buf[:size]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrInvalidJournal
			}
			return nil, err
		}

		currOffset += int64(size)

		if currOffset > int64(head.SkipAhead) {
			q.count++
		}
	}

	if q.sum.Sum32() != head.Sum {
		return nil, ErrInvalidJournal
	}

	return q, nil
}

func (q *Queue) readFrameSize(bs []byte) (size int, err error) {
	meta := bs[0:frameMetaSize]

	if _, err := io.ReadFull(q.file, meta); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrInvalidJournal
		}
		return 0, err
	}

	return int(q.order.Uint16(meta)), nil
}

func (q *Queue) writeFrameSize(bs []byte, size int) error {
	meta := bs[0:frameMetaSize]

	q.order.PutUint16(meta, uint16(size))

	_, err := q.file.Write(meta)
	return err
}

func (q *Queue) updateSum(bs []byte) error {
	sumBuf := bs[0:sumSize]

	q.order.PutUint32(sumBuf, q.sum.Sum32())
	_, err := q.file.WriteAt(sumBuf, sumOffset)
	return err
}

func (q *Queue) Push(record encoding.BinaryMarshaler) error {
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}

	size := len(data)
	if size > math.MaxUint16 {
		return errors.Errorf("record too large: %d over %d", size, math.MaxUint16)
	}

	bs := scratchPool.Get().([]byte)
	defer scratchPool.Put(bs)

	q.mx.Lock()
	defer q.mx.Unlock()

	if err := q.writeFrameSize(bs, size); err != nil {
		return err
	}

	if _, err := q.mw.Write(data); err != nil {
		return err
	}

	q.count++

	return q.updateSum(bs)
}

func (q *Queue) Eject(limit int) (records []interface{}, err error) {
	q.mx.Lock()
	defer q.mx.Unlock()

	if limit > q.count || limit < 0 {
		limit = q.count
	}

	if limit == 0 {
		return nil, nil
	}

	records = make([]interface{}, limit)

	buf := make([]byte, headSize)
	skipBuf := buf[0:skipAheadSize]

	if _, err := q.file.ReadAt(skipBuf, skipAheadOffset); err != nil {
		return nil, err
	}

	skipAhead := int64(q.order.Uint64(skipBuf))

	if _, err := q.file.Seek(skipAhead, io.SeekStart); err != nil {
		return nil, err
	}

	i := 0
	for ; i < limit; i++ {
		size, err := q.readFrameSize(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return records[:i], err
		}

		skipAhead += frameMetaSize

		if len(buf) < size {
			buf = make([]byte, size)
		}

		frame := buf[0:size]
		_, err = io.ReadFull(q.file, frame)
		q.count--
		if err != nil {
			return records[:i], err
		}

		skipAhead += int64(size)

		record := reflect.New(q.typeOf).Interface().(encoding.BinaryUnmarshaler)
		if err := record.UnmarshalBinary(frame); err != nil {
			return records[:i], err
		}

		records[i] = record
	}
	records = records[:i]

	q.order.PutUint64(skipBuf, uint64(skipAhead))
	if _, err := q.file.WriteAt(skipBuf, skipAheadOffset); err != nil {
		return records, err
	}

	if _, err := q.file.Seek(0, io.SeekEnd); err != nil {
		return records, err
	}

	return records, nil
}
