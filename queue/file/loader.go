package file

import (
	"fmt"
	"hash/adler32"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/farwydi/structapi"
	"github.com/pkg/errors"
)

// NewQueueByRecord opens (or creates) the journal belonging to the
// record's routing key inside the workspace. A journal that fails
// validation is renamed aside and a fresh one is created in its place.
func NewQueueByRecord(record structapi.Record, config ...Config) (*Queue, error) {
	// Set default config
	cfg := configDefault(config...)

	return (&queueLoader{
		cfg:               cfg,
		fileNameExtractor: regexp.MustCompile(`^(\d+)_(\d+)\.(journal|corrupt)$`),
	}).load(record)
}

type queueLoader struct {
	cfg               Config
	fileNameExtractor *regexp.Regexp
}

func (q *queueLoader) load(record structapi.Record) (*Queue, error) {
	h := adler32.New()
	_, _ = h.Write([]byte(record.SQL()))

	fName := fmt.Sprintf("%d_0.journal", h.Sum32())
	fPath := filepath.Join(q.cfg.Workspace, fName)
	f, err := os.OpenFile(fPath, os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueue(f, record)
	if err != nil {
		if !errors.Is(err, ErrInvalidJournal) {
			f.Close()
			return nil, err
		}

		if err := q.moveAside(f); err != nil {
			return nil, err
		}

		f, err = os.OpenFile(fPath, os.O_CREATE|os.O_RDWR, os.ModePerm)
		if err != nil {
			return nil, err
		}
		queue, err = NewQueue(f, record)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return queue, nil
}

// moveAside closes a corrupt journal and renames it with a .corrupt
// extension, keeping at most MaxHistory generations.
func (q *queueLoader) moveAside(f *os.File) error {
	if err := f.Close(); err != nil {
		return err
	}

	name, _, n, err := q.extractName(filepath.Base(f.Name()))
	if err != nil {
		return err
	}
	asidePath := filepath.Join(q.cfg.Workspace, q.buildName(name, "corrupt", n))

	return q.move(f.Name(), asidePath)
}

func (q *queueLoader) buildName(name, ext string, n int) string {
	return fmt.Sprintf("%s_%d.%s", name, n, ext)
}

func (q *queueLoader) extractName(fileName string) (name, ext string, n int, err error) {
	fne := q.fileNameExtractor.FindStringSubmatch(fileName)
	if len(fne) != 4 {
		return "", "", 0, errors.Errorf("bad journal name %q", fileName)
	}

	n, err = strconv.Atoi(fne[2])
	if err != nil {
		return "", "", 0, err
	}

	return fne[1], fne[3], n, nil
}

func (q *queueLoader) move(prev, next string) error {
	if exists(next) {
		name, ext, n, err := q.extractName(filepath.Base(next))
		if err != nil {
			return err
		}

		err = q.move(next, filepath.Join(q.cfg.Workspace, q.buildName(name, ext, n+1)))
		if err != nil {
			return err
		}
	}

	_, _, n, err := q.extractName(filepath.Base(prev))
	if err != nil {
		return err
	}

	if n >= q.cfg.MaxHistory {
		return os.Remove(prev)
	}

	return os.Rename(prev, next)
}
