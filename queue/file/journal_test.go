package file

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/farwydi/structapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journalRecord struct {
	ID      uint32
	BodyLen uint16
	Body    []byte `struct:"sizefrom=BodyLen"`
}

func (r *journalRecord) MarshalBinary() ([]byte, error) {
	r.BodyLen = uint16(len(r.Body))
	return structapi.Marshal(r)
}

func (r *journalRecord) UnmarshalBinary(data []byte) error {
	return structapi.Unmarshal(data, r)
}

func (r *journalRecord) SQL() string {
	return "INSERT INTO journal (id, body) VALUES (?, ?)"
}

func (r *journalRecord) Args() []interface{} {
	return []interface{}{r.ID, r.Body}
}

func TestJournalSurvivesReopen(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "journal")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "q.journal")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	q, err := NewQueue(f, &journalRecord{})
	require.NoError(t, err)

	require.NoError(t, q.Push(&journalRecord{ID: 1, Body: []byte("one")}))
	require.NoError(t, q.Push(&journalRecord{ID: 2, Body: []byte("two")}))
	assert.Equal(t, 2, q.Len())
	require.NoError(t, f.Close())

	// reopen and validate everything is still there
	f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	q, err = NewQueue(f, &journalRecord{})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())

	records, err := q.Eject(-1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 1, records[0].(*journalRecord).ID)
	assert.Equal(t, []byte("two"), records[1].(*journalRecord).Body)
	assert.Equal(t, 0, q.Len())
}

func TestJournalEjectIsDurable(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "journal")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "q.journal")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	q, err := NewQueue(f, &journalRecord{})
	require.NoError(t, err)
	require.NoError(t, q.Push(&journalRecord{ID: 1, Body: []byte("a")}))
	require.NoError(t, q.Push(&journalRecord{ID: 2, Body: []byte("b")}))

	records, err := q.Eject(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, f.Close())

	// the ejected frame must stay skipped after a reopen
	f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	q, err = NewQueue(f, &journalRecord{})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	records, err = q.Eject(-1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].(*journalRecord).ID)
}

func TestJournalRejectsOversizedRecord(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "journal")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	f, err := os.OpenFile(filepath.Join(tmpDir, "q.journal"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	q, err := NewQueue(f, &journalRecord{})
	require.NoError(t, err)

	err = q.Push(&journalRecord{ID: 1, Body: make([]byte, 70000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record too large")
	assert.Equal(t, 0, q.Len())

	// the journal stays usable after the rejection
	require.NoError(t, q.Push(&journalRecord{ID: 2, Body: []byte("ok")}))
	assert.Equal(t, 1, q.Len())
}

func TestJournalDetectsCorruption(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "journal")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "q.journal")
	require.NoError(t, ioutil.WriteFile(path, []byte("this is not a journal"), 0644))

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	_, err = NewQueue(f, &journalRecord{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJournal))
}

func TestLoaderMovesCorruptJournalAside(t *testing.T) {
	tmpDir, err := ioutil.TempDir("", "journal")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	record := &journalRecord{}

	// first load creates the journal and names it by the routing key
	q, err := NewQueueByRecord(record, Config{Workspace: tmpDir})
	require.NoError(t, err)
	require.NoError(t, q.Push(&journalRecord{ID: 7, Body: []byte("x")}))
	require.NoError(t, q.file.Close())

	// mangle it
	names, err := ioutil.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	journalPath := filepath.Join(tmpDir, names[0].Name())
	require.NoError(t, ioutil.WriteFile(journalPath, []byte("garbage"), 0644))

	// the loader must retire the corrupt file and start fresh
	q, err = NewQueueByRecord(record, Config{Workspace: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())

	names, err = ioutil.ReadDir(tmpDir)
	require.NoError(t, err)
	exts := map[string]int{}
	for _, n := range names {
		exts[filepath.Ext(n.Name())]++
	}
	assert.Equal(t, 1, exts[".journal"])
	assert.Equal(t, 1, exts[".corrupt"])
}

func TestConfigDefault(t *testing.T) {
	cfg := configDefault()
	assert.Equal(t, ConfigDefault, cfg)

	cfg = configDefault(Config{Workspace: "/var/tmp"})
	assert.Equal(t, "/var/tmp", cfg.Workspace)
	assert.Equal(t, ConfigDefault.MaxHistory, cfg.MaxHistory)
}
