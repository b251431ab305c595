package sender

import (
	"testing"
	"time"

	"github.com/farwydi/structapi"
	"github.com/farwydi/structapi/queue/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolRecord struct {
	table string

	Seq   uint32
	ALen  uint16
	Value []byte `struct:"sizefrom=ALen"`
}

func (r *poolRecord) MarshalBinary() ([]byte, error) {
	r.ALen = uint16(len(r.Value))
	return structapi.Marshal(r)
}

func (r *poolRecord) UnmarshalBinary(data []byte) error {
	return structapi.Unmarshal(data, r)
}

func (r *poolRecord) SQL() string {
	return "INSERT INTO " + r.table + " (seq, value) VALUES (?, ?)"
}

func (r *poolRecord) Args() []interface{} {
	return []interface{}{r.Seq, r.Value}
}

func memoryQueueFunc(structapi.Record) (structapi.Queue, error) {
	return memory.NewQueue(), nil
}

func TestPoolGroupsByRoutingKey(t *testing.T) {
	pool := NewPool(memoryQueueFunc)

	require.NoError(t, pool.Push(&poolRecord{table: "a", Seq: 1}))
	require.NoError(t, pool.Push(&poolRecord{table: "b", Seq: 2}))
	require.NoError(t, pool.Append([]structapi.Record{
		&poolRecord{table: "a", Seq: 3},
		&poolRecord{table: "b", Seq: 4},
	}))

	records, err := pool.Eject(-1)
	require.NoError(t, err)
	require.Len(t, records, 4)

	perTable := map[string]int{}
	for _, r := range records {
		perTable[r.(*poolRecord).table]++
	}
	assert.Equal(t, 2, perTable["a"])
	assert.Equal(t, 2, perTable["b"])
}

func TestPoolEjectLimit(t *testing.T) {
	pool := NewPool(memoryQueueFunc)

	for i := uint32(0); i < 5; i++ {
		require.NoError(t, pool.Push(&poolRecord{table: "a", Seq: i}))
	}

	records, err := pool.Eject(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = pool.Eject(100)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = pool.Eject(1)
	require.NoError(t, err)
	assert.Len(t, records, 0)
}

func TestConfigDefault(t *testing.T) {
	cfg := configDefault()
	assert.Equal(t, ConfigDefault, cfg)

	cfg = configDefault(Config{
		FileWorkspace: "/var/tmp",
		SendLimit:     500,
		SendInterval:  time.Millisecond,
	})
	assert.Equal(t, "/var/tmp", cfg.FileWorkspace)
	assert.Equal(t, 500, cfg.SendLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.SendInterval)

	cfg = configDefault(Config{})
	assert.NotEmpty(t, cfg.FileWorkspace)
	assert.Equal(t, 1, cfg.SendLimit)
}
