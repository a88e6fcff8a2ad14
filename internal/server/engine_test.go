package server

import (
	"testing"
	"time"

	"github.com/rediscore/server/internal/resp"
	"github.com/rediscore/server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEngine builds an Engine with an in-memory sink recording every byte
// written to every session, avoiding any real socket.
func testEngine(t *testing.T) (*Engine, map[int][]byte) {
	t.Helper()
	sent := make(map[int][]byte)
	e := NewEngine(store.New(), zap.NewNop(), nil, "/tmp", "dump.rdb")
	e.SetSender(func(fd int, b []byte) {
		sent[fd] = append(sent[fd], b...)
	})
	return e, sent
}

func cmdArray(parts ...string) []resp.Value {
	vals := make([]resp.Value, len(parts))
	for i, p := range parts {
		vals[i] = resp.MakeBulkStringFromString(p)
	}
	return vals
}

func TestDispatchSetGet(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("SET", "foo", "bar"))
	assert.Contains(t, string(sent[1]), "+OK")

	sent[1] = nil
	e.Dispatch(s, cmdArray("GET", "foo"))
	assert.Contains(t, string(sent[1]), "bar")
}

func TestDispatchUnknownCommand(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("NOSUCHCOMMAND"))
	assert.Contains(t, string(sent[1]), "ERR unknown command")
}

func TestDispatchWrongArgc(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("GET"))
	assert.Contains(t, string(sent[1]), "wrong number of arguments")
}

func TestDelAndExists(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("SET", "k", "v"))
	sent[1] = nil
	e.Dispatch(s, cmdArray("DEL", "k"))
	assert.Contains(t, string(sent[1]), ":1")

	sent[1] = nil
	e.Dispatch(s, cmdArray("GET", "k"))
	assert.Contains(t, string(sent[1]), "$-1")
}

func TestExpireAndTTL(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("SET", "k", "v"))
	sent[1] = nil
	e.Dispatch(s, cmdArray("EXPIRE", "k", "10"))
	assert.Contains(t, string(sent[1]), ":1")

	sent[1] = nil
	e.Dispatch(s, cmdArray("TTL", "k"))
	assert.Contains(t, string(sent[1]), ":10")

	sent[1] = nil
	e.Dispatch(s, cmdArray("PEXPIRE", "k", "1"))
	time.Sleep(5 * time.Millisecond)
	sent[1] = nil
	e.Dispatch(s, cmdArray("GET", "k"))
	assert.Contains(t, string(sent[1]), "$-1")
}

func TestMultiExecDiscard(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("MULTI"))
	assert.Contains(t, string(sent[1]), "+OK")
	require.True(t, s.isQueued)

	sent[1] = nil
	e.Dispatch(s, cmdArray("SET", "a", "1"))
	assert.Contains(t, string(sent[1]), "QUEUED")

	sent[1] = nil
	e.Dispatch(s, cmdArray("INCR", "a"))
	assert.Contains(t, string(sent[1]), "QUEUED")

	sent[1] = nil
	e.Dispatch(s, cmdArray("EXEC"))
	require.False(t, s.isQueued)
	assert.Contains(t, string(sent[1]), ":2")

	sent[1] = nil
	e.Dispatch(s, cmdArray("MULTI"))
	sent[1] = nil
	e.Dispatch(s, cmdArray("SET", "b", "1"))
	e.Dispatch(s, cmdArray("DISCARD"))
	sent[1] = nil
	e.Dispatch(s, cmdArray("GET", "b"))
	assert.Contains(t, string(sent[1]), "$-1")
}

func TestResetClearsTransientState(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("MULTI"))
	sent[1] = nil
	e.Dispatch(s, cmdArray("RESET"))
	assert.Contains(t, string(sent[1]), "+RESET")
	assert.False(t, s.isQueued)
	assert.Nil(t, s.txQueue)
}

func TestDropSessionRemovesFromTable(t *testing.T) {
	e, _ := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	_, ok := e.SessionByFD(1)
	require.True(t, ok)

	e.DropSession(s)
	_, ok = e.SessionByFD(1)
	require.False(t, ok)
}

func TestRunGCSweepExpiresKeys(t *testing.T) {
	e, _ := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("SET", "k", "v"))
	e.Dispatch(s, cmdArray("PEXPIRE", "k", "1"))

	time.Sleep(5 * time.Millisecond)
	e.gcAccumMs = e.gc.Interval
	e.runGCSweep()

	assert.Equal(t, 0, e.store.Len())
}
