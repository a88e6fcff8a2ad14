package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishDelivers(t *testing.T) {
	e, sent := testEngine(t)
	sub := NewSession(1, "sub")
	pub := NewSession(2, "pub")
	e.RegisterSession(sub)
	e.RegisterSession(pub)

	e.Dispatch(sub, cmdArray("SUBSCRIBE", "news"))
	assert.Contains(t, string(sent[1]), "subscribe")
	require.True(t, sub.subMode)

	sent[1] = nil
	e.Dispatch(pub, cmdArray("PUBLISH", "news", "hello"))
	assert.Contains(t, string(sent[1]), "message")
	assert.Contains(t, string(sent[1]), "hello")
	assert.Contains(t, string(sent[2]), ":1")
}

func TestPublishWithNoSubscribersReturnsZero(t *testing.T) {
	e, sent := testEngine(t)
	pub := NewSession(1, "pub")
	e.RegisterSession(pub)

	e.Dispatch(pub, cmdArray("PUBLISH", "nobody", "x"))
	assert.Contains(t, string(sent[1]), ":0")
}

func TestPSubscribeWildcardMatchesAnyChannel(t *testing.T) {
	e, sent := testEngine(t)
	sub := NewSession(1, "sub")
	pub := NewSession(2, "pub")
	e.RegisterSession(sub)
	e.RegisterSession(pub)

	e.Dispatch(sub, cmdArray("PSUBSCRIBE", "*"))
	sent[1] = nil

	e.Dispatch(pub, cmdArray("PUBLISH", "anything", "hi"))
	assert.Contains(t, string(sent[1]), "pmessage")
}

func TestUnsubscribeAllOnDisconnect(t *testing.T) {
	e, _ := testEngine(t)
	sub := NewSession(1, "sub")
	e.RegisterSession(sub)

	e.Dispatch(sub, cmdArray("SUBSCRIBE", "a", "b"))
	require.Equal(t, 2, sub.SubscribedCount())

	e.DropSession(sub)
	assert.Equal(t, 0, sub.SubscribedCount())
}

func TestSubModeRestrictsOtherCommands(t *testing.T) {
	e, sent := testEngine(t)
	sub := NewSession(1, "sub")
	e.RegisterSession(sub)

	e.Dispatch(sub, cmdArray("SUBSCRIBE", "a"))
	sent[1] = nil

	e.Dispatch(sub, cmdArray("GET", "k"))
	assert.Contains(t, string(sent[1]), "ERR Can't execute")
}
