package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBLPopImmediateWhenListNonEmpty(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("RPUSH", "q", "a"))
	sent[1] = nil

	e.Dispatch(s, cmdArray("BLPOP", "q", "0"))
	assert.Contains(t, string(sent[1]), "a")
	assert.False(t, s.isBlocked)
}

func TestBLPopSuspendsThenWakesOnPush(t *testing.T) {
	e, sent := testEngine(t)
	blocked := NewSession(1, "blocked")
	pusher := NewSession(2, "pusher")
	e.RegisterSession(blocked)
	e.RegisterSession(pusher)

	e.Dispatch(blocked, cmdArray("BLPOP", "q", "0"))
	require.True(t, blocked.isBlocked)
	assert.Empty(t, sent[1])

	e.Dispatch(pusher, cmdArray("RPUSH", "q", "hello"))

	assert.Contains(t, string(sent[1]), "hello")
	assert.False(t, blocked.isBlocked)
}

func TestBLPopTimesOutOnTick(t *testing.T) {
	e, sent := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	now := int64(1000)
	e.nowMs = func() int64 { return now }

	e.Dispatch(s, cmdArray("BLPOP", "q", "1"))
	require.True(t, s.isBlocked)

	now += 1500
	e.blocking.Tick(e, now)

	assert.False(t, s.isBlocked)
	assert.Contains(t, string(sent[1]), "*-1")
}

func TestDropSessionRemovesBlockedWaiter(t *testing.T) {
	e, _ := testEngine(t)
	s := NewSession(1, "peer")
	e.RegisterSession(s)

	e.Dispatch(s, cmdArray("BLPOP", "q", "0"))
	require.True(t, e.blocking.waiting[s])

	e.DropSession(s)
	assert.False(t, e.blocking.waiting[s])
}
