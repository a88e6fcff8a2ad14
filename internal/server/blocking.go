package server

import (
	"github.com/rediscore/server/internal/resp"
	"github.com/rediscore/server/internal/stream"
)

// Blocking implements spec component C10: the registry of sessions
// suspended on a list key or a set of streams, woken on a matching write
// or on periodic-timer timeout. Grounded on spec §4.9; the reference's
// "scan a linked list of blocked clients" approach becomes a plain map
// scan since there is no analogous ownership concern in Go.
type Blocking struct {
	waiting map[*Session]bool
}

// NewBlocking creates an empty registry.
func NewBlocking() *Blocking {
	return &Blocking{waiting: make(map[*Session]bool)}
}

// SuspendForList registers s as blocked on the given list keys, per BLPOP.
func (b *Blocking) SuspendForList(s *Session, keys []string, deadlineMs int64) {
	s.isBlocked = true
	s.streamBlock = false
	s.blockedKeys = keys
	s.blockDeadlineMs = deadlineMs
	b.waiting[s] = true
}

// SuspendForStreams registers s as blocked on XREAD's stream/ID pairs.
func (b *Blocking) SuspendForStreams(s *Session, waits []streamWait, deadlineMs int64) {
	s.isBlocked = true
	s.streamBlock = true
	s.xreadWaits = waits
	s.blockDeadlineMs = deadlineMs
	b.waiting[s] = true
}

// Remove clears s's blocked flags and drops it from the registry,
// idempotent if s was never registered.
func (b *Blocking) Remove(s *Session) {
	s.isBlocked = false
	s.streamBlock = false
	s.blockedKeys = nil
	s.xreadWaits = nil
	s.blockDeadlineMs = 0
	delete(b.waiting, s)
}

// WakeListPush is called after a successful LPUSH/RPUSH to key with the
// engine that can pop from it. It wakes at most one waiter per available
// element, in map-iteration order (spec §5 makes no fairness promise
// beyond "readiness order").
func (b *Blocking) WakeListPush(e *Engine, key string) {
	for s := range b.waiting {
		if s.streamBlock || !containsKey(s.blockedKeys, key) {
			continue
		}
		l, err := e.store.GetList(key, false)
		if err != nil || l == nil || l.Len() == 0 {
			continue
		}
		front := l.Front()
		val := front.Value.([]byte)
		l.Remove(front)

		reply := resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString(key),
			resp.MakeBulkString(val),
		})
		e.sendReply(s, reply)
		b.Remove(s)
	}
}

// WakeStreamAppend is called after a successful XADD to key with the
// newly-appended entry's ID, waking any XREAD waiter registered on that
// stream whose start ID the new entry now satisfies.
func (b *Blocking) WakeStreamAppend(e *Engine, key string, newID stream.ID) {
	for s := range b.waiting {
		if !s.streamBlock {
			continue
		}
		var idx = -1
		for i, w := range s.xreadWaits {
			if w.key == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		startID, err := stream.ParseRangeBound(s.xreadWaits[idx].id, true)
		if err != nil || !startID.Less(newID) {
			continue
		}

		v, ok := e.store.Get(key)
		if !ok || v.Strm == nil {
			continue
		}
		entries := v.Strm.ReadAfter(startID)
		if len(entries) == 0 {
			continue
		}

		reply := resp.MakeArray([]resp.Value{xreadStreamReply(key, entries)})
		e.sendReply(s, reply)
		b.Remove(s)
	}
}

// Tick is invoked from the periodic 100ms timer. Any waiter whose deadline
// (nonzero) has passed by nowMs is unblocked with a null-array reply.
func (b *Blocking) Tick(e *Engine, nowMs int64) {
	for s := range b.waiting {
		if s.blockDeadlineMs != 0 && nowMs >= s.blockDeadlineMs {
			e.sendReply(s, resp.MakeNilArray())
			b.Remove(s)
		}
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
