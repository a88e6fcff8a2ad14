// Package replication implements the bookkeeping half of spec component
// C11: replication IDs, offsets, follower ACK tracking and WAIT
// resolution. The socket-level handshake and byte shipping live in
// internal/server, which is the only package that touches raw
// descriptors; this package holds the pure state machine so it can be
// tested without a network stack, grounded on spec §4.10's description
// of leader/follower state (spec §3) and
// _examples/ValentinKolb-dKV's use of github.com/google/uuid for node
// identity.
package replication

import (
	"strings"

	"github.com/google/uuid"
)

// Role distinguishes a server's replication identity.
type Role int

const (
	RoleLeader Role = iota
	RoleFollower
)

// NewReplID generates the 40-hex-character replication ID spec §3
// requires, by hex-encoding two UUIDs back to back and trimming to 40
// characters (a UUID's 32 hex digits alone fall short of 40).
func NewReplID() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return (a + b)[:40]
}

// WriteCommands is the set of command names that mutate the keyspace and
// so must be propagated to followers (spec §4.10).
var WriteCommands = map[string]bool{
	"SET": true, "DEL": true, "INCR": true, "PERSIST": true,
	"EXPIRE": true, "PEXPIRE": true,
	"LPUSH": true, "RPUSH": true, "LPOP": true, "RPOP": true,
	"XADD": true,
	"ZADD": true, "ZREM": true,
}

// IsWriteCommand reports whether name (already upper-cased) must be
// propagated to followers when it succeeds on a leader.
func IsWriteCommand(name string) bool {
	return WriteCommands[name]
}

// Follower is the leader's view of one connected replica.
type Follower struct {
	ID       int64 // opaque handle, typically the connection's fd
	Send     func([]byte) error
	AckOffset int64
}

// LeaderState tracks everything spec §3 assigns to a leader.
type LeaderState struct {
	ReplID           string
	MasterReplOffset int64
	followers        map[int64]*Follower
	wait             map[int64]*PendingWait // keyed by the requesting client's id
}

// NewLeaderState creates a fresh leader identity with no followers.
func NewLeaderState() *LeaderState {
	return &LeaderState{
		ReplID:    NewReplID(),
		followers: make(map[int64]*Follower),
		wait:      make(map[int64]*PendingWait),
	}
}

// AddFollower registers a newly PSYNC'd replica at the leader's current
// offset (the offset at which its snapshot was taken).
func (l *LeaderState) AddFollower(id int64, send func([]byte) error) {
	l.followers[id] = &Follower{ID: id, Send: send, AckOffset: l.MasterReplOffset}
}

// RemoveFollower drops a disconnected replica's slot. Any pending WAITs
// are left to re-evaluate on the next timer tick against the reduced
// follower set.
func (l *LeaderState) RemoveFollower(id int64) {
	delete(l.followers, id)
}

// ConnectedSlaves reports the number of attached followers.
func (l *LeaderState) ConnectedSlaves() int {
	return len(l.followers)
}

// Propagate appends raw to every follower's outgoing stream and advances
// master_repl_offset by its length. I/O errors on an individual
// follower's Send mark that slot's connection as broken; the caller is
// responsible for calling RemoveFollower when it observes the error
// (asynchronous replication: the write itself already succeeded on the
// leader per spec §7).
func (l *LeaderState) Propagate(raw []byte) []int64 {
	var broken []int64
	for id, f := range l.followers {
		if err := f.Send(raw); err != nil {
			broken = append(broken, id)
		}
	}
	l.MasterReplOffset += int64(len(raw))
	return broken
}

// RecordAck updates a follower's reported offset; an offset lower than the
// one already recorded is ignored. It does not resolve pending waits: the
// caller does that through PollWait.
func (l *LeaderState) RecordAck(id int64, offset int64) {
	if f, ok := l.followers[id]; ok && offset > f.AckOffset {
		f.AckOffset = offset
	}
}

// AckCountAtLeast returns how many followers have ack_offset >= target.
func (l *LeaderState) AckCountAtLeast(target int64) int {
	n := 0
	for _, f := range l.followers {
		if f.AckOffset >= target {
			n++
		}
	}
	return n
}

// PendingWait is a client awaiting N ACKs at a target offset before a
// deadline (spec §3/§4.10). At most one per client is supported.
type PendingWait struct {
	ClientID    int64
	TargetOffset int64
	NeedAcks    int
	DeadlineMs  int64
}

// StartWait records client's pending WAIT, replacing any previous one for
// the same client.
func (l *LeaderState) StartWait(clientID int64, needAcks int, deadlineMs int64) {
	l.wait[clientID] = &PendingWait{
		ClientID:     clientID,
		TargetOffset: l.MasterReplOffset,
		NeedAcks:     needAcks,
		DeadlineMs:   deadlineMs,
	}
}

// PollWait reports whether clientID's pending wait is satisfied, either
// because enough followers acked the target offset or its deadline
// passed. When satisfied it removes the wait and returns the ack count
// to reply with.
func (l *LeaderState) PollWait(clientID int64, nowMs int64) (count int, done bool) {
	w, ok := l.wait[clientID]
	if !ok {
		return 0, false
	}
	acked := l.AckCountAtLeast(w.TargetOffset)
	if acked >= w.NeedAcks || nowMs >= w.DeadlineMs {
		delete(l.wait, clientID)
		return acked, true
	}
	return 0, false
}

// PendingClientIDs returns the client IDs with an outstanding wait, for
// the periodic timer to poll.
func (l *LeaderState) PendingClientIDs() []int64 {
	ids := make([]int64, 0, len(l.wait))
	for id := range l.wait {
		ids = append(ids, id)
	}
	return ids
}

// FollowerState tracks everything spec §3 assigns to a follower.
type FollowerState struct {
	LeaderHost string
	LeaderPort string

	// HandshakeStep is 0..3: PING sent, REPLCONF listening-port sent,
	// REPLCONF capa sent, PSYNC sent/FULLRESYNC received.
	HandshakeStep int

	ReplicaOffset int64

	// snapshot transfer bookkeeping
	SnapshotExpected int64
	SnapshotReceived int64
	InSnapshot       bool
}

// NewFollowerState begins tracking a follower role pointed at host:port.
func NewFollowerState(host, port string) *FollowerState {
	return &FollowerState{LeaderHost: host, LeaderPort: port}
}

// BeginSnapshot switches the follower into snapshot-receive mode for a
// transfer of the given byte length.
func (f *FollowerState) BeginSnapshot(length int64) {
	f.InSnapshot = true
	f.SnapshotExpected = length
	f.SnapshotReceived = 0
}

// FeedSnapshot records n more snapshot bytes consumed, returning whether
// the transfer is now complete.
func (f *FollowerState) FeedSnapshot(n int64) bool {
	f.SnapshotReceived += n
	if f.SnapshotReceived >= f.SnapshotExpected {
		f.InSnapshot = false
		return true
	}
	return false
}

// Remaining reports how many snapshot bytes are still expected.
func (f *FollowerState) Remaining() int64 {
	return f.SnapshotExpected - f.SnapshotReceived
}

// Advance records n more bytes of the command stream as applied.
func (f *FollowerState) Advance(n int64) {
	f.ReplicaOffset += n
}
