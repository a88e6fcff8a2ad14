// Package server implements spec components C8 (client session), C9
// (command dispatcher), C10 (blocking manager) and C12 (pub/sub),
// grounded on the teacher's internal/server (Peer/Engine split) but
// rebuilt around raw non-blocking descriptors driven by internal/eventloop
// instead of one goroutine per net.Conn.
package server

import (
	"github.com/rediscore/server/internal/resp"
)

// streamWait is one entry of a session's XREAD wait-list: a stream key and
// the ID after which new entries satisfy the read.
type streamWait struct {
	key string
	id  string
}

// Session is spec §3's per-connection client session: input buffer, flags,
// blocking state, transaction queue and pub/sub state, keyed by its raw
// file descriptor.
type Session struct {
	fd int

	dec    *resp.Decoder
	outbuf []byte

	closed bool

	// Blocking state (C10).
	isBlocked       bool
	streamBlock     bool
	blockedKeys     []string
	xreadWaits      []streamWait
	blockDeadlineMs int64 // absolute ms; 0 = no timeout

	// Transaction state.
	isQueued bool
	txQueue  [][]resp.Value // each entry is a raw command's argument vector, name included

	// Pub/sub state (C12).
	subMode  bool
	channels map[string]bool
	patterns map[string]bool

	// Replication: set once this session has issued REPLCONF/PSYNC and is
	// now a follower attached to a leader's fan-out table.
	isReplica bool

	// remoteAddr is used only for logging.
	remoteAddr string
}

// NewSession wraps fd in a fresh, unblocked, non-subscribed session.
func NewSession(fd int, remoteAddr string) *Session {
	return &Session{
		fd:         fd,
		dec:        resp.NewDecoder(),
		channels:   make(map[string]bool),
		patterns:   make(map[string]bool),
		remoteAddr: remoteAddr,
	}
}

// FD returns the session's underlying descriptor.
func (s *Session) FD() int { return s.fd }

// SubscribedCount reports the number of channels plus patterns this
// session is subscribed to, spec §3's subscribed_channels counter.
func (s *Session) SubscribedCount() int {
	return len(s.channels) + len(s.patterns)
}

// resetTransient clears blocking, transaction and sub-mode state, the
// teardown spec §3's Lifecycle section requires on disconnect and that
// SUPPLEMENTED FEATURES' RESET performs without a disconnect.
func (s *Session) resetTransient() {
	s.isBlocked = false
	s.streamBlock = false
	s.blockedKeys = nil
	s.xreadWaits = nil
	s.blockDeadlineMs = 0
	s.isQueued = false
	s.txQueue = nil
	s.subMode = false
	s.channels = make(map[string]bool)
	s.patterns = make(map[string]bool)
}
