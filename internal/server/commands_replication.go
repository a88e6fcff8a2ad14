package server

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/rediscore/server/internal/persistence"
	"github.com/rediscore/server/internal/resp"
)

// replicationCommands implements spec component C11's wire surface
// (§4.8/§4.10): the follower-driven handshake verbs, snapshot shipping,
// ACK bookkeeping and WAIT, plus INFO's role-reporting bulk string.
func replicationCommands() map[string]Command {
	return map[string]Command{
		"REPLCONF": {Name: "REPLCONF", MinArgc: 2, MaxArgc: -1, Handler: cmdReplconf},
		"PSYNC":    {Name: "PSYNC", MinArgc: 2, MaxArgc: 2, Handler: cmdPsync},
		"WAIT":     {Name: "WAIT", MinArgc: 2, MaxArgc: 2, Handler: cmdWait},
		"INFO":     {Name: "INFO", MinArgc: 0, MaxArgc: 1, Handler: cmdInfo},
	}
}

func cmdReplconf(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	switch upperName(args[0].Str) {
	case "LISTENING-PORT":
		s.isReplica = true
		return resp.MakeSimpleString("OK"), true

	case "CAPA":
		return resp.MakeSimpleString("OK"), true

	case "GETACK":
		if e.follower == nil {
			return resp.MakeError("ERR REPLCONF GETACK is follower-only"), true
		}
		reply := resp.SerializeCommand("REPLCONF", []resp.Value{
			resp.MakeBulkStringFromString("ACK"),
			resp.MakeBulkStringFromString(strconv.FormatInt(e.follower.ReplicaOffset, 10)),
		})
		e.sendToSession(s, reply)
		return resp.Value{}, false

	case "ACK":
		if e.leader == nil || len(args) < 2 {
			return resp.Value{}, false
		}
		offset, err := strconv.ParseInt(argString(args[1]), 10, 64)
		if err == nil {
			e.leader.RecordAck(int64(s.fd), offset)
			now := e.nowMs()
			for _, clientID := range e.leader.PendingClientIDs() {
				if count, done := e.leader.PollWait(clientID, now); done {
					if c, ok := e.sessions[int(clientID)]; ok {
						e.sendReply(c, resp.MakeInteger(int64(count)))
					}
				}
			}
		}
		return resp.Value{}, false

	default:
		return resp.MakeSimpleString("OK"), true
	}
}

// cmdPsync implements the leader side of full resync: reply with
// +FULLRESYNC, then ship the current keyspace as a length-prefixed bulk
// with no trailing CRLF (spec §4.10's snapshot-transfer framing), then
// attach the session to the follower table for command propagation.
func cmdPsync(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if e.leader == nil {
		return resp.MakeError("ERR PSYNC is leader-only"), true
	}

	var buf bytes.Buffer
	if err := persistence.Encode(&buf, e.store); err != nil {
		return resp.MakeError("ERR " + err.Error()), true
	}

	fullresync := fmt.Sprintf("+FULLRESYNC %s %d\r\n", e.leader.ReplID, e.leader.MasterReplOffset)
	e.sendToSession(s, []byte(fullresync))

	header := fmt.Sprintf("$%d\r\n", buf.Len())
	e.sendToSession(s, []byte(header))
	e.sendToSession(s, buf.Bytes())

	s.isReplica = true
	e.leader.AddFollower(int64(s.fd), func(b []byte) error {
		e.sendToSession(s, b)
		return nil
	})
	return resp.Value{}, false
}

// cmdWait implements spec §4.10's WAIT: record the pending wait, nudge
// every follower for an ACK, then resolve immediately if enough followers
// already meet the target offset — otherwise a later REPLCONF ACK or the
// periodic tick (Engine.Tick) resolves it, the tick also at the deadline.
func cmdWait(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if e.leader == nil {
		return resp.MakeError("ERR WAIT is leader-only"), true
	}
	needAcks, err1 := strconv.Atoi(argString(args[0]))
	timeoutMs, err2 := strconv.ParseInt(argString(args[1]), 10, 64)
	if err1 != nil || err2 != nil || needAcks < 0 || timeoutMs < 0 {
		return resp.MakeError("ERR value is not an integer or out of range"), true
	}

	now := e.nowMs()
	e.leader.StartWait(int64(s.fd), needAcks, now+timeoutMs)

	getack := resp.SerializeCommand("REPLCONF", []resp.Value{
		resp.MakeBulkStringFromString("GETACK"),
		resp.MakeBulkStringFromString("*"),
	})
	for _, other := range e.sessions {
		if other.isReplica {
			e.sendToSession(other, getack)
		}
	}

	if count, done := e.leader.PollWait(int64(s.fd), now); done {
		return resp.MakeInteger(int64(count)), true
	}
	return resp.Value{}, false
}

func cmdInfo(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	var b bytes.Buffer
	b.WriteString("# Replication\r\n")
	switch {
	case e.leader != nil:
		fmt.Fprintf(&b, "role:master\r\n")
		fmt.Fprintf(&b, "connected_slaves:%d\r\n", e.leader.ConnectedSlaves())
		fmt.Fprintf(&b, "master_replid:%s\r\n", e.leader.ReplID)
		fmt.Fprintf(&b, "master_repl_offset:%d\r\n", e.leader.MasterReplOffset)
	case e.follower != nil:
		fmt.Fprintf(&b, "role:slave\r\n")
		fmt.Fprintf(&b, "master_host:%s\r\n", e.follower.LeaderHost)
		fmt.Fprintf(&b, "master_port:%s\r\n", e.follower.LeaderPort)
		fmt.Fprintf(&b, "master_repl_offset:%d\r\n", e.follower.ReplicaOffset)
	default:
		fmt.Fprintf(&b, "role:master\r\n")
		fmt.Fprintf(&b, "connected_slaves:0\r\n")
	}
	return resp.MakeBulkString(b.Bytes()), true
}
