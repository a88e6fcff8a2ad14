package server

import (
	"fmt"
	"strings"

	"github.com/rediscore/server/internal/resp"
)

// buildCommandTable assembles the compile-time dispatch table spec §9's
// design notes prefer over a lazily-initialized global map: one function
// per command family, merged once at Engine construction.
func buildCommandTable() map[string]Command {
	table := make(map[string]Command)
	merge := func(group map[string]Command) {
		for name, cmd := range group {
			table[name] = cmd
		}
	}
	merge(stringCommands())
	merge(listCommands())
	merge(streamCommands())
	merge(zsetCommands())
	merge(txCommands())
	merge(pubsubCommands())
	merge(replicationCommands())
	merge(adminCommands())
	return table
}

func argcOK(n, min, max int) bool {
	if n < min {
		return false
	}
	return max == -1 || n <= max
}

// Dispatch is the C9 entry point invoked once per fully-decoded request
// frame. cmd is the whole array (command name plus arguments), which is
// also what gets queued verbatim by MULTI and propagated verbatim to
// followers.
func (e *Engine) Dispatch(s *Session, cmd []resp.Value) {
	if len(cmd) == 0 || cmd[0].Type != resp.TypeBulkString {
		e.sendReply(s, resp.MakeError("ERR Protocol error: expected command array"))
		return
	}
	name := upperName(cmd[0].Str)
	args := cmd[1:]

	if s.isQueued && name != "MULTI" && name != "EXEC" && name != "DISCARD" {
		if _, ok := e.table[name]; !ok {
			e.sendReply(s, resp.MakeError("ERR unknown command '"+string(cmd[0].Str)+"'"))
			return
		}
		s.txQueue = append(s.txQueue, cmd)
		e.sendReply(s, resp.MakeSimpleString("QUEUED"))
		return
	}

	if s.subMode && !restrictedInSubMode[name] {
		e.sendReply(s, resp.MakeError(fmt.Sprintf(
			"ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context",
			strings.ToLower(name))))
		return
	}

	reply, hasReply := e.execOne(s, name, args)
	if !hasReply {
		return
	}
	e.sendReply(s, reply)
	if reply.Type != resp.TypeError {
		e.propagateIfWrite(name, resp.Encode(nil, resp.MakeArray(cmd)))
	}
}

// execOne looks up and runs a single command's handler, independent of
// queued/sub-mode gating, so EXEC can replay a transaction's raw frames
// through the exact same handler logic.
func (e *Engine) execOne(s *Session, name string, args []resp.Value) (resp.Value, bool) {
	def, ok := e.table[name]
	if !ok {
		return resp.MakeError("ERR unknown command '" + strings.ToLower(name) + "'"), true
	}
	if !argcOK(len(args), def.MinArgc, def.MaxArgc) {
		return resp.MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s'", strings.ToLower(name))), true
	}
	return def.Handler(e, s, args)
}
