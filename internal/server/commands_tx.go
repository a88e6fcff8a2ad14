package server

import "github.com/rediscore/server/internal/resp"

// txCommands implements spec §4.8's transaction row: MULTI enters queued
// mode, EXEC replays the queue through the very same dispatcher logic used
// for immediate execution (spec §9's design note: "keep this design; it
// avoids a second command-representation"), DISCARD clears the queue.
func txCommands() map[string]Command {
	return map[string]Command{
		"MULTI":   {Name: "MULTI", MinArgc: 0, MaxArgc: 0, Handler: cmdMulti},
		"EXEC":    {Name: "EXEC", MinArgc: 0, MaxArgc: 0, Handler: cmdExec},
		"DISCARD": {Name: "DISCARD", MinArgc: 0, MaxArgc: 0, Handler: cmdDiscard},
	}
}

func cmdMulti(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if s.isQueued {
		return resp.MakeError("ERR MULTI calls can not be nested"), true
	}
	s.isQueued = true
	s.txQueue = nil
	return resp.MakeSimpleString("OK"), true
}

func cmdExec(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if !s.isQueued {
		return resp.MakeError("ERR EXEC without MULTI"), true
	}
	queue := s.txQueue
	s.isQueued = false
	s.txQueue = nil

	results := make([]resp.Value, 0, len(queue))
	for _, cmd := range queue {
		name := upperName(cmd[0].Str)
		reply, hasReply := e.execOne(s, name, cmd[1:])
		if !hasReply {
			// A blocking command queued inside a transaction executes
			// without blocking: undo any suspension it registered and
			// report the immediate-timeout shape instead.
			e.blocking.Remove(s)
			reply = resp.MakeNilArray()
		}
		results = append(results, reply)
		if reply.Type != resp.TypeError {
			e.propagateIfWrite(name, resp.Encode(nil, resp.MakeArray(cmd)))
		}
	}
	return resp.MakeArray(results), true
}

func cmdDiscard(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if !s.isQueued {
		return resp.MakeError("ERR DISCARD without MULTI"), true
	}
	s.isQueued = false
	s.txQueue = nil
	return resp.MakeSimpleString("OK"), true
}
