package server

import (
	"container/list"
	"strconv"

	"github.com/rediscore/server/internal/resp"
	"github.com/rediscore/server/internal/store"
)

func listCommands() map[string]Command {
	return map[string]Command{
		"RPUSH":  {Name: "RPUSH", MinArgc: 2, MaxArgc: -1, Handler: cmdRPush},
		"LPUSH":  {Name: "LPUSH", MinArgc: 2, MaxArgc: -1, Handler: cmdLPush},
		"LPOP":   {Name: "LPOP", MinArgc: 1, MaxArgc: 2, Handler: cmdLPop},
		"RPOP":   {Name: "RPOP", MinArgc: 1, MaxArgc: 2, Handler: cmdRPop},
		"LLEN":   {Name: "LLEN", MinArgc: 1, MaxArgc: 1, Handler: cmdLLen},
		"LRANGE": {Name: "LRANGE", MinArgc: 3, MaxArgc: 3, Handler: cmdLRange},
		"BLPOP":  {Name: "BLPOP", MinArgc: 2, MaxArgc: -1, Handler: cmdBLPop},
	}
}

func cmdRPush(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	l, err := e.store.GetList(key, true)
	if err != nil {
		return resp.MakeError(err.Error()), true
	}
	n := store.RPush(l, argBytesSlice(args[1:]))
	e.blocking.WakeListPush(e, key)
	return resp.MakeInteger(int64(n)), true
}

func cmdLPush(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	l, err := e.store.GetList(key, true)
	if err != nil {
		return resp.MakeError(err.Error()), true
	}
	n := store.LPush(l, argBytesSlice(args[1:]))
	e.blocking.WakeListPush(e, key)
	return resp.MakeInteger(int64(n)), true
}

func cmdLPop(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	return popCommand(e, args, store.LPop)
}

func cmdRPop(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	return popCommand(e, args, store.RPop)
}

func popCommand(e *Engine, args []resp.Value, pop func(*list.List, int) [][]byte) (resp.Value, bool) {
	key := argString(args[0])
	count := 1
	hasCount := len(args) == 2
	if hasCount {
		n, err := strconv.Atoi(argString(args[1]))
		if err != nil || n < 0 {
			return resp.MakeError("ERR value is not an integer or out of range"), true
		}
		count = n
	}

	l, err := e.store.GetList(key, false)
	if err != nil {
		return resp.MakeError(err.Error()), true
	}
	if l == nil || l.Len() == 0 {
		if hasCount {
			return resp.MakeNilArray(), true
		}
		return resp.MakeNilBulkString(), true
	}

	popped := pop(l, count)
	if !hasCount {
		return resp.MakeBulkString(popped[0]), true
	}
	elems := make([]resp.Value, len(popped))
	for i, b := range popped {
		elems[i] = resp.MakeBulkString(b)
	}
	return resp.MakeArray(elems), true
}

func cmdLLen(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	l, err := e.store.GetList(argString(args[0]), false)
	if err != nil {
		return resp.MakeError(err.Error()), true
	}
	if l == nil {
		return resp.MakeInteger(0), true
	}
	return resp.MakeInteger(int64(l.Len())), true
}

func cmdLRange(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	start, err1 := strconv.Atoi(argString(args[1]))
	stop, err2 := strconv.Atoi(argString(args[2]))
	if err1 != nil || err2 != nil {
		return resp.MakeError("ERR value is not an integer or out of range"), true
	}
	l, err := e.store.GetList(argString(args[0]), false)
	if err != nil {
		return resp.MakeError(err.Error()), true
	}
	if l == nil {
		return resp.MakeArray(nil), true
	}
	vals := store.LRange(l, start, stop)
	elems := make([]resp.Value, len(vals))
	for i, v := range vals {
		elems[i] = resp.MakeBulkString(v)
	}
	return resp.MakeArray(elems), true
}

// cmdBLPop pops immediately from the first key holding a non-empty list;
// otherwise it suspends the session per spec §4.8/§4.9. The BLPOP timeout
// argument is in (possibly fractional) seconds, per spec §9's
// disambiguation of the reference's divergent timeout units.
func cmdBLPop(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	keys := args[:len(args)-1]
	seconds, err := strconv.ParseFloat(argString(args[len(args)-1]), 64)
	if err != nil || seconds < 0 {
		return resp.MakeError("ERR timeout is not a float or out of range"), true
	}

	for _, k := range keys {
		key := argString(k)
		l, err := e.store.GetList(key, false)
		if err != nil {
			return resp.MakeError(err.Error()), true
		}
		if l != nil && l.Len() > 0 {
			front := l.Front()
			val := front.Value.([]byte)
			l.Remove(front)
			return resp.MakeArray([]resp.Value{
				resp.MakeBulkStringFromString(key),
				resp.MakeBulkString(val),
			}), true
		}
	}

	var deadline int64
	if seconds != 0 {
		deadline = e.nowMs() + int64(seconds*1000)
	}
	keyNames := make([]string, len(keys))
	for i, k := range keys {
		keyNames[i] = argString(k)
	}
	e.blocking.SuspendForList(s, keyNames, deadline)
	return resp.Value{}, false
}

func argBytesSlice(vs []resp.Value) [][]byte {
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = argBytes(v)
	}
	return out
}
