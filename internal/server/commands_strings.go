package server

import (
	"strconv"

	"github.com/rediscore/server/internal/resp"
	"github.com/rediscore/server/internal/store"
)

// stringCommands covers spec §4.2's keyspace operations plus the
// SUPPLEMENTED FEATURES TTL family (SPEC_FULL.md), since neither has
// enough surface area to warrant its own file.
func stringCommands() map[string]Command {
	return map[string]Command{
		"SET":     {Name: "SET", MinArgc: 2, MaxArgc: 4, Handler: cmdSet},
		"GET":     {Name: "GET", MinArgc: 1, MaxArgc: 1, Handler: cmdGet},
		"INCR":    {Name: "INCR", MinArgc: 1, MaxArgc: 1, Handler: cmdIncr},
		"DEL":     {Name: "DEL", MinArgc: 1, MaxArgc: -1, Handler: cmdDel},
		"TYPE":    {Name: "TYPE", MinArgc: 1, MaxArgc: 1, Handler: cmdType},
		"KEYS":    {Name: "KEYS", MinArgc: 1, MaxArgc: 1, Handler: cmdKeys},
		"TTL":     {Name: "TTL", MinArgc: 1, MaxArgc: 1, Handler: cmdTTL},
		"PTTL":    {Name: "PTTL", MinArgc: 1, MaxArgc: 1, Handler: cmdPTTL},
		"PERSIST": {Name: "PERSIST", MinArgc: 1, MaxArgc: 1, Handler: cmdPersist},
		"EXPIRE":  {Name: "EXPIRE", MinArgc: 2, MaxArgc: 2, Handler: cmdExpire},
		"PEXPIRE": {Name: "PEXPIRE", MinArgc: 2, MaxArgc: 2, Handler: cmdPExpire},
	}
}

func cmdSet(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	val := argBytes(args[1])

	var expiresAtMs int64
	if len(args) > 2 {
		if len(args) != 4 {
			return resp.MakeError("ERR syntax error"), true
		}
		opt := upperName(args[2].Str)
		n, err := strconv.ParseInt(argString(args[3]), 10, 64)
		if err != nil {
			return resp.MakeError("ERR value is not an integer or out of range"), true
		}
		switch opt {
		case "PX":
			expiresAtMs = e.nowMs() + n
		case "EX":
			expiresAtMs = e.nowMs() + n*1000
		default:
			return resp.MakeError("ERR syntax error"), true
		}
	}

	v := store.NewString(append([]byte(nil), val...))
	v.ExpiresAtMs = expiresAtMs
	e.store.Set(key, v)
	return resp.MakeSimpleString("OK"), true
}

func cmdGet(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	v, ok := e.store.Get(argString(args[0]))
	if !ok {
		return resp.MakeNilBulkString(), true
	}
	if v.Kind != store.KindString && v.Kind != store.KindInteger {
		return resp.MakeError(store.ErrWrongType.Error()), true
	}
	return resp.MakeBulkString(v.AsBytes()), true
}

func cmdIncr(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	v, ok := e.store.Get(key)
	if !ok {
		nv := store.NewInteger(1)
		e.store.Set(key, nv)
		return resp.MakeInteger(1), true
	}
	if v.Kind != store.KindString && v.Kind != store.KindInteger {
		return resp.MakeError(store.ErrWrongType.Error()), true
	}
	n, err := strconv.ParseInt(string(v.AsBytes()), 10, 64)
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range"), true
	}
	n++
	v.Kind = store.KindInteger
	v.Int = n
	v.Str = nil
	return resp.MakeInteger(n), true
}

func cmdDel(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	var n int64
	for _, a := range args {
		if e.store.Delete(argString(a)) {
			n++
		}
	}
	return resp.MakeInteger(n), true
}

func cmdType(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	return resp.MakeSimpleString(e.store.Type(argString(args[0]))), true
}

func cmdKeys(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	keys := e.store.Keys(argString(args[0]))
	elems := make([]resp.Value, len(keys))
	for i, k := range keys {
		elems[i] = resp.MakeBulkStringFromString(k)
	}
	return resp.MakeArray(elems), true
}

func cmdTTL(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	d, status := e.store.Expiry(argString(args[0]))
	if status != store.ExpActive {
		return resp.MakeInteger(int64(status)), true
	}
	seconds := (d.Milliseconds() + 999) / 1000
	return resp.MakeInteger(seconds), true
}

func cmdPTTL(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	d, status := e.store.Expiry(argString(args[0]))
	if status != store.ExpActive {
		return resp.MakeInteger(int64(status)), true
	}
	return resp.MakeInteger(d.Milliseconds()), true
}

func cmdPersist(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	return resp.MakeInteger(e.store.Persist(argString(args[0]))), true
}

func cmdExpire(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	seconds, err := strconv.ParseInt(argString(args[1]), 10, 64)
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range"), true
	}
	ok := e.store.SetExpiry(argString(args[0]), e.nowMs()+seconds*1000)
	return resp.MakeInteger(boolToInt(ok)), true
}

func cmdPExpire(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	ms, err := strconv.ParseInt(argString(args[1]), 10, 64)
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range"), true
	}
	ok := e.store.SetExpiry(argString(args[0]), e.nowMs()+ms)
	return resp.MakeInteger(boolToInt(ok)), true
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
