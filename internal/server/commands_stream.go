package server

import (
	"strconv"

	"github.com/rediscore/server/internal/resp"
	"github.com/rediscore/server/internal/store"
	"github.com/rediscore/server/internal/stream"
)

func streamCommands() map[string]Command {
	return map[string]Command{
		"XADD":   {Name: "XADD", MinArgc: 4, MaxArgc: -1, Handler: cmdXAdd},
		"XRANGE": {Name: "XRANGE", MinArgc: 3, MaxArgc: 3, Handler: cmdXRange},
		"XREAD":  {Name: "XREAD", MinArgc: 3, MaxArgc: -1, Handler: cmdXRead},
	}
}

func cmdXAdd(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	idSpec := argString(args[1])
	fieldArgs := args[2:]
	if len(fieldArgs)%2 != 0 {
		return resp.MakeError("ERR wrong number of arguments for 'xadd' command"), true
	}

	v, ok := e.store.Get(key)
	if !ok {
		v = store.NewStream()
	} else if v.Kind != store.KindStream {
		return resp.MakeError(store.ErrWrongType.Error()), true
	}

	fields := make([]stream.Field, 0, len(fieldArgs)/2)
	for i := 0; i < len(fieldArgs); i += 2 {
		fields = append(fields, stream.Field{
			Name:  append([]byte(nil), argBytes(fieldArgs[i])...),
			Value: append([]byte(nil), argBytes(fieldArgs[i+1])...),
		})
	}

	id, err := v.Strm.Append(idSpec, fields)
	if err != nil {
		return resp.MakeError("ERR " + err.Error()), true
	}
	e.store.Set(key, v)
	e.blocking.WakeStreamAppend(e, key, id)
	return resp.MakeBulkStringFromString(id.String()), true
}

func cmdXRange(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	key := argString(args[0])
	lo, err := stream.ParseRangeBound(argString(args[1]), true)
	if err != nil {
		return resp.MakeError("ERR " + err.Error()), true
	}
	hi, err := stream.ParseRangeBound(argString(args[2]), false)
	if err != nil {
		return resp.MakeError("ERR " + err.Error()), true
	}

	v, ok := e.store.Get(key)
	if !ok {
		return resp.MakeArray(nil), true
	}
	if v.Kind != store.KindStream {
		return resp.MakeError(store.ErrWrongType.Error()), true
	}

	entries := v.Strm.Range(lo, hi)
	elems := make([]resp.Value, len(entries))
	for i, en := range entries {
		elems[i] = streamEntryReply(en)
	}
	return resp.MakeArray(elems), true
}

func cmdXRead(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	idx := 0
	blockMs := int64(-1)

	if upperName(args[0].Str) == "BLOCK" {
		if len(args) < 2 {
			return resp.MakeError("ERR syntax error"), true
		}
		ms, err := strconv.ParseInt(argString(args[1]), 10, 64)
		if err != nil || ms < 0 {
			return resp.MakeError("ERR timeout is not an integer or out of range"), true
		}
		blockMs = ms
		idx = 2
	}

	if idx >= len(args) || upperName(args[idx].Str) != "STREAMS" {
		return resp.MakeError("ERR syntax error"), true
	}
	idx++
	rest := args[idx:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.MakeError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified."), true
	}
	half := len(rest) / 2
	keys := rest[:half]
	ids := rest[half:]

	var results []resp.Value
	for i := range keys {
		key := argString(keys[i])
		idStr := argString(ids[i])
		startID, err := stream.ParseRangeBound(idStr, true)
		if err != nil {
			return resp.MakeError("ERR " + err.Error()), true
		}
		v, ok := e.store.Get(key)
		if !ok || v.Kind != store.KindStream {
			continue
		}
		entries := v.Strm.ReadAfter(startID)
		if len(entries) == 0 {
			continue
		}
		results = append(results, xreadStreamReply(key, entries))
	}

	if len(results) > 0 {
		return resp.MakeArray(results), true
	}
	if blockMs < 0 {
		return resp.MakeNilArray(), true
	}

	waits := make([]streamWait, half)
	for i := range keys {
		waits[i] = streamWait{key: argString(keys[i]), id: argString(ids[i])}
	}
	var deadline int64
	if blockMs != 0 {
		deadline = e.nowMs() + blockMs
	}
	e.blocking.SuspendForStreams(s, waits, deadline)
	return resp.Value{}, false
}

func streamEntryReply(en stream.Entry) resp.Value {
	fieldElems := make([]resp.Value, 0, len(en.Fields)*2)
	for _, f := range en.Fields {
		fieldElems = append(fieldElems, resp.MakeBulkString(f.Name), resp.MakeBulkString(f.Value))
	}
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkStringFromString(en.ID.String()),
		resp.MakeArray(fieldElems),
	})
}

// xreadStreamReply builds the [streamName, [entry...]] element XREAD
// returns per matching stream, shared by the immediate path and the
// blocking-wakeup path in blocking.go.
func xreadStreamReply(key string, entries []stream.Entry) resp.Value {
	elems := make([]resp.Value, len(entries))
	for i, en := range entries {
		elems[i] = streamEntryReply(en)
	}
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkStringFromString(key),
		resp.MakeArray(elems),
	})
}
