package server

import "github.com/rediscore/server/internal/resp"

// pubsubCommands implements spec component C12 (§4.11) plus PUBLISH,
// which this server adds beyond the SUPPLEMENTED FEATURES list in
// SPEC_FULL.md: without it SUBSCRIBE's channel->subscriber mapping is
// unreachable from the wire.
func pubsubCommands() map[string]Command {
	return map[string]Command{
		"SUBSCRIBE":    {Name: "SUBSCRIBE", MinArgc: 1, MaxArgc: -1, Handler: cmdSubscribe},
		"UNSUBSCRIBE":  {Name: "UNSUBSCRIBE", MinArgc: 0, MaxArgc: -1, Handler: cmdUnsubscribe},
		"PSUBSCRIBE":   {Name: "PSUBSCRIBE", MinArgc: 1, MaxArgc: -1, Handler: cmdPSubscribe},
		"PUNSUBSCRIBE": {Name: "PUNSUBSCRIBE", MinArgc: 0, MaxArgc: -1, Handler: cmdPUnsubscribe},
		"PUBLISH":      {Name: "PUBLISH", MinArgc: 2, MaxArgc: 2, Handler: cmdPublish},
	}
}

func cmdSubscribe(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	for _, a := range args {
		ch := argString(a)
		n := e.pubsub.Subscribe(s, ch)
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("subscribe"),
			resp.MakeBulkStringFromString(ch),
			resp.MakeInteger(int64(n)),
		}))
	}
	return resp.Value{}, false
}

func cmdUnsubscribe(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	channels := args
	if len(channels) == 0 {
		for ch := range s.channels {
			channels = append(channels, resp.MakeBulkStringFromString(ch))
		}
	}
	if len(channels) == 0 {
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("unsubscribe"),
			resp.MakeNilBulkString(),
			resp.MakeInteger(0),
		}))
		return resp.Value{}, false
	}
	for _, a := range channels {
		ch := argString(a)
		n := e.pubsub.Unsubscribe(s, ch)
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("unsubscribe"),
			resp.MakeBulkStringFromString(ch),
			resp.MakeInteger(int64(n)),
		}))
	}
	return resp.Value{}, false
}

func cmdPSubscribe(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	for _, a := range args {
		pat := argString(a)
		n := e.pubsub.PSubscribe(s, pat)
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("psubscribe"),
			resp.MakeBulkStringFromString(pat),
			resp.MakeInteger(int64(n)),
		}))
	}
	return resp.Value{}, false
}

func cmdPUnsubscribe(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	patterns := args
	if len(patterns) == 0 {
		for pat := range s.patterns {
			patterns = append(patterns, resp.MakeBulkStringFromString(pat))
		}
	}
	if len(patterns) == 0 {
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("punsubscribe"),
			resp.MakeNilBulkString(),
			resp.MakeInteger(0),
		}))
		return resp.Value{}, false
	}
	for _, a := range patterns {
		pat := argString(a)
		n := e.pubsub.PUnsubscribe(s, pat)
		e.sendReply(s, resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("punsubscribe"),
			resp.MakeBulkStringFromString(pat),
			resp.MakeInteger(int64(n)),
		}))
	}
	return resp.Value{}, false
}

func cmdPublish(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	n := e.pubsub.Publish(e, argString(args[0]), argBytes(args[1]))
	return resp.MakeInteger(int64(n)), true
}
