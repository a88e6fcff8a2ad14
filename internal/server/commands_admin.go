package server

import "github.com/rediscore/server/internal/resp"

// adminCommands covers session-level and introspection commands: PING,
// ECHO, CONFIG GET (spec §4.8/§6) and RESET (SPEC_FULL.md's supplemented
// session-teardown command).
func adminCommands() map[string]Command {
	return map[string]Command{
		"PING":   {Name: "PING", MinArgc: 0, MaxArgc: 1, Handler: cmdPing},
		"ECHO":   {Name: "ECHO", MinArgc: 1, MaxArgc: 1, Handler: cmdEcho},
		"CONFIG": {Name: "CONFIG", MinArgc: 2, MaxArgc: 2, Handler: cmdConfig},
		"RESET":  {Name: "RESET", MinArgc: 0, MaxArgc: 0, Handler: cmdReset},
		"QUIT":   {Name: "QUIT", MinArgc: 0, MaxArgc: 0, Handler: cmdQuit},
	}
}

func cmdPing(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if s.subMode {
		msg := ""
		if len(args) == 1 {
			msg = argString(args[0])
		}
		return resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("pong"),
			resp.MakeBulkStringFromString(msg),
		}), true
	}
	if len(args) == 1 {
		return resp.MakeBulkString(argBytes(args[0])), true
	}
	return resp.MakeSimpleString("PONG"), true
}

func cmdEcho(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	return resp.MakeBulkString(argBytes(args[0])), true
}

// cmdConfig implements CONFIG GET for the two parameters spec §6 requires
// to be reflected; CONFIG SET is deliberately absent (SPEC_FULL.md).
func cmdConfig(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	if upperName(args[0].Str) != "GET" {
		return resp.MakeError("ERR unsupported CONFIG subcommand"), true
	}
	param := argString(args[1])
	switch param {
	case "dir":
		return resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("dir"),
			resp.MakeBulkStringFromString(e.dir),
		}), true
	case "dbfilename":
		return resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("dbfilename"),
			resp.MakeBulkStringFromString(e.dbfilename),
		}), true
	default:
		return resp.MakeArray(nil), true
	}
}

// cmdReset clears transaction, sub-mode and blocked state the same way a
// disconnect does, without actually dropping the connection (SPEC_FULL.md's
// supplemented RESET).
func cmdReset(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	e.blocking.Remove(s)
	e.pubsub.UnsubscribeAll(s)
	s.resetTransient()
	return resp.MakeSimpleString("RESET"), true
}

func cmdQuit(e *Engine, s *Session, args []resp.Value) (resp.Value, bool) {
	s.closed = true
	return resp.MakeSimpleString("OK"), true
}
